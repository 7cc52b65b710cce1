package handler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"trackscan/internal/apperror"
	"trackscan/internal/config"
	"trackscan/internal/dto"
	"trackscan/internal/logger"
	"trackscan/internal/service"
)

const (
	// UploadField is the multipart field carrying the image.
	UploadField = "r_image"

	// multipartMemory is how much of a form is kept in memory before spilling to temp files.
	multipartMemory = 8 << 20
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("pages").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(templateFS, "templates/*.html"))

// render executes a page into a buffer first so a template error never
// leaves a half-written 200 response.
func render(w http.ResponseWriter, logger *logger.Logger, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("Error rendering %s: %v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func renderError(w http.ResponseWriter, logger *logger.Logger, err error) {
	status := apperror.Status(err)
	render(w, logger, status, "error.html", dto.ErrorPage{Status: status, Message: apperror.Message(err)})
}

// HomeHandler renders the landing page.
func HomeHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, logger, http.StatusOK, "home.html", nil)
	}
}

// PredictPageHandler renders the upload form.
func PredictPageHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, logger, http.StatusOK, "prediction_page.html", dto.FormPage{MaxUploadMB: cfg.MaxUploadSize})
	}
}

// PredictHandler stores the uploaded image, runs the detector on it and
// renders the result page pointing at the annotated copy.
func PredictHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Leave room for the multipart framing around the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes()+1<<20)

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			logger.Warning("Invalid upload form: %v", err)
			renderError(w, logger, apperror.ErrInvalidUpload)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile(UploadField)
		if err != nil {
			logger.Warning("Upload without %s field: %v", UploadField, err)
			renderError(w, logger, apperror.ErrInvalidUpload)
			return
		}
		defer file.Close()

		result, err := manager.Predict(r.Context(), header.Filename, file)
		if err != nil {
			renderError(w, logger, err)
			return
		}

		render(w, logger, http.StatusOK, "prediction_result_page.html", dto.ResultPage{
			Image:      manager.ResultURL(result.Filename),
			Filename:   result.Filename,
			Detections: result.Detections,
			Labels:     result.Labels(),
			ElapsedMs:  result.Duration.Milliseconds(),
		})
	}
}
