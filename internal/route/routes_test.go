package route

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"trackscan/internal/config"
	"trackscan/internal/dto"
	"trackscan/internal/logger"
	"trackscan/internal/repository/sqlite"
	"trackscan/internal/service"
	"trackscan/internal/service/inference"
	"trackscan/internal/service/storage"
	"trackscan/internal/service/websocket"

	gorilla "github.com/gorilla/websocket"
)

// ========================================
// Test Setup Helpers
// ========================================

type fakeDetector struct {
	err error
}

func (f *fakeDetector) Detect(_ context.Context, img image.Image) ([]dto.DetectionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	b := img.Bounds()
	return []dto.DetectionResult{
		{Label: "crack", ClassID: 0, Confidence: 0.87, X: b.Dx() / 4, Y: b.Dy() / 4, Width: b.Dx() / 2, Height: b.Dy() / 2},
	}, nil
}

func (f *fakeDetector) Loaded() bool {
	return f.err == nil
}

type testServer struct {
	handler http.Handler
	cfg     *config.Config
	hub     *websocket.HubService
}

func setupServer(t *testing.T, detector *fakeDetector) *testServer {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.StaticDirectory = filepath.Join(root, "static")
	cfg.UploadDirectory = filepath.Join(cfg.StaticDirectory, "uploads")
	cfg.ResultDirectory = filepath.Join(cfg.StaticDirectory, "results")
	cfg.LogDirectory = filepath.Join(root, "logs")
	cfg.MaxUploadSize = 1

	log, err := logger.NewLogger(cfg.LogDirectory, "info")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	db, err := sqlite.New(filepath.Join(root, "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewStore(cfg, log)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	hub := websocket.NewHubService(log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	adapter := inference.NewAdapter(detector, cfg, log)
	manager := service.NewManager(store, adapter, hub, sqlite.NewPredictionRepository(db), sqlite.NewDetectionRepository(db), log)

	return &testServer{handler: SetupRoutes(manager, hub, detector, cfg, log), cfg: cfg, hub: hub}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func trackJPEG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(content)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

var resultURLPattern = regexp.MustCompile(`/static/(results/\d+_track\.jpg)`)

// ========================================
// Page Tests
// ========================================

func TestPages(t *testing.T) {
	server := setupServer(t, &fakeDetector{})

	tests := []struct {
		path     string
		expected string
	}{
		{"/", `href="/predict_page"`},
		{"/predict_page", `name="r_image"`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := server.do(t, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("unexpected content type %s", ct)
			}
			if !strings.Contains(rec.Body.String(), tt.expected) {
				t.Errorf("body does not contain %s", tt.expected)
			}
		})
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	server := setupServer(t, &fakeDetector{})

	if rec := server.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rec.Code)
	}
	if rec := server.do(t, httptest.NewRequest(http.MethodGet, "/predict", nil)); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /predict, got %d", rec.Code)
	}
}

// ========================================
// Predict Flow Tests
// ========================================

func TestPredict_EndToEnd(t *testing.T) {
	server := setupServer(t, &fakeDetector{})
	upload := trackJPEG(t)

	rec := server.do(t, uploadRequest(t, "r_image", "track.jpg", upload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	match := resultURLPattern.FindStringSubmatch(rec.Body.String())
	if match == nil {
		t.Fatalf("result page does not reference results/<digits>_track.jpg:\n%s", rec.Body.String())
	}
	name := strings.TrimPrefix(match[1], "results/")

	uploaded, err := os.ReadFile(filepath.Join(server.cfg.UploadDirectory, name))
	if err != nil {
		t.Fatalf("upload not stored: %v", err)
	}
	if !bytes.Equal(uploaded, upload) {
		t.Error("stored upload differs from the submitted bytes")
	}

	info, err := os.Stat(filepath.Join(server.cfg.ResultDirectory, name))
	if err != nil {
		t.Fatalf("annotated result missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("annotated result is empty")
	}

	// The page's image URL is served by the static handler.
	static := server.do(t, httptest.NewRequest(http.MethodGet, "/static/"+match[1], nil))
	if static.Code != http.StatusOK {
		t.Fatalf("expected result to be served, got %d", static.Code)
	}
	if _, format, err := image.DecodeConfig(static.Body); err != nil || format != "jpeg" {
		t.Errorf("served result is not a jpeg: %s %v", format, err)
	}

	if !strings.Contains(rec.Body.String(), "Found: crack") {
		t.Error("result page should summarize the detected labels")
	}
}

func TestPredict_Errors(t *testing.T) {
	tests := []struct {
		name     string
		detector *fakeDetector
		req      func(t *testing.T) *http.Request
		expected int
	}{
		{
			name:     "missing field",
			detector: &fakeDetector{},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "other", "track.jpg", trackJPEG(t))
			},
			expected: http.StatusBadRequest,
		},
		{
			name:     "not multipart",
			detector: &fakeDetector{},
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("r_image=x"))
			},
			expected: http.StatusBadRequest,
		},
		{
			name:     "not an image",
			detector: &fakeDetector{},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "r_image", "track.jpg", []byte("definitely not a jpeg"))
			},
			expected: http.StatusBadRequest,
		},
		{
			name:     "too large",
			detector: &fakeDetector{},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "r_image", "track.jpg", bytes.Repeat([]byte{0xFF}, 3<<20))
			},
			expected: http.StatusBadRequest,
		},
		{
			name:     "detector failure",
			detector: &fakeDetector{err: errors.New("network not initialized")},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "r_image", "track.jpg", trackJPEG(t))
			},
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupServer(t, tt.detector)

			rec := server.do(t, tt.req(t))
			if rec.Code != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "Error") {
				t.Error("expected the error page")
			}
		})
	}
}

func TestPredict_LiveFeed(t *testing.T) {
	server := setupServer(t, &fakeDetector{})
	ts := httptest.NewServer(server.handler)
	defer ts.Close()

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/feed", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for server.hub.GetClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("viewer was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if rec := server.do(t, uploadRequest(t, "r_image", "track.jpg", trackJPEG(t))); rec.Code != http.StatusOK {
		t.Fatalf("upload failed with %d", rec.Code)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("no live feed event received: %v", err)
	}

	var event dto.PredictionEvent
	if err := json.Unmarshal(message, &event); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	if event.Type != service.EventPrediction || !resultURLPattern.MatchString(event.ResultURL) {
		t.Errorf("unexpected event %+v", event)
	}
	if len(event.Detections) != 1 || event.Detections[0].Label != "crack" {
		t.Errorf("unexpected detections %+v", event.Detections)
	}
}

// ========================================
// API Tests
// ========================================

func TestPredictionsAPI(t *testing.T) {
	server := setupServer(t, &fakeDetector{})

	for i := 0; i < 2; i++ {
		if rec := server.do(t, uploadRequest(t, "r_image", "track.jpg", trackJPEG(t))); rec.Code != http.StatusOK {
			t.Fatalf("upload %d failed with %d", i, rec.Code)
		}
	}

	rec := server.do(t, httptest.NewRequest(http.MethodGet, "/api/predictions?limit=1&label=crack", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Predictions []struct {
			Filename string   `json:"filename"`
			Objects  []string `json:"objects"`
			Date     string   `json:"date"`
		} `json:"predictions"`
		Length     int `json:"length"`
		TotalPages int `json:"totalPages"`
		PageSize   int `json:"pageSize"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if page.Length != 2 || page.TotalPages != 2 || page.PageSize != 1 || len(page.Predictions) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if !regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`).MatchString(page.Predictions[0].Date) {
		t.Errorf("unexpected date format %s", page.Predictions[0].Date)
	}

	labels := server.do(t, httptest.NewRequest(http.MethodGet, "/api/predictions/labels", nil))
	if body := strings.TrimSpace(labels.Body.String()); body != `["crack"]` {
		t.Errorf("unexpected labels %s", body)
	}

	stats := server.do(t, httptest.NewRequest(http.MethodGet, "/api/predictions/stats", nil))
	if !strings.Contains(stats.Body.String(), `"total_predictions":2`) {
		t.Errorf("unexpected stats %s", stats.Body.String())
	}

	name := page.Predictions[0].Filename
	del := server.do(t, httptest.NewRequest(http.MethodDelete, "/api/predictions/"+name, nil))
	if del.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", del.Code)
	}
	if _, err := os.Stat(filepath.Join(server.cfg.ResultDirectory, name)); !os.IsNotExist(err) {
		t.Error("expected result file to be deleted")
	}

	for _, missing := range []string{name, "1700000000_never.jpg"} {
		again := server.do(t, httptest.NewRequest(http.MethodDelete, "/api/predictions/"+missing, nil))
		if again.Code != http.StatusNotFound {
			t.Errorf("expected 404 deleting %s, got %d", missing, again.Code)
		}
		if !strings.Contains(again.Body.String(), "prediction not found") {
			t.Errorf("unexpected body %s", again.Body.String())
		}
	}

	clear := server.do(t, httptest.NewRequest(http.MethodDelete, "/api/predictions", nil))
	if clear.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on clear, got %d", clear.Code)
	}
	after := server.do(t, httptest.NewRequest(http.MethodGet, "/api/predictions", nil))
	if !strings.Contains(after.Body.String(), `"length":0`) {
		t.Errorf("expected empty history, got %s", after.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name     string
		detector *fakeDetector
		model    string
	}{
		{"loaded", &fakeDetector{}, "loaded"},
		{"unavailable", &fakeDetector{err: errors.New("no model")}, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupServer(t, tt.detector)

			rec := server.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body["model"] != tt.model {
				t.Errorf("expected model %s, got %s", tt.model, body["model"])
			}
		})
	}
}

func TestLogsEndpoints(t *testing.T) {
	server := setupServer(t, &fakeDetector{})
	server.do(t, uploadRequest(t, "r_image", "track.jpg", trackJPEG(t)))

	rec := server.do(t, httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Stored upload") {
		t.Errorf("expected upload entry in info log, got %q", rec.Body.String())
	}

	if rec := server.do(t, httptest.NewRequest(http.MethodGet, "/logs/debug", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown level, got %d", rec.Code)
	}

	if rec := server.do(t, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil)); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 on clear, got %d", rec.Code)
	}
	data, err := io.ReadAll(server.do(t, httptest.NewRequest(http.MethodGet, "/logs/warning", nil)).Body)
	if err != nil {
		t.Fatalf("failed to read warning log: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty warning log, got %q", data)
	}
}
