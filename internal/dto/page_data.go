package dto

// ResultPage is the template data of the prediction result page.
type ResultPage struct {
	Image      string
	Filename   string
	Detections []DetectionResult
	// Labels are the distinct detected classes, shown as a summary line.
	Labels    []string
	ElapsedMs int64
}

// ErrorPage is the template data of the error page.
type ErrorPage struct {
	Status  int
	Message string
}

// FormPage is the template data of the upload form page.
type FormPage struct {
	MaxUploadMB int64
}
