package dto

// PredictionEvent is pushed to live feed viewers after each prediction.
type PredictionEvent struct {
	Type       string            `json:"type"`
	Filename   string            `json:"filename"`
	ResultURL  string            `json:"resultUrl"`
	Detections []DetectionResult `json:"detections"`
	ElapsedMs  int64             `json:"elapsedMs"`
}
