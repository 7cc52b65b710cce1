package model

import "time"

// Prediction represents one processed upload.
type Prediction struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	UploadPath   string    `json:"upload_path"`
	ResultPath   string    `json:"result_path"`
	FileSize     int64     `json:"filesize"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	InferenceMs  int64     `json:"inference_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// PredictionFilter contains filtering options for querying predictions.
type PredictionFilter struct {
	Label     string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

// PredictionStats contains statistics about stored predictions.
type PredictionStats struct {
	TotalPredictions int            `json:"total_predictions"`
	TotalDetections  int            `json:"total_detections"`
	TotalSizeBytes   int64          `json:"total_size_bytes"`
	LabelCounts      map[string]int `json:"label_counts"`
}
