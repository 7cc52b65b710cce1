package dto

import (
	"encoding/json"
	"time"
)

// PredictionInfo represents a stored prediction in API listings.
type PredictionInfo struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	ResultURL    string    `json:"resultUrl"`
	UploadURL    string    `json:"uploadUrl"`
	Date         time.Time `json:"date"`
	TimeOfDay    time.Time `json:"timeOfDay"`
	Objects      []string  `json:"objects"` // Distinct detected labels
	Detections   int       `json:"detections"`
}

// MarshalJSON customizes JSON output for PredictionInfo to format date and time-of-day.
func (p PredictionInfo) MarshalJSON() ([]byte, error) {
	type Alias PredictionInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.Date.Format("02-01-2006"),
		TimeOfDay: p.TimeOfDay.Format("15:04"),
		Alias:     (Alias)(p),
	})
}
