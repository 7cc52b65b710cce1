package dto

import "time"

// InferenceResult is what the inference adapter produced for one stored image.
type InferenceResult struct {
	Filename   string
	ResultPath string
	Detections []DetectionResult
	Width      int
	Height     int
	Duration   time.Duration
}

// Labels returns the distinct detection labels in first-seen order.
func (r *InferenceResult) Labels() []string {
	seen := make(map[string]bool)
	labels := make([]string, 0, len(r.Detections))
	for _, det := range r.Detections {
		if !seen[det.Label] {
			seen[det.Label] = true
			labels = append(labels, det.Label)
		}
	}
	return labels
}
