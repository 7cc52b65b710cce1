package dto

import (
	"reflect"
	"testing"
)

func TestInferenceResult_Labels(t *testing.T) {
	tests := []struct {
		name       string
		detections []DetectionResult
		expected   []string
	}{
		{"empty", nil, []string{}},
		{"first seen order", []DetectionResult{{Label: "spall"}, {Label: "crack"}, {Label: "spall"}}, []string{"spall", "crack"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &InferenceResult{Detections: tt.detections}
			if got := result.Labels(); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
