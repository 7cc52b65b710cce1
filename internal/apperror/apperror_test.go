package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid upload", fmt.Errorf("missing field r_image: %w", ErrInvalidUpload), http.StatusBadRequest},
		{"storage", fmt.Errorf("write: %w", ErrStorageFailure), http.StatusInternalServerError},
		{"inference", fmt.Errorf("forward: %w", ErrInferenceFailure), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.err); got != tt.expected {
				t.Errorf("Status(%v) = %d, expected %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestMessage_DistinguishesKinds(t *testing.T) {
	seen := map[string]bool{}
	for _, err := range []error{ErrInvalidUpload, ErrStorageFailure, ErrInferenceFailure, errors.New("x")} {
		msg := Message(fmt.Errorf("wrapped: %w", err))
		if seen[msg] {
			t.Errorf("duplicate message %q", msg)
		}
		seen[msg] = true
	}
}
