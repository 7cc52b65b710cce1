// Package apperror defines the failure kinds of the prediction flow and
// their HTTP mapping.
package apperror

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidUpload means the request did not carry a usable image.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrStorageFailure means an upload or result could not be written.
	ErrStorageFailure = errors.New("storage failure")
	// ErrInferenceFailure means the detector could not process the image.
	ErrInferenceFailure = errors.New("inference failure")
)

// Status returns the HTTP status code for err.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidUpload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns a short user-facing description of err.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidUpload):
		return "The uploaded file could not be used as an image."
	case errors.Is(err, ErrStorageFailure):
		return "The image could not be stored."
	case errors.Is(err, ErrInferenceFailure):
		return "The detector could not process the image."
	default:
		return "Internal Server Error"
	}
}
