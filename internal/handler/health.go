package handler

import (
	"net/http"

	"trackscan/internal/logger"
)

// ModelStatus reports whether the detection model is available.
type ModelStatus interface {
	Loaded() bool
}

// HealthHandler reports liveness. A missing model degrades the status but
// the server still answers 200 since the pages keep working.
func HealthHandler(model ModelStatus, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "model": "loaded"}
		if model == nil || !model.Loaded() {
			status["status"] = "degraded"
			status["model"] = "unavailable"
		}
		writeJSON(w, logger, http.StatusOK, status)
	}
}
