package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"trackscan/internal/apperror"
	"trackscan/internal/dto"
	"trackscan/internal/logger"
	"trackscan/internal/service"
)

const (
	defaultPageSize = 24
	maxPageSize     = 200
)

// GetPredictionsHandler returns a filtered page of the prediction history.
func GetPredictionsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := min(atoiDefault(q.Get("limit"), defaultPageSize), maxPageSize)

		filters := dto.PredictionFilters{
			Label:      q.Get("label"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
		}

		data, err := manager.List(page, limit, filters)
		if err != nil {
			writeAPIError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, data)
	}
}

// PredictionStatsHandler returns history totals and per-label counts.
func PredictionStatsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := manager.Stats()
		if err != nil {
			writeAPIError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}

// PredictionLabelsHandler returns every label found so far.
func PredictionLabelsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labels, err := manager.Labels()
		if err != nil {
			writeAPIError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, labels)
	}
}

// DeletePredictionHandler removes one prediction's files and record.
func DeletePredictionHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := r.PathValue("filename")
		if err := manager.Delete(filename); err != nil {
			writeAPIError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "filename": filename})
	}
}

// ClearPredictionsHandler deletes every stored file and clears the history.
func ClearPredictionsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := manager.Clear(); err != nil {
			writeAPIError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func writeAPIError(w http.ResponseWriter, logger *logger.Logger, err error) {
	status := apperror.Status(err)
	message := apperror.Message(err)
	switch {
	case errors.Is(err, service.ErrHistoryDisabled):
		status = http.StatusServiceUnavailable
		message = err.Error()
	case errors.Is(err, service.ErrPredictionNotFound):
		status = http.StatusNotFound
		message = service.ErrPredictionNotFound.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Error("API request failed: %v", err)
	}
	writeJSON(w, logger, status, map[string]string{"error": message})
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML date input).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
