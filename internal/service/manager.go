package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"trackscan/internal/dto"
	"trackscan/internal/logger"
	"trackscan/internal/model"
	"trackscan/internal/repository"
	"trackscan/internal/service/inference"
	"trackscan/internal/service/storage"
	"trackscan/internal/service/websocket"
)

// ErrHistoryDisabled is returned by history queries when no database is configured.
var ErrHistoryDisabled = errors.New("prediction history is disabled")

// ErrPredictionNotFound is returned by Delete when neither files nor a
// history record exist under the filename.
var ErrPredictionNotFound = errors.New("prediction not found")

// EventPrediction is the live feed event type of a finished prediction.
const EventPrediction = "prediction"

// Manager ties the upload store, the inference adapter and the optional
// history and live feed together. Repositories and hub may be nil.
type Manager struct {
	store          *storage.Store
	adapter        *inference.Adapter
	hub            *websocket.HubService
	predictionRepo repository.PredictionRepository
	detectionRepo  repository.DetectionRepository
	logger         *logger.Logger
}

func NewManager(store *storage.Store, adapter *inference.Adapter, hub *websocket.HubService,
	predictionRepo repository.PredictionRepository, detectionRepo repository.DetectionRepository, logger *logger.Logger) *Manager {
	return &Manager{
		store:          store,
		adapter:        adapter,
		hub:            hub,
		predictionRepo: predictionRepo,
		detectionRepo:  detectionRepo,
		logger:         logger,
	}
}

// Predict stores the upload, runs inference on it and records the outcome.
// History and live feed failures are logged and never fail the prediction.
func (m *Manager) Predict(ctx context.Context, originalName string, r io.Reader) (*dto.InferenceResult, error) {
	stored, err := m.store.SaveUpload(originalName, r)
	if err != nil {
		return nil, err
	}

	result, err := m.adapter.Run(ctx, stored.Path, stored.Filename)
	if err != nil {
		m.logger.Error("Prediction for %s failed: %v", stored.Filename, err)
		return nil, err
	}

	m.record(stored, result)

	if m.hub != nil {
		m.hub.BroadcastEvent(dto.PredictionEvent{
			Type:       EventPrediction,
			Filename:   result.Filename,
			ResultURL:  m.store.ResultURL(result.Filename),
			Detections: result.Detections,
			ElapsedMs:  result.Duration.Milliseconds(),
		})
	}
	return result, nil
}

func (m *Manager) record(stored *dto.StoredImage, result *dto.InferenceResult) {
	if m.predictionRepo == nil {
		return
	}

	id, err := m.predictionRepo.Insert(&model.Prediction{
		Filename:     stored.Filename,
		OriginalName: stored.OriginalName,
		UploadPath:   stored.Path,
		ResultPath:   result.ResultPath,
		FileSize:     stored.Size,
		Width:        result.Width,
		Height:       result.Height,
		InferenceMs:  result.Duration.Milliseconds(),
		CreatedAt:    stored.StoredAt,
	})
	if err != nil {
		m.logger.Error("Error saving prediction %s to database: %v", stored.Filename, err)
		return
	}

	if m.detectionRepo == nil || len(result.Detections) == 0 {
		return
	}
	if err := m.detectionRepo.InsertBatch(toDetections(id, result.Detections)); err != nil {
		m.logger.Error("Error saving detections of %s to database: %v", stored.Filename, err)
	}
}

func toDetections(predictionID int64, results []dto.DetectionResult) []model.Detection {
	detections := make([]model.Detection, 0, len(results))
	for _, det := range results {
		detections = append(detections, model.Detection{
			PredictionID: predictionID,
			Label:        det.Label,
			ClassID:      det.ClassID,
			X:            det.X,
			Y:            det.Y,
			Width:        det.Width,
			Height:       det.Height,
			Confidence:   det.Confidence,
		})
	}
	return detections
}

// ResultURL returns the public URL of an annotated result.
func (m *Manager) ResultURL(filename string) string {
	return m.store.ResultURL(filename)
}

// List returns one page of the prediction history, newest first.
func (m *Manager) List(page, limit int, filters dto.PredictionFilters) (*dto.PredictionsData, error) {
	if m.predictionRepo == nil {
		return nil, ErrHistoryDisabled
	}
	page = max(page, 1)
	limit = max(limit, 1)

	filter := &model.PredictionFilter{
		Label:     filters.Label,
		StartDate: filters.DateAfter,
		EndDate:   filters.DateBefore,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}

	predictions, err := m.predictionRepo.GetAll(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}

	totalCount, err := m.predictionRepo.GetTotalCount(filter)
	if err != nil {
		m.logger.Error("Error counting predictions: %v", err)
		totalCount = len(predictions)
	}

	totalSize, err := m.store.DirectorySize()
	if err != nil {
		m.logger.Error("Error getting storage size: %v", err)
		totalSize = 0
	}

	infos := make([]dto.PredictionInfo, 0, len(predictions))
	for _, p := range predictions {
		objects := []string{}
		detections := 0
		if m.detectionRepo != nil {
			dets, err := m.detectionRepo.GetByPredictionID(p.ID)
			if err != nil {
				m.logger.Error("Error getting detections for prediction %d: %v", p.ID, err)
			}
			detections = len(dets)
			if labels, err := m.detectionRepo.GetLabelsByPredictionID(p.ID); err == nil && labels != nil {
				objects = labels
			}
		}

		created := p.CreatedAt.Local()
		infos = append(infos, dto.PredictionInfo{
			Filename:     p.Filename,
			OriginalName: p.OriginalName,
			ResultURL:    m.store.ResultURL(p.Filename),
			UploadURL:    m.store.UploadURL(p.Filename),
			Date:         created,
			TimeOfDay:    created,
			Objects:      objects,
			Detections:   detections,
		})
	}

	return &dto.PredictionsData{
		Predictions: infos,
		Size:        totalSize,
		Length:      totalCount,
		TotalPages:  (totalCount + limit - 1) / limit,
		CurrentPage: page,
		Limit:       limit,
	}, nil
}

// Stats returns history totals and per-label counts.
func (m *Manager) Stats() (*model.PredictionStats, error) {
	if m.predictionRepo == nil {
		return nil, ErrHistoryDisabled
	}
	return m.predictionRepo.GetStats()
}

// Labels returns every label ever detected.
func (m *Manager) Labels() ([]string, error) {
	if m.detectionRepo == nil {
		return nil, ErrHistoryDisabled
	}
	labels, err := m.detectionRepo.GetAllLabels()
	if labels == nil {
		labels = []string{}
	}
	return labels, err
}

// Delete removes the upload, the result and the history record of filename.
func (m *Manager) Delete(filename string) error {
	removed, err := m.store.RemoveArtifacts(filename)
	if err != nil {
		return err
	}
	recorded := false
	if m.predictionRepo != nil {
		recorded, err = m.predictionRepo.DeleteByFilename(filename)
		if err != nil {
			return fmt.Errorf("failed to delete prediction %s: %w", filename, err)
		}
	}
	if removed == 0 && !recorded {
		return fmt.Errorf("%s: %w", filename, ErrPredictionNotFound)
	}
	m.logger.Info("Deleted prediction: %s", filename)
	return nil
}

// Clear removes every stored file and history record.
func (m *Manager) Clear() (int, error) {
	removed, err := m.store.Clear()
	if err != nil {
		return removed, err
	}
	if m.predictionRepo != nil {
		if err := m.predictionRepo.DeleteAll(); err != nil {
			return removed, fmt.Errorf("failed to clear history: %w", err)
		}
	}
	m.logger.Info("Cleared %d stored files", removed)
	return removed, nil
}
