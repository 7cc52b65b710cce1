package repository

import (
	"trackscan/internal/model"
)

// PredictionRepository defines the interface for prediction data operations.
type PredictionRepository interface {
	// Create operations
	Insert(p *model.Prediction) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Prediction, error)
	GetByFilename(filename string) (*model.Prediction, error)
	GetAll(filter *model.PredictionFilter) ([]model.Prediction, error)
	GetTotalCount(filter *model.PredictionFilter) (int, error)
	Exists(filename string) (bool, error)
	GetStats() (*model.PredictionStats, error)

	// Delete operations
	DeleteByFilename(filename string) (bool, error)
	DeleteAll() error
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.Detection) error

	// Read operations
	GetByPredictionID(predictionID int64) ([]model.Detection, error)
	GetLabelsByPredictionID(predictionID int64) ([]string, error)
	GetAllLabels() ([]string, error)
}
