package sqlite

import (
	"fmt"

	"trackscan/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []model.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO detections (prediction_id, label, class_id, x, y, width, height, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.PredictionID, det.Label, det.ClassID, det.X, det.Y, det.Width, det.Height, det.Confidence); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	return tx.Commit()
}

// GetByPredictionID retrieves all detections for a prediction, most confident first.
func (r *DetectionRepository) GetByPredictionID(predictionID int64) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.conn.Query(`
		SELECT id, prediction_id, label, class_id, x, y, width, height, confidence
		FROM detections WHERE prediction_id = ?
		ORDER BY confidence DESC
	`, predictionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []model.Detection
	for rows.Next() {
		var det model.Detection
		if err := rows.Scan(&det.ID, &det.PredictionID, &det.Label, &det.ClassID, &det.X, &det.Y, &det.Width, &det.Height, &det.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// GetLabelsByPredictionID returns just the distinct labels of a prediction.
func (r *DetectionRepository) GetLabelsByPredictionID(predictionID int64) ([]string, error) {
	return r.labels(`SELECT DISTINCT label FROM detections WHERE prediction_id = ? ORDER BY label`, predictionID)
}

// GetAllLabels returns a list of all distinct detected labels.
func (r *DetectionRepository) GetAllLabels() ([]string, error) {
	return r.labels(`SELECT DISTINCT label FROM detections ORDER BY label`)
}

func (r *DetectionRepository) labels(query string, args ...interface{}) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}
