package sqlite

import (
	"database/sql"
	"fmt"

	"trackscan/internal/model"
)

// PredictionRepository implements repository.PredictionRepository for SQLite.
type PredictionRepository struct {
	db *DB
}

// NewPredictionRepository creates a new SQLite prediction repository.
func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

const predictionColumns = `p.id, p.filename, p.original_name, p.upload_path, p.result_path,
	p.filesize, p.width, p.height, p.inference_ms, p.created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrediction(row rowScanner) (*model.Prediction, error) {
	var p model.Prediction
	err := row.Scan(&p.ID, &p.Filename, &p.OriginalName, &p.UploadPath, &p.ResultPath,
		&p.FileSize, &p.Width, &p.Height, &p.InferenceMs, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert adds a new prediction record to the database.
func (r *PredictionRepository) Insert(p *model.Prediction) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.conn.Exec(`
		INSERT INTO predictions (filename, original_name, upload_path, result_path, filesize, width, height, inference_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Filename, p.OriginalName, p.UploadPath, p.ResultPath, p.FileSize, p.Width, p.Height, p.InferenceMs, p.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a prediction by its ID.
func (r *PredictionRepository) GetByID(id int64) (*model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	p, err := scanPrediction(r.db.conn.QueryRow(`SELECT `+predictionColumns+` FROM predictions p WHERE p.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// GetByFilename retrieves a prediction by its stored filename.
func (r *PredictionRepository) GetByFilename(filename string) (*model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	p, err := scanPrediction(r.db.conn.QueryRow(`SELECT `+predictionColumns+` FROM predictions p WHERE p.filename = ?`, filename))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// filterClause builds the WHERE conditions shared by GetAll and GetTotalCount.
func filterClause(filter *model.PredictionFilter) (string, []interface{}) {
	clause := ""
	args := []interface{}{}
	if filter == nil {
		return clause, args
	}

	if filter.Label != "" {
		clause += " AND d.label = ?"
		args = append(args, filter.Label)
	}

	if !filter.StartDate.IsZero() {
		clause += " AND DATE(p.created_at) >= DATE(?)"
		args = append(args, filter.StartDate.UTC().Format("2006-01-02"))
	}

	if !filter.EndDate.IsZero() {
		clause += " AND DATE(p.created_at) <= DATE(?)"
		args = append(args, filter.EndDate.UTC().Format("2006-01-02"))
	}

	return clause, args
}

// GetAll retrieves predictions based on filter criteria, newest first.
func (r *PredictionRepository) GetAll(filter *model.PredictionFilter) ([]model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)
	query := `
		SELECT DISTINCT ` + predictionColumns + `
		FROM predictions p
		LEFT JOIN detections d ON p.id = d.prediction_id
		WHERE 1=1` + where + `
		ORDER BY p.created_at DESC, p.id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []model.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, *p)
	}

	return predictions, rows.Err()
}

// GetTotalCount returns the total count of predictions matching the filter.
func (r *PredictionRepository) GetTotalCount(filter *model.PredictionFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)
	query := `
		SELECT COUNT(DISTINCT p.id)
		FROM predictions p
		LEFT JOIN detections d ON p.id = d.prediction_id
		WHERE 1=1` + where

	var count int
	if err := r.db.conn.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}

	return count, nil
}

// Exists checks if a prediction with the given filename exists.
func (r *PredictionRepository) Exists(filename string) (bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.conn.QueryRow(`SELECT COUNT(*) FROM predictions WHERE filename = ?`, filename).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check prediction existence: %w", err)
	}
	return count > 0, nil
}

// GetStats returns statistics about stored predictions.
func (r *PredictionRepository) GetStats() (*model.PredictionStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.PredictionStats{
		LabelCounts: make(map[string]int),
	}

	if err := r.db.conn.QueryRow(`SELECT COUNT(*), COALESCE(SUM(filesize), 0) FROM predictions`).
		Scan(&stats.TotalPredictions, &stats.TotalSizeBytes); err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	if err := r.db.conn.QueryRow(`SELECT COUNT(*) FROM detections`).Scan(&stats.TotalDetections); err != nil {
		return nil, fmt.Errorf("failed to count detections: %w", err)
	}

	// Most detected labels
	rows, err := r.db.conn.Query(`
		SELECT label, COUNT(*) as cnt
		FROM detections
		GROUP BY label
		ORDER BY cnt DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query label counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan label count: %w", err)
		}
		stats.LabelCounts[label] = count
	}

	return stats, rows.Err()
}

// DeleteByFilename removes a prediction by filename and reports whether a
// row matched. Its detections go with it through ON DELETE CASCADE.
func (r *PredictionRepository) DeleteByFilename(filename string) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.conn.Exec(`DELETE FROM predictions WHERE filename = ?`, filename)
	if err != nil {
		return false, fmt.Errorf("failed to delete prediction %s: %w", filename, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete prediction %s: %w", filename, err)
	}
	return n > 0, nil
}

// DeleteAll removes every prediction and, by cascade, every detection.
func (r *PredictionRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.conn.Exec(`DELETE FROM predictions`); err != nil {
		return fmt.Errorf("failed to delete predictions: %w", err)
	}
	return nil
}
