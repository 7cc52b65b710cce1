package service

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"trackscan/internal/model"
	"trackscan/internal/repository"
	"trackscan/internal/service/storage"

	_ "golang.org/x/image/webp"
)

// BackfillReport summarizes a Backfill run.
type BackfillReport struct {
	Inserted int
	Existing int
	Skipped  []string
}

// Backfill records every annotated result that has no history row yet.
// Detections are not recoverable from the rendered image, so backfilled
// predictions carry none.
func Backfill(store *storage.Store, repo repository.PredictionRepository) (*BackfillReport, error) {
	names, err := store.ListResults()
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{}
	for _, name := range names {
		exists, err := repo.Exists(name)
		if err != nil {
			return report, fmt.Errorf("failed to check %s: %w", name, err)
		}
		if exists {
			report.Existing++
			continue
		}

		p, ok := backfillPrediction(store, name)
		if !ok {
			report.Skipped = append(report.Skipped, name)
			continue
		}
		if _, err := repo.Insert(p); err != nil {
			return report, fmt.Errorf("failed to insert %s: %w", name, err)
		}
		report.Inserted++
	}
	return report, nil
}

func backfillPrediction(store *storage.Store, name string) (*model.Prediction, bool) {
	storedAt, original, ok := storage.ParseStoredName(name)
	if !ok {
		return nil, false
	}

	resultPath := store.ResultPath(name)
	f, err := os.Open(resultPath)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, false
	}

	p := &model.Prediction{
		Filename:     name,
		OriginalName: original,
		ResultPath:   resultPath,
		Width:        cfg.Width,
		Height:       cfg.Height,
		CreatedAt:    storedAt,
	}

	if info, err := os.Stat(store.UploadPath(name)); err == nil {
		p.UploadPath = store.UploadPath(name)
		p.FileSize = info.Size()
		if storedAt.IsZero() {
			p.CreatedAt = info.ModTime()
		}
	}
	if p.CreatedAt.IsZero() {
		if info, err := f.Stat(); err == nil {
			p.CreatedAt = info.ModTime()
		}
	}
	return p, true
}
