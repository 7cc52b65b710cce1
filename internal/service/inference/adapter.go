// Package inference turns a stored upload into an annotated result image.
package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"trackscan/internal/apperror"
	"trackscan/internal/config"
	"trackscan/internal/dto"
	"trackscan/internal/logger"

	"github.com/disintegration/imaging"
)

// Detector finds objects in an image. Boxes are in the coordinates of img.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]dto.DetectionResult, error)
}

// Adapter runs the resize, detect, annotate and save steps for one image.
// It holds no per-request state and is safe for concurrent use when the
// Detector is.
type Adapter struct {
	detector    Detector
	resultDir   string
	inputSize   int
	feedResized bool
	jpegQuality int
	logger      *logger.Logger
}

func NewAdapter(detector Detector, cfg *config.Config, logger *logger.Logger) *Adapter {
	return &Adapter{
		detector:    detector,
		resultDir:   cfg.ResultDirectory,
		inputSize:   cfg.InputSize,
		feedResized: cfg.FeedResized,
		jpegQuality: cfg.JPEGQuality,
		logger:      logger,
	}
}

// Run processes the image at imagePath and writes the annotated copy to the
// results directory under filename.
func (a *Adapter) Run(ctx context.Context, imagePath, filename string) (*dto.InferenceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, format, err := decodeFile(imagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("failed to read %s: %v: %w", imagePath, err, apperror.ErrStorageFailure)
		}
		return nil, fmt.Errorf("%s: %v: %w", filename, err, apperror.ErrInvalidUpload)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	resized := imaging.Resize(src, a.inputSize, a.inputSize, imaging.Lanczos)

	feed := src
	if a.feedResized {
		feed = resized
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	detections, err := a.detector.Detect(ctx, feed)
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("detector failed on %s: %v: %w", filename, err, apperror.ErrInferenceFailure)
	}

	if a.feedResized {
		sx := float64(width) / float64(a.inputSize)
		sy := float64(height) / float64(a.inputSize)
		for i := range detections {
			detections[i] = detections[i].Scale(sx, sy)
		}
	}

	annotated := Annotate(src, detections)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resultPath := filepath.Join(a.resultDir, filename)
	if err := writeAtomic(resultPath, annotated, outputFormat(filename, format), a.jpegQuality); err != nil {
		return nil, fmt.Errorf("failed to save result %s: %v: %w", filename, err, apperror.ErrStorageFailure)
	}

	a.logger.Info("Processed %s: %d objects in %dms", filename, len(detections), elapsed.Milliseconds())

	if detections == nil {
		detections = []dto.DetectionResult{}
	}
	return &dto.InferenceResult{
		Filename:   filename,
		ResultPath: resultPath,
		Detections: detections,
		Width:      width,
		Height:     height,
		Duration:   elapsed,
	}, nil
}
