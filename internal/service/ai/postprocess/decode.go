// Package postprocess turns raw detector output tensors into candidate boxes.
// It has no OpenCV dependency so it can be exercised by plain unit tests.
package postprocess

import (
	"fmt"
	"image"

	"trackscan/internal/dto"
)

// Candidate is one box above the confidence threshold, before NMS.
type Candidate struct {
	Box     image.Rectangle
	Score   float32
	ClassID int
}

// DecodeYOLO reads an Ultralytics YOLO head with boxes as center x/y, width,
// height in network input pixels. Two heads are understood:
//
//	v8: [1, 4+nc, N]  cx, cy, w, h, class scores...
//	v5: [1, 5+nc, N]  cx, cy, w, h, objectness, class scores...
//
// either of them possibly transposed to [1, N, attrs]. numClasses is the
// size of the label set and tells the two apart; 0 assumes the v8 head.
// sx and sy map input pixels to image pixels.
func DecodeYOLO(data []float32, dims []int, numClasses int, threshold, sx, sy float32) ([]Candidate, error) {
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("unexpected YOLO output shape %v", dims)
	}

	attrs, count, transposed := yoloLayout(dims, numClasses)
	first := 4
	if numClasses > 0 && attrs == numClasses+5 {
		first = 5
	}
	if attrs <= first {
		return nil, fmt.Errorf("YOLO output has %d attributes, need at least %d", attrs, first+1)
	}
	if len(data) < attrs*count {
		return nil, fmt.Errorf("YOLO output holds %d values, shape %v needs %d", len(data), dims, attrs*count)
	}

	at := func(attr, i int) float32 {
		if transposed {
			return data[i*attrs+attr]
		}
		return data[attr*count+i]
	}

	var candidates []Candidate
	for i := 0; i < count; i++ {
		classID, score := 0, float32(0)
		for c := first; c < attrs; c++ {
			if s := at(c, i); s > score {
				score = s
				classID = c - first
			}
		}
		if first == 5 {
			score *= at(4, i)
		}
		if score < threshold {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		candidates = append(candidates, Candidate{
			Box: image.Rect(
				int((cx-w/2)*sx),
				int((cy-h/2)*sy),
				int((cx+w/2)*sx),
				int((cy+h/2)*sy),
			),
			Score:   score,
			ClassID: classID,
		})
	}
	return candidates, nil
}

// yoloLayout returns the attribute count, the anchor count and whether the
// anchors are the outer dimension. A dimension matching the label set wins;
// otherwise the smaller dimension holds the attributes.
func yoloLayout(dims []int, numClasses int) (int, int, bool) {
	matches := func(n int) bool {
		return numClasses > 0 && (n == numClasses+4 || n == numClasses+5)
	}
	switch {
	case matches(dims[1]):
		return dims[1], dims[2], false
	case matches(dims[2]):
		return dims[2], dims[1], true
	case dims[1] > dims[2]:
		return dims[2], dims[1], true
	default:
		return dims[1], dims[2], false
	}
}

// DecodeSSD reads a DetectionOutput blob of rows
// [batch_id, class_id, confidence, x1, y1, x2, y2] with corners normalized
// to 0..1, scaled to a width x height image.
func DecodeSSD(data []float32, threshold float32, width, height int) ([]Candidate, error) {
	if len(data)%7 != 0 {
		return nil, fmt.Errorf("SSD output length %d is not a multiple of 7", len(data))
	}

	var candidates []Candidate
	for row := 0; row+7 <= len(data); row += 7 {
		confidence := data[row+2]
		if confidence < threshold {
			continue
		}
		x1 := int(data[row+3] * float32(width))
		y1 := int(data[row+4] * float32(height))
		x2 := int(data[row+5] * float32(width))
		y2 := int(data[row+6] * float32(height))

		candidates = append(candidates, Candidate{
			Box:     image.Rect(x1, y1, x2, y2),
			Score:   confidence,
			ClassID: int(data[row+1]),
		})
	}
	return candidates, nil
}

// Clip intersects the box with the image bounds.
func Clip(box image.Rectangle, width, height int) image.Rectangle {
	return box.Intersect(image.Rect(0, 0, width, height))
}

// Suppressor runs non-maximum suppression over parallel box and score slices
// and returns the indices to keep.
type Suppressor func(boxes []image.Rectangle, scores []float32) []int

// SuppressPerClass runs suppress once over all candidates with every class
// moved to its own region, so boxes of different classes never overlap.
// offset must exceed the largest box coordinate.
func SuppressPerClass(candidates []Candidate, offset int, suppress Suppressor) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		shift := c.ClassID * offset
		boxes[i] = c.Box.Add(image.Pt(shift, shift))
		scores[i] = c.Score
	}

	indices := suppress(boxes, scores)
	kept := make([]Candidate, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(candidates) {
			kept = append(kept, candidates[idx])
		}
	}
	return kept
}

// ToDetections names and clips candidates for a width x height image.
// Boxes falling entirely outside the image are dropped.
func ToDetections(candidates []Candidate, labels Labels, width, height int) []dto.DetectionResult {
	results := make([]dto.DetectionResult, 0, len(candidates))
	for _, c := range candidates {
		box := Clip(c.Box, width, height)
		if box.Empty() {
			continue
		}
		results = append(results, dto.DetectionResult{
			Label:      labels.Name(c.ClassID),
			ClassID:    c.ClassID,
			Confidence: float64(c.Score),
			X:          box.Min.X,
			Y:          box.Min.Y,
			Width:      box.Dx(),
			Height:     box.Dy(),
		})
	}
	return results
}
