package dto

import "image"

// DetectionResult is one object found by the detector, in pixel coordinates
// of the image that was passed to it.
type DetectionResult struct {
	Label      string  `json:"label"`
	ClassID    int     `json:"classId"`
	Confidence float64 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// Rect returns the detection box as an image.Rectangle.
func (d DetectionResult) Rect() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
}

// Scale maps the box from one coordinate space to another by the given factors.
func (d DetectionResult) Scale(sx, sy float64) DetectionResult {
	x0 := int(float64(d.X)*sx + 0.5)
	y0 := int(float64(d.Y)*sy + 0.5)
	x1 := int(float64(d.X+d.Width)*sx + 0.5)
	y1 := int(float64(d.Y+d.Height)*sy + 0.5)

	d.X, d.Y = x0, y0
	d.Width, d.Height = x1-x0, y1-y0
	return d
}
