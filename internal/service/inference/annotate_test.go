package inference

import (
	"image"
	"image/color"
	"testing"

	"trackscan/internal/dto"
)

func TestAnnotate_DrawsBoxInClassColor(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 200, 150))
	det := dto.DetectionResult{Label: "crack", ClassID: 3, Confidence: 0.75, X: 50, Y: 60, Width: 80, Height: 50}

	out := Annotate(src, []dto.DetectionResult{det})

	want := classColor(3)
	for _, pt := range []image.Point{{50, 80}, {129, 80}, {90, 109}} {
		if got := out.NRGBAAt(pt.X, pt.Y); got != want {
			t.Errorf("pixel %v: expected %v, got %v", pt, want, got)
		}
	}

	if got := out.NRGBAAt(90, 85); got != (color.NRGBA{}) {
		t.Errorf("box interior should be untouched, got %v", got)
	}
	if got := out.NRGBAAt(190, 140); got != (color.NRGBA{}) {
		t.Errorf("pixels outside the box should be untouched, got %v", got)
	}
	if src.NRGBAAt(50, 80) != (color.NRGBA{}) {
		t.Error("source image must not be modified")
	}
}

func TestAnnotate_CaptionAboveBox(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 200, 150))
	det := dto.DetectionResult{Label: "bolt", ClassID: 0, Confidence: 0.5, X: 20, Y: 60, Width: 80, Height: 50}

	out := Annotate(src, []dto.DetectionResult{det})

	// The caption tab is filled with the class colour just above the box.
	if got := out.NRGBAAt(21, 58); got != classColor(0) {
		t.Errorf("expected caption background above box, got %v", got)
	}
}

func TestAnnotate_ClipsAndSkips(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	detections := []dto.DetectionResult{
		{Label: "edge", ClassID: 1, Confidence: 0.9, X: -10, Y: 0, Width: 30, Height: 50},
		{Label: "outside", ClassID: 2, Confidence: 0.9, X: 100, Y: 100, Width: 10, Height: 10},
	}

	out := Annotate(src, detections)
	if out.Bounds() != src.Bounds() {
		t.Fatalf("annotated bounds %v differ from source %v", out.Bounds(), src.Bounds())
	}
	if got := out.NRGBAAt(0, 30); got != classColor(1) {
		t.Errorf("clipped box should be drawn on the left edge, got %v", got)
	}
}

func TestClassColor_Stable(t *testing.T) {
	if classColor(1) != classColor(1+len(palette)) {
		t.Error("palette should wrap by class id")
	}
	if classColor(-1) != classColor(1) {
		t.Error("negative ids should map into the palette")
	}
	if textColor(color.NRGBA{R: 255, G: 255, B: 255, A: 255}) != color.Black {
		t.Error("expected black text on white")
	}
}
