package inference

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"trackscan/internal/dto"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// palette is indexed by class id so one class keeps its colour across images.
var palette = []color.NRGBA{
	{255, 56, 56, 255}, {255, 157, 151, 255}, {255, 112, 31, 255}, {255, 178, 29, 255},
	{207, 210, 49, 255}, {72, 249, 10, 255}, {146, 204, 23, 255}, {61, 219, 134, 255},
	{26, 147, 52, 255}, {0, 212, 187, 255}, {44, 153, 168, 255}, {0, 194, 255, 255},
	{52, 69, 147, 255}, {100, 115, 255, 255}, {0, 24, 236, 255}, {132, 56, 255, 255},
	{82, 0, 133, 255}, {203, 56, 255, 255}, {255, 149, 200, 255}, {255, 55, 199, 255},
}

func classColor(classID int) color.NRGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

// Annotate returns a copy of img with every detection drawn as a box and a
// "label confidence" caption.
func Annotate(img image.Image, detections []dto.DetectionResult) *image.NRGBA {
	canvas := imaging.Clone(img)
	w, h := canvas.Bounds().Dx(), canvas.Bounds().Dy()
	stroke := int(math.Max(2, 0.003*float64(min(w, h))))

	face := basicfont.Face7x13
	for _, det := range detections {
		c := classColor(det.ClassID)
		rect := det.Rect().Intersect(canvas.Bounds())
		if rect.Empty() {
			continue
		}
		drawBox(canvas, rect, c, stroke)
		drawCaption(canvas, face, rect, fmt.Sprintf("%s %.2f", det.Label, det.Confidence), c)
	}
	return canvas
}

// drawCaption puts text on a filled tab above the box, or inside it when the
// box touches the top edge.
func drawCaption(img *image.NRGBA, face font.Face, box image.Rectangle, text string, bg color.NRGBA) {
	metrics := face.Metrics()
	textW := font.MeasureString(face, text).Ceil()
	textH := (metrics.Ascent + metrics.Descent).Ceil()
	pad := 2

	top := box.Min.Y - textH - 2*pad
	if top < 0 {
		top = box.Min.Y
	}
	tab := image.Rect(box.Min.X, top, box.Min.X+textW+2*pad, top+textH+2*pad).Intersect(img.Bounds())
	draw.Draw(img, tab, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor(bg)),
		Face: face,
		Dot:  fixed.P(box.Min.X+pad, top+pad+metrics.Ascent.Ceil()),
	}
	d.DrawString(text)
}

// textColor picks black or white for contrast against bg.
func textColor(bg color.NRGBA) color.Color {
	luma := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if luma > 150 {
		return color.Black
	}
	return color.White
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	x0, x1 = max(x0, b.Min.X), min(x1, b.Max.X)
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	y0, y1 = max(y0, b.Min.Y), min(y1, b.Max.Y)
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
