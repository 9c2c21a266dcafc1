package propagation

import (
	"image"
	"math"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

// Prompt is the hint handed to a SliceSegmenter. Box is always set; Mask and
// Points are present depending on the projection mode.
type Prompt struct {
	// Box is the half-open region expected to contain the object
	Box image.Rectangle

	// Mask is the source mask, used as a dense prompt
	Mask *models.Mask

	// Points are positive clicks on the object
	Points []image.Point
}

// HasMask reports whether the prompt carries a dense mask.
func (p Prompt) HasMask() bool {
	return p.Mask != nil
}

// Project derives the prompt for an adjacent slice from src.
// It returns ErrEmptyMask if src has no foreground.
func Project(src *models.Mask, mode ProjectionMode, boxExtension float64) (Prompt, error) {
	box := src.Bounds()
	if box.Empty() {
		return Prompt{}, ErrEmptyMask
	}
	p := Prompt{Box: extendBox(box, boxExtension, src.Width, src.Height)}
	switch mode {
	case ProjectMask:
		p.Mask = src.Clone()
	case ProjectPoints:
		p.Mask = src.Clone()
		p.Points = []image.Point{centralPoint(src)}
	}
	return p, nil
}

// extendBox grows b on every side and clips it to a w x h slice. Extensions
// of 1 or more are in pixels, smaller ones a fraction of the side length.
func extendBox(b image.Rectangle, ext float64, w, h int) image.Rectangle {
	if ext <= 0 {
		return b
	}
	ex, ey := ext, ext
	if ext < 1 {
		ex = ext * float64(b.Dx())
		ey = ext * float64(b.Dy())
	}
	out := image.Rect(
		int(math.Floor(float64(b.Min.X)-ex)),
		int(math.Floor(float64(b.Min.Y)-ey)),
		int(math.Ceil(float64(b.Max.X)+ex)),
		int(math.Ceil(float64(b.Max.Y)+ey)),
	)
	return out.Intersect(image.Rect(0, 0, w, h))
}

// centralPoint returns the foreground pixel closest to the mask centroid,
// so the point is on the object even for non-convex shapes.
func centralPoint(m *models.Mask) image.Point {
	var sx, sy, n float64
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] {
				sx += float64(x)
				sy += float64(y)
				n++
			}
		}
	}
	cx, cy := sx/n, sy/n

	best := image.Point{}
	bestDist := math.Inf(1)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.Pix[y*m.Width+x] {
				continue
			}
			dx, dy := float64(x)-cx, float64(y)-cy
			if d := dx*dx + dy*dy; d < bestDist {
				bestDist = d
				best = image.Pt(x, y)
			}
		}
	}
	return best
}
