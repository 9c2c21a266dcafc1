package propagation

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

const testSize = 32

func squareMask(x, y, size int) *models.Mask {
	m := models.NewMask(testSize, testSize)
	for yy := y; yy < y+size; yy++ {
		for xx := x; xx < x+size; xx++ {
			m.Set(xx, yy, true)
		}
	}
	return m
}

func boxMask(r image.Rectangle) *models.Mask {
	return squareRect(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}

func squareRect(x0, y0, x1, y1 int) *models.Mask {
	m := models.NewMask(testSize, testSize)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

// recordingSegmenter echoes the prompt mask (or the filled box) and remembers
// every call. It fails calls outside [0, depth).
type recordingSegmenter struct {
	mu      sync.Mutex
	depth   int
	calls   map[int]int
	prompts map[int]Prompt
	respond func(slice int, p Prompt) *models.Mask
}

func newRecordingSegmenter(depth int) *recordingSegmenter {
	return &recordingSegmenter{
		depth:   depth,
		calls:   make(map[int]int),
		prompts: make(map[int]Prompt),
	}
}

func (s *recordingSegmenter) Segment(_ context.Context, slice int, p Prompt) (*models.Mask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slice < 0 || slice >= s.depth {
		return nil, fmt.Errorf("slice %d out of range", slice)
	}
	s.calls[slice]++
	s.prompts[slice] = p
	if s.respond != nil {
		return s.respond(slice, p), nil
	}
	if p.Mask != nil {
		return p.Mask.Clone(), nil
	}
	return boxMask(p.Box), nil
}

// shiftingSegmenter moves the prompt box one pixel right per call. From
// slice haltAt upward it answers with a square far from the prompt.
func shiftingSegmenter(haltAt int) SegmenterFunc {
	return func(_ context.Context, slice int, p Prompt) (*models.Mask, error) {
		if haltAt >= 0 && slice >= haltAt {
			return squareMask(0, 0, 3), nil
		}
		return boxMask(p.Box.Add(image.Pt(1, 0))), nil
	}
}

func maskRows(vol *models.ObjectVolume) [][]bool {
	out := make([][]bool, vol.Shape().Depth)
	for z := range out {
		out[z] = vol.At(z).Pix
	}
	return out
}

func testShape(depth int) models.Shape {
	return models.Shape{Width: testSize, Height: testSize, Depth: depth}
}
