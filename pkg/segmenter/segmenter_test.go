package segmenter

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mobinapournemat/micro-sam/internal/models"
	"github.com/Mobinapournemat/micro-sam/pkg/propagation"
)

// createTestImage draws bright rectangles on a dark background
func createTestImage(width, height int, rects ...image.Rectangle) image.Image {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func rectMask(width, height int, r image.Rectangle) *models.Mask {
	m := models.NewMask(width, height)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

func newTestSegmenter(t *testing.T, params Params, slices ...image.Image) *IntensitySegmenter {
	t.Helper()
	cache, err := NewEmbeddingCache(slices, nil)
	require.NoError(t, err)
	return NewIntensitySegmenter(cache, params, nil)
}

func TestEmbeddingCache(t *testing.T) {
	slices := []image.Image{
		createTestImage(16, 16, image.Rect(2, 2, 6, 6)),
		createTestImage(16, 16),
	}
	cache, err := NewEmbeddingCache(slices, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Shape{Width: 16, Height: 16, Depth: 2}, cache.Shape())

	a, err := cache.Get(0)
	require.NoError(t, err)
	b, err := cache.Get(0)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.InDelta(t, 1.0, a.At(3, 3), 1e-9)
	assert.InDelta(t, 0.0, a.At(10, 10), 1e-9)

	flat, err := cache.Get(1)
	require.NoError(t, err)
	for _, v := range flat.Values {
		assert.Zero(t, v)
	}

	_, err = cache.Get(2)
	assert.Error(t, err)
}

func TestEmbeddingCachePrecompute(t *testing.T) {
	slices := make([]image.Image, 7)
	for i := range slices {
		slices[i] = createTestImage(8, 8, image.Rect(0, 0, i+1, i+1))
	}
	cache, err := NewEmbeddingCache(slices, nil)
	require.NoError(t, err)
	require.NoError(t, cache.Precompute(3))
	assert.Equal(t, 7, cache.Len())
}

func TestEmbeddingCacheShapeMismatch(t *testing.T) {
	_, err := NewEmbeddingCache([]image.Image{createTestImage(8, 8), createTestImage(8, 9)}, nil)
	assert.ErrorIs(t, err, models.ErrShapeMismatch)

	_, err = NewEmbeddingCache(nil, nil)
	assert.Error(t, err)
}

func TestIntensitySegmenterMaskPrompt(t *testing.T) {
	object := image.Rect(8, 8, 20, 18)
	seg := newTestSegmenter(t, DefaultParams(), createTestImage(32, 32, object))

	// the previous slice was slightly larger than the object on this one
	prev := rectMask(32, 32, image.Rect(7, 7, 21, 19))
	prompt, err := propagation.Project(prev, propagation.ProjectMask, 0)
	require.NoError(t, err)

	got, err := seg.Segment(context.Background(), 0, prompt)
	require.NoError(t, err)
	assert.True(t, got.Equal(rectMask(32, 32, object)))
}

func TestIntensitySegmenterBoxPrompt(t *testing.T) {
	object := image.Rect(4, 4, 12, 12)
	seg := newTestSegmenter(t, DefaultParams(), createTestImage(32, 32, object))

	got, err := seg.Segment(context.Background(), 0, propagation.Prompt{Box: object})
	require.NoError(t, err)
	assert.True(t, got.Equal(rectMask(32, 32, object)))
}

func TestIntensitySegmenterPointSelectsComponent(t *testing.T) {
	left := image.Rect(2, 2, 8, 8)
	right := image.Rect(12, 2, 18, 8)
	seg := newTestSegmenter(t, DefaultParams(), createTestImage(32, 32, left, right))

	prompt := propagation.Prompt{
		Box:    image.Rect(0, 0, 20, 10),
		Mask:   rectMask(32, 32, right),
		Points: []image.Point{image.Pt(14, 4)},
	}
	got, err := seg.Segment(context.Background(), 0, prompt)
	require.NoError(t, err)
	assert.True(t, got.Equal(rectMask(32, 32, right)))
}

func TestIntensitySegmenterLargestComponent(t *testing.T) {
	small := image.Rect(2, 2, 5, 5)
	large := image.Rect(10, 2, 18, 10)
	seg := newTestSegmenter(t, DefaultParams(), createTestImage(32, 32, small, large))

	prompt := propagation.Prompt{
		Box:  image.Rect(0, 0, 20, 12),
		Mask: rectMask(32, 32, image.Rect(2, 2, 18, 5)),
	}
	got, err := seg.Segment(context.Background(), 0, prompt)
	require.NoError(t, err)
	assert.True(t, got.Equal(rectMask(32, 32, large)))
}

func TestIntensitySegmenterMinArea(t *testing.T) {
	params := DefaultParams()
	params.MinArea = 10
	object := image.Rect(4, 4, 7, 7)
	seg := newTestSegmenter(t, params, createTestImage(32, 32, object))

	got, err := seg.Segment(context.Background(), 0, propagation.Prompt{Box: object})
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestIntensitySegmenterBoxOutsideSlice(t *testing.T) {
	seg := newTestSegmenter(t, DefaultParams(), createTestImage(16, 16))
	got, err := seg.Segment(context.Background(), 0, propagation.Prompt{Box: image.Rect(20, 20, 30, 30)})
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestIntensitySegmenterCancelled(t *testing.T) {
	seg := newTestSegmenter(t, DefaultParams(), createTestImage(16, 16))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := seg.Segment(ctx, 0, propagation.Prompt{Box: image.Rect(0, 0, 4, 4)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeepLargestComponentEmpty(t *testing.T) {
	assert.True(t, keepLargestComponent(models.NewMask(4, 4)).Empty())
}
