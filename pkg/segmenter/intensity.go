package segmenter

import (
	"context"
	"image"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/Mobinapournemat/micro-sam/internal/models"
	"github.com/Mobinapournemat/micro-sam/pkg/propagation"
)

const bandEpsilon = 1e-9

// Params tunes the intensity segmenter.
type Params struct {
	// Tolerance is the accepted distance from the prompt intensity, in standard deviations
	Tolerance float64 `yaml:"tolerance"`

	// MinArea is the smallest accepted result; smaller ones are reported as empty
	MinArea int `yaml:"minArea"`

	// KeepLargestComponent drops everything but the largest connected region
	// when the prompt carries no point
	KeepLargestComponent bool `yaml:"keepLargestComponent"`
}

// DefaultParams returns a tolerance of one standard deviation, keeping the largest component.
func DefaultParams() Params {
	return Params{
		Tolerance:            1.0,
		MinArea:              1,
		KeepLargestComponent: true,
	}
}

// IntensitySegmenter segments a slice by selecting the pixels inside the
// prompt box whose intensity matches the prompted object.
//
// The object intensity is the median of the slice values under the prompt
// mask, or under the box when the prompt has no mask. The accepted band is
// Tolerance standard deviations of those values.
type IntensitySegmenter struct {
	cache  *EmbeddingCache
	params Params
	logger *zap.Logger
}

// NewIntensitySegmenter creates a segmenter reading embeddings from cache.
func NewIntensitySegmenter(cache *EmbeddingCache, params Params, logger *zap.Logger) *IntensitySegmenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntensitySegmenter{cache: cache, params: params, logger: logger}
}

// Segment implements propagation.SliceSegmenter.
func (s *IntensitySegmenter) Segment(ctx context.Context, slice int, prompt propagation.Prompt) (*models.Mask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb, err := s.cache.Get(slice)
	if err != nil {
		return nil, err
	}
	out := models.NewMask(emb.Width, emb.Height)

	box := prompt.Box.Intersect(image.Rect(0, 0, emb.Width, emb.Height))
	if box.Empty() {
		return out, nil
	}

	samples := s.sample(emb, box, prompt.Mask)
	if len(samples) == 0 {
		return out, nil
	}
	sort.Float64s(samples)
	center := stat.Quantile(0.5, stat.Empirical, samples, nil)
	spread := 0.0
	if len(samples) > 1 {
		spread = stat.StdDev(samples, nil)
	}
	band := s.params.Tolerance*spread + bandEpsilon

	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if math.Abs(emb.At(x, y)-center) <= band {
				out.Set(x, y, true)
			}
		}
	}

	switch {
	case len(prompt.Points) > 0:
		out = keepComponentsAt(out, prompt.Points)
	case s.params.KeepLargestComponent:
		out = keepLargestComponent(out)
	}

	if out.Count() < s.params.MinArea {
		s.logger.Debug("segment below minimum area", zap.Int("slice", slice), zap.Int("area", out.Count()))
		return models.NewMask(emb.Width, emb.Height), nil
	}
	return out, nil
}

// sample collects the values under the prompt mask, falling back to the box.
func (s *IntensitySegmenter) sample(emb *Embedding, box image.Rectangle, mask *models.Mask) []float64 {
	var out []float64
	if mask != nil && mask.Width == emb.Width && mask.Height == emb.Height {
		for i, v := range mask.Pix {
			if v {
				out = append(out, emb.Values[i])
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			out = append(out, emb.At(x, y))
		}
	}
	return out
}
