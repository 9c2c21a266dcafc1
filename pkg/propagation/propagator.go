package propagation

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

// SliceSegmenter segments one slice of the stack given a prompt. An empty
// mask is a valid result meaning nothing was found. Implementations own the
// image data and any embedding cache; slice indexes into that stack.
type SliceSegmenter interface {
	Segment(ctx context.Context, slice int, prompt Prompt) (*models.Mask, error)
}

// SegmenterFunc adapts a function to SliceSegmenter.
type SegmenterFunc func(ctx context.Context, slice int, prompt Prompt) (*models.Mask, error)

// Segment calls f.
func (f SegmenterFunc) Segment(ctx context.Context, slice int, prompt Prompt) (*models.Mask, error) {
	return f(ctx, slice, prompt)
}

// Seed is an already known mask of the object on one slice.
type Seed struct {
	Slice int
	Mask  *models.Mask
}

// Result is the outcome of propagating one object.
type Result struct {
	// Volume holds the object mask on every slice it was found on
	Volume *models.ObjectVolume

	// Trace lists every step taken
	Trace *Trace

	// Lower and Upper are the lowest and highest slices holding the object
	Lower, Upper int
}

// Propagator extends seed masks of a single object through a volume.
type Propagator struct {
	segmenter SliceSegmenter
	cfg       Config
	logger    *zap.Logger
}

// NewPropagator creates a propagator. A nil logger disables logging.
func NewPropagator(segmenter SliceSegmenter, cfg Config, logger *zap.Logger) *Propagator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Propagator{segmenter: segmenter, cfg: cfg, logger: logger}
}

// Config returns the propagation settings.
func (p *Propagator) Config() Config {
	return p.cfg
}

// Propagate builds a fresh object volume of the given shape from seeds and
// segments the object through it.
func (p *Propagator) Propagate(ctx context.Context, shape models.Shape, seeds []Seed) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	if !shape.Valid() {
		return nil, errors.Wrapf(ErrShapeMismatch, "volume shape %dx%dx%d", shape.Width, shape.Height, shape.Depth)
	}
	if len(seeds) == 0 {
		return nil, errors.Wrap(ErrInvalidSeeds, "no seeds")
	}

	sorted := make([]Seed, len(seeds))
	copy(sorted, seeds)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Slice < sorted[j].Slice })

	vol := models.NewObjectVolume(shape)
	for i, s := range sorted {
		if s.Slice < 0 || s.Slice > shape.LastSlice() {
			return nil, errors.Wrapf(ErrInvalidSeeds, "seed slice %d outside [0, %d]", s.Slice, shape.LastSlice())
		}
		if i > 0 && sorted[i-1].Slice == s.Slice {
			return nil, errors.Wrapf(ErrInvalidSeeds, "duplicate seed slice %d", s.Slice)
		}
		if s.Mask == nil || s.Mask.Empty() {
			return nil, errors.Wrapf(ErrEmptyMask, "seed slice %d", s.Slice)
		}
		if err := vol.Set(s.Slice, s.Mask.Clone()); err != nil {
			return nil, err
		}
	}
	return p.propagate(ctx, vol)
}

// PropagateVolume segments the object through vol, treating every slice that
// already holds a non-empty mask as a seed. vol is modified in place.
func (p *Propagator) PropagateVolume(ctx context.Context, vol *models.ObjectVolume) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(vol.SegmentedSlices()) == 0 {
		return nil, errors.Wrap(ErrInvalidSeeds, "volume holds no segmented slice")
	}
	return p.propagate(ctx, vol)
}

func (p *Propagator) propagate(ctx context.Context, vol *models.ObjectVolume) (*Result, error) {
	seeds := vol.SegmentedSlices()
	z0, z1 := seeds[0], seeds[len(seeds)-1]
	last := vol.Shape().LastSlice()

	r := &run{
		segmenter: p.segmenter,
		cfg:       p.cfg,
		vol:       vol,
		trace:     &Trace{},
		logger:    p.logger,
	}
	gate := &Gate{Threshold: p.cfg.IoUThreshold}

	if z0 > 0 && !p.cfg.StopLower {
		t, err := r.walk(ctx, z0, 0, Down, StopBefore, gate, PhaseBelow)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("lower walk finished", zap.Int("last", t.Last), zap.Stringer("reason", t.Reason))
	}

	if z1 < last && !p.cfg.StopUpper {
		t, err := r.walk(ctx, z1, last, Up, StopAfter, gate, PhaseAbove)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("upper walk finished", zap.Int("last", t.Last), zap.Stringer("reason", t.Reason))
	}

	for i := 1; i < len(seeds); i++ {
		if err := r.fillGap(ctx, seeds[i-1], seeds[i], z0, z1); err != nil {
			return nil, err
		}
	}

	res := &Result{Volume: vol, Trace: r.trace, Lower: z0, Upper: z1}
	if segmented := vol.SegmentedSlices(); len(segmented) > 0 {
		res.Lower, res.Upper = segmented[0], segmented[len(segmented)-1]
	}
	return res, nil
}
