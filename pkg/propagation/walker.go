package propagation

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

// Direction is the step taken along the slice axis.
type Direction int

const (
	Down Direction = -1
	Up   Direction = 1
)

// StopRule decides when a walk has reached its boundary slice. It is
// evaluated against the next slice the walk would segment.
type StopRule int

const (
	// StopBefore stops once the next slice is below the boundary
	StopBefore StopRule = iota
	// StopAtOrBefore stops once the next slice is the boundary or below it
	StopAtOrBefore
	// StopAfter stops once the next slice is above the boundary
	StopAfter
	// StopAtOrAfter stops once the next slice is the boundary or above it
	StopAtOrAfter
)

func (r StopRule) reached(next, boundary int) bool {
	switch r {
	case StopBefore:
		return next < boundary
	case StopAtOrBefore:
		return next <= boundary
	case StopAfter:
		return next > boundary
	case StopAtOrAfter:
		return next >= boundary
	}
	return true
}

// Reason explains why a walk ended.
type Reason int

const (
	// ReasonBoundary means the walk reached its boundary slice
	ReasonBoundary Reason = iota
	// ReasonIoU means the overlap with the previous slice fell below the threshold
	ReasonIoU
	// ReasonEmptySource means the previous slice had no foreground to project
	ReasonEmptySource
)

func (r Reason) String() string {
	switch r {
	case ReasonBoundary:
		return "boundary"
	case ReasonIoU:
		return "iou-below-threshold"
	case ReasonEmptySource:
		return "empty-source"
	}
	return "unknown"
}

// Termination is the outcome of a walk. Last is the last slice holding a
// mask written by the walk, or the start slice if nothing was written.
type Termination struct {
	Last   int
	Reason Reason
}

// run holds the state of one object's propagation. The volume has a single
// writer: the run itself.
type run struct {
	segmenter SliceSegmenter
	cfg       Config
	vol       *models.ObjectVolume
	trace     *Trace
	logger    *zap.Logger
}

// walk segments slice after slice from start in direction dir until rule
// fires for boundary. With a gate, a result that overlaps too little with
// the previous slice is dropped and ends the walk.
func (r *run) walk(
	ctx context.Context,
	start, boundary int,
	dir Direction,
	rule StopRule,
	gate *Gate,
	phase Phase,
) (Termination, error) {
	last := start
	step := int(dir)
	for z := start + step; !rule.reached(z, boundary); z += step {
		if z < 0 || z > r.vol.Shape().LastSlice() {
			break
		}
		prev := r.vol.At(z - step)
		prompt, err := Project(prev, r.cfg.Projection, r.cfg.BoxExtension)
		if errors.Is(err, ErrEmptyMask) {
			r.trace.add(Event{Slice: z, Phase: phase, Action: ActionEmptySource})
			r.logger.Info("propagation stopped, previous slice is empty",
				zap.Int("slice", z), zap.Stringer("phase", phase))
			return Termination{Last: last, Reason: ReasonEmptySource}, nil
		}
		if err != nil {
			return Termination{Last: last}, err
		}

		candidate, err := r.segment(ctx, z, prompt)
		if err != nil {
			return Termination{Last: last}, err
		}

		if gate != nil {
			ok, iou, err := gate.ShouldContinue(prev, candidate)
			if err != nil {
				return Termination{Last: last}, err
			}
			if !ok {
				r.trace.add(Event{Slice: z, Phase: phase, Action: ActionRejected, IoU: iou})
				r.logger.Info("propagation stopped",
					zap.Int("slice", z),
					zap.Float64("iou", iou),
					zap.Float64("threshold", gate.Threshold),
					zap.Stringer("phase", phase))
				return Termination{Last: last, Reason: ReasonIoU}, nil
			}
			if err := r.write(z, candidate, phase, iou); err != nil {
				return Termination{Last: last}, err
			}
		} else if err := r.write(z, candidate, phase, 0); err != nil {
			return Termination{Last: last}, err
		}
		last = z
	}
	return Termination{Last: last, Reason: ReasonBoundary}, nil
}

// segmentFromUnion segments slice z prompted by the union of the masks on
// slices a and b.
func (r *run) segmentFromUnion(ctx context.Context, z, a, b int) error {
	union, err := models.Union(r.vol.At(a), r.vol.At(b))
	if err != nil {
		return err
	}
	prompt, err := Project(union, r.cfg.Projection, r.cfg.BoxExtension)
	if errors.Is(err, ErrEmptyMask) {
		r.trace.add(Event{Slice: z, Phase: PhaseMidpoint, Action: ActionEmptySource})
		r.logger.Info("midpoint skipped, both neighbours are empty",
			zap.Int("slice", z), zap.Int("lower", a), zap.Int("upper", b))
		return nil
	}
	if err != nil {
		return err
	}
	m, err := r.segment(ctx, z, prompt)
	if err != nil {
		return err
	}
	return r.write(z, m, PhaseMidpoint, 0)
}

func (r *run) segment(ctx context.Context, z int, prompt Prompt) (*models.Mask, error) {
	m, err := r.segmenter.Segment(ctx, z, prompt)
	if err != nil {
		return nil, errors.Wrapf(err, "segment slice %d", z)
	}
	if m == nil {
		return nil, errors.Errorf("segmenter returned no mask for slice %d", z)
	}
	if !r.vol.Shape().SliceShape(m.Width, m.Height) {
		return nil, errors.Wrapf(ErrShapeMismatch, "segmenter returned %dx%d mask for slice %d", m.Width, m.Height, z)
	}
	return m, nil
}

func (r *run) write(z int, m *models.Mask, phase Phase, iou float64) error {
	if err := r.vol.Set(z, m); err != nil {
		return err
	}
	r.trace.add(Event{Slice: z, Phase: phase, Action: ActionWritten, IoU: iou})
	r.logger.Debug("segmented slice", zap.Int("slice", z), zap.Stringer("phase", phase), zap.Int("area", m.Count()))
	return nil
}
