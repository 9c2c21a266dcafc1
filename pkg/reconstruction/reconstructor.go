// Package reconstruction builds a labeled 3D segmentation from seed labels by
// propagating every object through the stack and merging the results.
package reconstruction

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Mobinapournemat/micro-sam/internal/models"
	"github.com/Mobinapournemat/micro-sam/pkg/propagation"
)

// Params holds the reconstruction parameters.
type Params struct {
	// Propagation is applied to every object
	Propagation propagation.Config

	// NumWorkers is the number of objects propagated concurrently.
	// Every object writes into its own buffer, so results do not depend on it.
	NumWorkers int

	// MinObjectSize and MaxObjectSize filter seed objects by pixel count on
	// the seed slice. A MaxObjectSize of 0 disables the upper limit.
	MinObjectSize int
	MaxObjectSize int

	// MergePolicy resolves voxels claimed by several objects
	MergePolicy MergePolicy
}

// Reconstructor propagates all objects of a seed segmentation through a stack.
//
// The segmenter is shared by all workers and must be safe for concurrent use
// when NumWorkers is above 1.
type Reconstructor struct {
	params    *Params
	segmenter propagation.SliceSegmenter
	shape     models.Shape
	logger    *zap.Logger

	// stats of the last run, ordered by label
	stats []ObjectStats
}

// objectJob is one object to propagate, with its seed masks already in vol.
type objectJob struct {
	label uint32
	vol   *models.ObjectVolume
	cfg   propagation.Config
}

// NewReconstructor creates a reconstructor for a stack of the given shape.
func NewReconstructor(params *Params, segmenter propagation.SliceSegmenter, shape models.Shape, logger *zap.Logger) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{
		params:    params,
		segmenter: segmenter,
		shape:     shape,
		logger:    logger,
	}
}

// SegmentFromSlice segments every object found on slice z of seed through
// the whole volume. A negative z selects the middle slice. Objects are free
// to extend in both directions regardless of the configured stop flags.
func (r *Reconstructor) SegmentFromSlice(ctx context.Context, z int, seed *models.LabelVolume) (*models.LabelVolume, error) {
	if err := r.checkShape(seed); err != nil {
		return nil, err
	}
	if z < 0 {
		z = r.shape.Depth / 2
	}
	if z >= r.shape.Depth {
		return nil, errors.Errorf("seed slice %d outside [0, %d]", z, r.shape.LastSlice())
	}

	cfg := r.params.Propagation
	cfg.StopLower, cfg.StopUpper = false, false

	var jobs []objectJob
	for _, obj := range ObjectsInSlice(seed, z, r.params.MinObjectSize, r.params.MaxObjectSize) {
		vol := models.NewObjectVolume(r.shape)
		if err := vol.Set(z, obj.Mask); err != nil {
			return nil, err
		}
		jobs = append(jobs, objectJob{label: obj.Label, vol: vol, cfg: cfg})
	}
	r.logger.Info("segmenting objects from slice", zap.Int("slice", z), zap.Int("objects", len(jobs)))
	return r.run(ctx, jobs)
}

// SegmentVolume completes a partial segmentation: every slice on which a
// label occurs becomes a seed slice of that object.
func (r *Reconstructor) SegmentVolume(ctx context.Context, partial *models.LabelVolume) (*models.LabelVolume, error) {
	if err := r.checkShape(partial); err != nil {
		return nil, err
	}

	var jobs []objectJob
	for _, label := range partial.Labels() {
		vol := models.NewObjectVolume(r.shape)
		for z := 0; z < r.shape.Depth; z++ {
			m := partial.SliceMask(z, label)
			if m.Empty() {
				continue
			}
			if err := vol.Set(z, m); err != nil {
				return nil, err
			}
		}
		jobs = append(jobs, objectJob{label: label, vol: vol, cfg: r.params.Propagation})
	}
	r.logger.Info("completing partial segmentation", zap.Int("objects", len(jobs)))
	return r.run(ctx, jobs)
}

// Stats returns per-object statistics of the last run, ordered by label.
func (r *Reconstructor) Stats() []ObjectStats {
	return r.stats
}

func (r *Reconstructor) checkShape(lv *models.LabelVolume) error {
	if lv.Shape() != r.shape {
		return errors.Wrapf(models.ErrShapeMismatch, "label volume %dx%dx%d, stack %dx%dx%d",
			lv.Width, lv.Height, lv.Depth, r.shape.Width, r.shape.Height, r.shape.Depth)
	}
	return nil
}

// run propagates the jobs on a bounded worker pool and merges the results in
// job order once all are done.
func (r *Reconstructor) run(ctx context.Context, jobs []objectJob) (*models.LabelVolume, error) {
	runID := uuid.New()
	logger := r.logger.With(zap.Stringer("run", runID))
	start := time.Now()

	numWorkers := r.params.NumWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}

	results := make([]*propagation.Result, len(jobs))
	errs := make([]error, len(jobs))
	indices := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				job := jobs[i]
				objLogger := logger.With(zap.Uint32("object", job.label))
				p := propagation.NewPropagator(r.segmenter, job.cfg, objLogger)
				res, err := p.PropagateVolume(ctx, job.vol)
				if err != nil {
					errs[i] = errors.Wrapf(err, "object %d", job.label)
					continue
				}
				results[i] = res
				objLogger.Info("object propagated",
					zap.Int("lower", res.Lower),
					zap.Int("upper", res.Upper),
					zap.Int("steps", len(res.Trace.Events)))
			}
		}()
	}
	for i := range jobs {
		indices <- i
	}
	close(indices)
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}

	out := models.NewLabelVolume(r.shape)
	r.stats = make([]ObjectStats, 0, len(jobs))
	for i, job := range jobs {
		mergeObject(out, results[i].Volume, job.label, r.params.MergePolicy)
		r.stats = append(r.stats, computeStats(job.label, results[i].Volume))
	}

	logger.Info("reconstruction finished",
		zap.Int("objects", len(jobs)),
		zap.Int("workers", numWorkers),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// SeedObject is one object found on a seed slice.
type SeedObject struct {
	Label uint32
	Mask  *models.Mask
}

// ObjectsInSlice splits slice z of lv into per-label masks, ordered by label,
// dropping objects smaller than minSize or larger than maxSize (when maxSize > 0).
func ObjectsInSlice(lv *models.LabelVolume, z, minSize, maxSize int) []SeedObject {
	var out []SeedObject
	for _, label := range lv.SliceLabels(z) {
		m := lv.SliceMask(z, label)
		n := m.Count()
		if n < minSize || (maxSize > 0 && n > maxSize) {
			continue
		}
		out = append(out, SeedObject{Label: label, Mask: m})
	}
	return out
}
