// Package segmenter provides a prompt driven slice segmenter for the
// propagation package, together with the per-slice feature cache it reads.
package segmenter

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

// Embedding is the feature representation of one slice: intensities
// rescaled to [0, 1], row-major.
type Embedding struct {
	Width, Height int
	Values        []float64
}

// At returns the feature value at (x, y).
func (e *Embedding) At(x, y int) float64 {
	return e.Values[y*e.Width+x]
}

// EmbeddingCache computes slice embeddings on first use and keeps them for
// repeated prompts on the same slice. It is safe for concurrent use.
type EmbeddingCache struct {
	mu      sync.Mutex
	slices  []image.Image
	entries map[int]*Embedding
	shape   models.Shape
	logger  *zap.Logger
}

// NewEmbeddingCache creates a cache over a stack of equally sized slices.
func NewEmbeddingCache(slices []image.Image, logger *zap.Logger) (*EmbeddingCache, error) {
	if len(slices) == 0 {
		return nil, errors.New("no slices")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := slices[0].Bounds()
	for i, img := range slices[1:] {
		if img.Bounds().Dx() != b.Dx() || img.Bounds().Dy() != b.Dy() {
			return nil, errors.Wrapf(models.ErrShapeMismatch, "slice %d is %dx%d, slice 0 is %dx%d",
				i+1, img.Bounds().Dx(), img.Bounds().Dy(), b.Dx(), b.Dy())
		}
	}
	return &EmbeddingCache{
		slices:  slices,
		entries: make(map[int]*Embedding),
		shape:   models.Shape{Width: b.Dx(), Height: b.Dy(), Depth: len(slices)},
		logger:  logger,
	}, nil
}

// Shape returns the extent of the stack.
func (c *EmbeddingCache) Shape() models.Shape {
	return c.shape
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Get returns the embedding of slice z, computing it if needed.
func (c *EmbeddingCache) Get(z int) (*Embedding, error) {
	if z < 0 || z >= len(c.slices) {
		return nil, errors.Errorf("slice %d outside stack of %d", z, len(c.slices))
	}
	c.mu.Lock()
	e, ok := c.entries[z]
	c.mu.Unlock()
	if ok {
		return e, nil
	}

	e = computeEmbedding(c.slices[z])

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.entries[z]; ok {
		return prev, nil
	}
	c.entries[z] = e
	return e, nil
}

// Precompute fills the cache for every slice using the given number of workers.
func (c *EmbeddingCache) Precompute(workers int) error {
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int)
	errs := make([]error, len(c.slices))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for z := range jobs {
				_, errs[z] = c.Get(z)
			}
		}()
	}
	for z := range c.slices {
		jobs <- z
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	c.logger.Debug("precomputed embeddings", zap.Int("slices", len(c.slices)), zap.Int("workers", workers))
	return nil
}

// computeEmbedding converts an image to gray values and stretches them to [0, 1].
func computeEmbedding(img image.Image) *Embedding {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	values := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			values[y*w+x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 65535.0
		}
	}

	lo, hi := floats.Min(values), floats.Max(values)
	if hi > lo {
		floats.AddConst(-lo, values)
		floats.Scale(1/(hi-lo), values)
	} else {
		for i := range values {
			values[i] = 0
		}
	}
	return &Embedding{Width: w, Height: h, Values: values}
}
