// Package propagation extends a 2D object mask through a stack of slices by
// repeatedly prompting a slice segmenter with the mask of the neighbouring slice.
//
// Propagation runs outward from the lowest and highest seed slices until the
// overlap between consecutive masks drops below an IoU threshold, and fills
// the gaps between seed slices by walking inward from both ends.
package propagation

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

var (
	// ErrEmptyMask is returned when a prompt is projected from a mask without foreground.
	ErrEmptyMask = errors.New("mask has no foreground")

	// ErrShapeMismatch is returned when image, mask or volume shapes disagree.
	ErrShapeMismatch = models.ErrShapeMismatch

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid propagation config")

	// ErrInvalidSeeds is returned when no seeds are given or two seeds share a slice.
	ErrInvalidSeeds = errors.New("invalid seed slices")
)

// ProjectionMode selects which prompt parts are derived from the previous slice.
type ProjectionMode string

const (
	// ProjectMask prompts with the bounding box and the mask itself.
	ProjectMask ProjectionMode = "mask"
	// ProjectBoundingBox prompts with the bounding box only.
	ProjectBoundingBox ProjectionMode = "bounding_box"
	// ProjectPoints prompts with box, mask and a positive point on the object.
	ProjectPoints ProjectionMode = "points"
)

// Valid reports whether m is a known mode.
func (m ProjectionMode) Valid() bool {
	switch m {
	case ProjectMask, ProjectBoundingBox, ProjectPoints:
		return true
	}
	return false
}

// Config controls one propagation call and does not change while it runs.
type Config struct {
	// Projection selects how a mask is turned into a prompt for the next slice
	Projection ProjectionMode `yaml:"projection"`

	// IoUThreshold is the minimum overlap between consecutive slices for
	// propagation beyond the seed range to continue. Must be in (0, 1].
	IoUThreshold float64 `yaml:"iouThreshold"`

	// BoxExtension grows projected boxes: values below 1 are a fraction of the
	// box size, values of 1 or more are pixels.
	BoxExtension float64 `yaml:"boxExtension"`

	// StopLower keeps the object from extending below its lowest seed slice
	StopLower bool `yaml:"stopLower"`

	// StopUpper keeps the object from extending above its highest seed slice
	StopUpper bool `yaml:"stopUpper"`
}

// DefaultConfig returns mask projection with an IoU threshold of 0.8.
func DefaultConfig() Config {
	return Config{
		Projection:   ProjectMask,
		IoUThreshold: 0.8,
	}
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	var err error
	if !c.Projection.Valid() {
		err = multierr.Append(err, fmt.Errorf("unknown projection %q", c.Projection))
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		err = multierr.Append(err, fmt.Errorf("iou threshold %v outside (0, 1]", c.IoUThreshold))
	}
	if c.BoxExtension < 0 {
		err = multierr.Append(err, fmt.Errorf("box extension %v is negative", c.BoxExtension))
	}
	if err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}
