package models

import (
	"image"

	"github.com/pkg/errors"
)

// ErrShapeMismatch is returned when image, mask or volume spatial shapes disagree.
var ErrShapeMismatch = errors.New("shape mismatch")

// Slice represents a single image slice of the stack with metadata
type Slice struct {
	// Image is the actual slice image data
	Image image.Image

	// Index is the position of this slice along the propagation axis
	Index int

	// Filename is the original filename of the slice
	Filename string
}

// Shape is the extent of a volume: Depth slices of Width x Height pixels.
type Shape struct {
	Width, Height, Depth int
}

// SliceShape reports whether a 2D mask of w x h fits the slices of s.
func (s Shape) SliceShape(w, h int) bool {
	return s.Width == w && s.Height == h
}

// Valid reports whether every dimension is positive.
func (s Shape) Valid() bool {
	return s.Width > 0 && s.Height > 0 && s.Depth > 0
}

// LastSlice is the index of the highest slice.
func (s Shape) LastSlice() int {
	return s.Depth - 1
}

// Mask is a binary mask over one slice, stored row-major.
type Mask struct {
	Width, Height int
	Pix           []bool
}

// NewMask returns an empty mask of the given size.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Pix: make([]bool, width*height)}
}

// At reports whether (x, y) is foreground. Out of range coordinates are background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set marks (x, y) as foreground or background.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Empty reports whether the mask has no foreground.
func (m *Mask) Empty() bool {
	for _, v := range m.Pix {
		if v {
			return false
		}
	}
	return true
}

// Bounds returns the half-open rectangle enclosing the foreground,
// or the zero rectangle if the mask is empty.
func (m *Mask) Bounds() image.Rectangle {
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if !v {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			maxY = y
		}
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// SameShape reports whether both masks cover the same pixel grid.
func (m *Mask) SameShape(o *Mask) bool {
	return m.Width == o.Width && m.Height == o.Height
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	c := &Mask{Width: m.Width, Height: m.Height, Pix: make([]bool, len(m.Pix))}
	copy(c.Pix, m.Pix)
	return c
}

// Equal reports whether both masks have the same shape and foreground.
func (m *Mask) Equal(o *Mask) bool {
	if !m.SameShape(o) {
		return false
	}
	for i, v := range m.Pix {
		if o.Pix[i] != v {
			return false
		}
	}
	return true
}

// Union returns the logical OR of two masks of equal shape.
func Union(a, b *Mask) (*Mask, error) {
	if !a.SameShape(b) {
		return nil, errors.Wrapf(ErrShapeMismatch, "union of %dx%d and %dx%d masks", a.Width, a.Height, b.Width, b.Height)
	}
	u := NewMask(a.Width, a.Height)
	for i := range u.Pix {
		u.Pix[i] = a.Pix[i] || b.Pix[i]
	}
	return u, nil
}
