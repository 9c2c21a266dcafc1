package models

import (
	"sort"

	"github.com/pkg/errors"
)

// ObjectVolume is the per-object propagation buffer: one optional mask per
// slice. A nil entry means the object has not been segmented on that slice.
// It has a single writer for the duration of one propagation run.
type ObjectVolume struct {
	shape  Shape
	slices []*Mask
}

// NewObjectVolume returns an empty buffer for the given shape.
func NewObjectVolume(shape Shape) *ObjectVolume {
	return &ObjectVolume{shape: shape, slices: make([]*Mask, shape.Depth)}
}

// Shape returns the volume extent.
func (v *ObjectVolume) Shape() Shape {
	return v.shape
}

// Has reports whether slice z holds a mask.
func (v *ObjectVolume) Has(z int) bool {
	return z >= 0 && z < len(v.slices) && v.slices[z] != nil
}

// At returns the mask on slice z. Unwritten or out of range slices yield an empty mask.
func (v *ObjectVolume) At(z int) *Mask {
	if !v.Has(z) {
		return NewMask(v.shape.Width, v.shape.Height)
	}
	return v.slices[z]
}

// Set stores m on slice z.
func (v *ObjectVolume) Set(z int, m *Mask) error {
	if z < 0 || z >= len(v.slices) {
		return errors.Errorf("slice %d outside volume of depth %d", z, len(v.slices))
	}
	if !v.shape.SliceShape(m.Width, m.Height) {
		return errors.Wrapf(ErrShapeMismatch, "mask %dx%d for slice %d of %dx%d volume",
			m.Width, m.Height, z, v.shape.Width, v.shape.Height)
	}
	v.slices[z] = m
	return nil
}

// SegmentedSlices returns the ascending indices holding a non-empty mask.
func (v *ObjectVolume) SegmentedSlices() []int {
	var out []int
	for z, m := range v.slices {
		if m != nil && !m.Empty() {
			out = append(out, z)
		}
	}
	return out
}

// LabelVolume is a merged instance segmentation stored row-major
// (z*Width*Height + y*Width + x). Zero is background.
type LabelVolume struct {
	Data                 []uint32
	Width, Height, Depth int
}

// NewLabelVolume returns a background-only volume.
func NewLabelVolume(shape Shape) *LabelVolume {
	return &LabelVolume{
		Data:   make([]uint32, shape.Width*shape.Height*shape.Depth),
		Width:  shape.Width,
		Height: shape.Height,
		Depth:  shape.Depth,
	}
}

// Shape returns the volume extent.
func (lv *LabelVolume) Shape() Shape {
	return Shape{Width: lv.Width, Height: lv.Height, Depth: lv.Depth}
}

func (lv *LabelVolume) index(x, y, z int) int {
	return z*lv.Width*lv.Height + y*lv.Width + x
}

// At returns the label at voxel (x, y, z).
func (lv *LabelVolume) At(x, y, z int) uint32 {
	return lv.Data[lv.index(x, y, z)]
}

// Set writes the label at voxel (x, y, z).
func (lv *LabelVolume) Set(x, y, z int, label uint32) {
	lv.Data[lv.index(x, y, z)] = label
}

// SliceMask returns the mask of voxels on slice z carrying label.
func (lv *LabelVolume) SliceMask(z int, label uint32) *Mask {
	m := NewMask(lv.Width, lv.Height)
	off := z * lv.Width * lv.Height
	for i := range m.Pix {
		m.Pix[i] = lv.Data[off+i] == label
	}
	return m
}

// Labels returns the distinct non-zero labels in ascending order.
func (lv *LabelVolume) Labels() []uint32 {
	return distinctLabels(lv.Data)
}

// SliceLabels returns the distinct non-zero labels present on slice z.
func (lv *LabelVolume) SliceLabels(z int) []uint32 {
	n := lv.Width * lv.Height
	return distinctLabels(lv.Data[z*n : (z+1)*n])
}

func distinctLabels(data []uint32) []uint32 {
	seen := make(map[uint32]struct{})
	for _, l := range data {
		if l != 0 {
			seen[l] = struct{}{}
		}
	}
	out := make([]uint32, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
