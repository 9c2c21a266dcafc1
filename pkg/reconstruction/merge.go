package reconstruction

import "github.com/Mobinapournemat/micro-sam/internal/models"

// MergePolicy resolves voxels claimed by more than one object when the
// per-object volumes are combined.
type MergePolicy string

const (
	// MergeOverwrite lets the object merged last win
	MergeOverwrite MergePolicy = "overwrite"
	// MergeFirstWins keeps the label written first
	MergeFirstWins MergePolicy = "first"
	// MergeMax keeps the larger label
	MergeMax MergePolicy = "max"
)

// Valid reports whether p is a known policy.
func (p MergePolicy) Valid() bool {
	switch p {
	case MergeOverwrite, MergeFirstWins, MergeMax:
		return true
	}
	return false
}

// mergeObject writes the object volume into dst under label.
func mergeObject(dst *models.LabelVolume, obj *models.ObjectVolume, label uint32, policy MergePolicy) {
	n := dst.Width * dst.Height
	for _, z := range obj.SegmentedSlices() {
		m := obj.At(z)
		off := z * n
		for i, v := range m.Pix {
			if !v {
				continue
			}
			cur := dst.Data[off+i]
			switch policy {
			case MergeFirstWins:
				if cur == 0 {
					dst.Data[off+i] = label
				}
			case MergeMax:
				if label > cur {
					dst.Data[off+i] = label
				}
			default:
				dst.Data[off+i] = label
			}
		}
	}
}
