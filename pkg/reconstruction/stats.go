package reconstruction

import (
	"gonum.org/v1/gonum/stat"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

// ObjectStats summarises one propagated object.
type ObjectStats struct {
	Label uint32

	// Voxels is the total number of foreground voxels
	Voxels int

	// Lower and Upper are the first and last slices holding the object, -1 if none
	Lower, Upper int

	// Slices is the number of slices holding the object
	Slices int

	// MeanArea and StdArea describe the per-slice area over those slices
	MeanArea float64
	StdArea  float64
}

func computeStats(label uint32, vol *models.ObjectVolume) ObjectStats {
	st := ObjectStats{Label: label, Lower: -1, Upper: -1}
	segmented := vol.SegmentedSlices()
	if len(segmented) == 0 {
		return st
	}

	areas := make([]float64, len(segmented))
	for i, z := range segmented {
		n := vol.At(z).Count()
		areas[i] = float64(n)
		st.Voxels += n
	}
	st.Lower, st.Upper = segmented[0], segmented[len(segmented)-1]
	st.Slices = len(segmented)
	if len(areas) > 1 {
		st.MeanArea, st.StdArea = stat.MeanStdDev(areas, nil)
	} else {
		st.MeanArea = areas[0]
	}
	return st
}
