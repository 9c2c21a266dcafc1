package propagation

import (
	"github.com/pkg/errors"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

// IoU returns the intersection over union of two masks of equal shape.
// Two empty masks have an IoU of 0.
func IoU(a, b *models.Mask) (float64, error) {
	if !a.SameShape(b) {
		return 0, errors.Wrapf(ErrShapeMismatch, "iou of %dx%d and %dx%d masks", a.Width, a.Height, b.Width, b.Height)
	}
	var inter, union int
	for i, va := range a.Pix {
		vb := b.Pix[i]
		if va && vb {
			inter++
		}
		if va || vb {
			union++
		}
	}
	if union == 0 {
		return 0, nil
	}
	return float64(inter) / float64(union), nil
}

// Gate decides whether walking beyond the seed range may continue.
type Gate struct {
	Threshold float64
}

// ShouldContinue reports whether IoU(a, b) reaches the threshold, along with the IoU.
func (g Gate) ShouldContinue(a, b *models.Mask) (bool, float64, error) {
	iou, err := IoU(a, b)
	if err != nil {
		return false, 0, err
	}
	return iou >= g.Threshold, iou, nil
}

// ShouldContinue reports whether IoU(a, b) >= threshold.
func ShouldContinue(a, b *models.Mask, threshold float64) (bool, error) {
	ok, _, err := Gate{Threshold: threshold}.ShouldContinue(a, b)
	return ok, err
}
