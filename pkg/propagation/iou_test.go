package propagation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

func TestIoU(t *testing.T) {
	empty := models.NewMask(testSize, testSize)

	tests := []struct {
		name string
		a, b *models.Mask
		want float64
	}{
		{"identical", squareMask(4, 4, 10), squareMask(4, 4, 10), 1},
		{"disjoint", squareMask(0, 0, 4), squareMask(10, 10, 4), 0},
		{"half overlap", squareRect(0, 0, 4, 4), squareRect(2, 0, 6, 4), 8.0 / 24.0},
		{"one empty", squareMask(0, 0, 4), empty, 0},
		{"both empty", empty, empty, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := IoU(tc.a, tc.b)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestIoUShapeMismatch(t *testing.T) {
	_, err := IoU(models.NewMask(4, 4), models.NewMask(4, 5))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestShouldContinue(t *testing.T) {
	a := squareRect(0, 0, 10, 10)
	b := squareRect(1, 0, 11, 10) // iou 90/110

	ok, err := ShouldContinue(a, b, 0.8)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ShouldContinue(a, b, 0.85)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ShouldContinue(a, a, 1)
	require.NoError(t, err)
	assert.True(t, ok, "threshold is inclusive")

	empty := models.NewMask(testSize, testSize)
	ok, err = ShouldContinue(empty, empty, 0.01)
	require.NoError(t, err)
	assert.False(t, ok)
}
