package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

// Viewer extracts planes of a label volume and writes them as images.
// Label values are stored as 16-bit gray so they survive a round trip.
type Viewer struct {
	volume *models.LabelVolume
}

// NewViewer creates a viewer over a label volume
func NewViewer(volume *models.LabelVolume) *Viewer {
	return &Viewer{volume: volume}
}

// ExtractSlice extracts a 2D plane from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	lv := v.volume

	var (
		img     *image.Gray16
		extent  int
		project func(u, w int) (x, y, z int)
	)
	switch axis {
	case "x", "X":
		// YZ plane: columns are slices
		extent = lv.Width
		img = image.NewGray16(image.Rect(0, 0, lv.Depth, lv.Height))
		project = func(u, w int) (int, int, int) { return position, w, u }
	case "y", "Y":
		// XZ plane: rows are slices
		extent = lv.Height
		img = image.NewGray16(image.Rect(0, 0, lv.Width, lv.Depth))
		project = func(u, w int) (int, int, int) { return u, position, w }
	case "z", "Z":
		extent = lv.Depth
		img = image.NewGray16(image.Rect(0, 0, lv.Width, lv.Height))
		project = func(u, w int) (int, int, int) { return u, w, position }
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
	if position >= extent {
		return nil, fmt.Errorf("position %d exceeds %s extent %d", position, axis, extent)
	}

	b := img.Bounds()
	for w := 0; w < b.Dy(); w++ {
		for u := 0; u < b.Dx(); u++ {
			label := lv.At(project(u, w))
			if label > math.MaxUint16 {
				return nil, errors.Errorf("label %d does not fit a 16-bit image", label)
			}
			img.SetGray16(u, w, color.Gray16{Y: uint16(label)})
		}
	}
	return img, nil
}

// SaveSlice saves an extracted plane as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return errors.Wrapf(err, "encode %s", filename)
	}
	return file.Close()
}

// SaveSliceSequence extracts and saves every plane along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.volume.Width
	case "y", "Y":
		maxPos = v.volume.Height
	case "z", "Z":
		maxPos = v.volume.Depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("labels_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
