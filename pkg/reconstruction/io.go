package reconstruction

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

// LoadSlices loads the image slices of a stack from dir.
// JPEG and PNG files are accepted and ordered by the number in their name,
// which keeps the anatomical order of the stack.
func LoadSlices(dir string) ([]models.Slice, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			imageFiles = append(imageFiles, e.Name())
		}
	}
	if len(imageFiles) == 0 {
		return nil, errors.Errorf("no JPG or PNG images found in %s", dir)
	}

	sort.SliceStable(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	slices := make([]models.Slice, 0, len(imageFiles))
	for i, name := range imageFiles {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load image %s", name)
		}
		if i > 0 {
			first := slices[0].Image.Bounds()
			if img.Bounds().Dx() != first.Dx() || img.Bounds().Dy() != first.Dy() {
				return nil, errors.Wrapf(models.ErrShapeMismatch, "%s is %dx%d, expected %dx%d",
					name, img.Bounds().Dx(), img.Bounds().Dy(), first.Dx(), first.Dy())
			}
		}
		slices = append(slices, models.Slice{Image: img, Index: i, Filename: name})
	}
	return slices, nil
}

// Images returns the images of slices in order.
func Images(slices []models.Slice) []image.Image {
	out := make([]image.Image, len(slices))
	for i, s := range slices {
		out[i] = s.Image
	}
	return out
}

// LoadLabelImage reads a 2D label image. Gray, 16-bit gray and paletted
// images keep their raw values; other color models are converted to 16-bit gray.
func LoadLabelImage(path string) ([]uint32, int, int, error) {
	img, err := loadImage(path)
	if err != nil {
		return nil, 0, 0, err
	}
	labels := labelsFromImage(img)
	return labels, img.Bounds().Dx(), img.Bounds().Dy(), nil
}

// LoadLabelStack reads a directory of label slices, ordered like LoadSlices,
// into one label volume.
func LoadLabelStack(dir string) (*models.LabelVolume, error) {
	slices, err := LoadSlices(dir)
	if err != nil {
		return nil, err
	}
	b := slices[0].Image.Bounds()
	lv := models.NewLabelVolume(models.Shape{Width: b.Dx(), Height: b.Dy(), Depth: len(slices)})
	n := b.Dx() * b.Dy()
	for z, s := range slices {
		copy(lv.Data[z*n:(z+1)*n], labelsFromImage(s.Image))
	}
	return lv, nil
}

func labelsFromImage(img image.Image) []uint32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	labels := make([]uint32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px, py := b.Min.X+x, b.Min.Y+y
			var v uint32
			switch im := img.(type) {
			case *image.Gray:
				v = uint32(im.GrayAt(px, py).Y)
			case *image.Gray16:
				v = uint32(im.Gray16At(px, py).Y)
			case *image.Paletted:
				v = uint32(im.ColorIndexAt(px, py))
			default:
				v = uint32(color.Gray16Model.Convert(img.At(px, py)).(color.Gray16).Y)
			}
			labels[y*w+x] = v
		}
	}
	return labels
}

// SeedVolume returns a label volume of the given shape holding labels on slice z only.
func SeedVolume(shape models.Shape, z int, labels []uint32) (*models.LabelVolume, error) {
	if z < 0 || z >= shape.Depth {
		return nil, errors.Errorf("seed slice %d outside [0, %d]", z, shape.LastSlice())
	}
	if len(labels) != shape.Width*shape.Height {
		return nil, errors.Wrapf(models.ErrShapeMismatch, "%d labels for %dx%d slices", len(labels), shape.Width, shape.Height)
	}
	lv := models.NewLabelVolume(shape)
	copy(lv.Data[z*shape.Width*shape.Height:], labels)
	return lv, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	var digits strings.Builder
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return num
}

// loadImage loads an image from a file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}
