package segmenter

import (
	"image"

	"github.com/Mobinapournemat/micro-sam/internal/models"
)

// labelComponents assigns every foreground pixel a 4-connected component id
// starting at 1, in scan order. It returns the labels and the component sizes
// indexed by id.
func labelComponents(m *models.Mask) ([]int, []int) {
	labels := make([]int, len(m.Pix))
	sizes := []int{0}
	var stack []image.Point

	for start, v := range m.Pix {
		if !v || labels[start] != 0 {
			continue
		}
		id := len(sizes)
		sizes = append(sizes, 0)
		labels[start] = id
		stack = append(stack[:0], image.Pt(start%m.Width, start/m.Width))

		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			sizes[id]++
			for _, d := range [...]image.Point{image.Pt(1, 0), image.Pt(-1, 0), image.Pt(0, 1), image.Pt(0, -1)} {
				q := p.Add(d)
				if !m.At(q.X, q.Y) {
					continue
				}
				i := q.Y*m.Width + q.X
				if labels[i] == 0 {
					labels[i] = id
					stack = append(stack, q)
				}
			}
		}
	}
	return labels, sizes
}

// keepLargestComponent returns a mask holding only the largest component.
// Ties go to the component found first.
func keepLargestComponent(m *models.Mask) *models.Mask {
	labels, sizes := labelComponents(m)
	best := 0
	for id := 1; id < len(sizes); id++ {
		if sizes[id] > sizes[best] {
			best = id
		}
	}
	return selectComponents(m, labels, map[int]bool{best: best != 0})
}

// keepComponentsAt returns a mask holding the components under the points.
func keepComponentsAt(m *models.Mask, points []image.Point) *models.Mask {
	labels, _ := labelComponents(m)
	keep := make(map[int]bool)
	for _, p := range points {
		if m.At(p.X, p.Y) {
			keep[labels[p.Y*m.Width+p.X]] = true
		}
	}
	return selectComponents(m, labels, keep)
}

func selectComponents(m *models.Mask, labels []int, keep map[int]bool) *models.Mask {
	out := models.NewMask(m.Width, m.Height)
	for i, id := range labels {
		out.Pix[i] = id != 0 && keep[id]
	}
	return out
}
