package propagation

import "sort"

// Phase names the part of a propagation run that produced an event.
type Phase int

const (
	// PhaseBelow walks from the lowest seed toward slice 0
	PhaseBelow Phase = iota
	// PhaseAbove walks from the highest seed toward the last slice
	PhaseAbove
	// PhaseGap walks between two seed slices
	PhaseGap
	// PhaseMidpoint segments a slice from the union of its two neighbours
	PhaseMidpoint
)

func (p Phase) String() string {
	switch p {
	case PhaseBelow:
		return "below"
	case PhaseAbove:
		return "above"
	case PhaseGap:
		return "gap"
	case PhaseMidpoint:
		return "midpoint"
	}
	return "unknown"
}

// Action is what happened to a slice.
type Action int

const (
	// ActionWritten means the segmenter result was stored
	ActionWritten Action = iota
	// ActionRejected means the result failed the IoU gate and was dropped
	ActionRejected
	// ActionEmptySource means no prompt could be built because the source mask was empty
	ActionEmptySource
)

func (a Action) String() string {
	switch a {
	case ActionWritten:
		return "written"
	case ActionRejected:
		return "rejected"
	case ActionEmptySource:
		return "empty-source"
	}
	return "unknown"
}

// Event records one step of a propagation run.
type Event struct {
	Slice  int
	Phase  Phase
	Action Action

	// IoU is set for gated steps
	IoU float64
}

// Trace is the ordered list of steps taken while propagating one object.
type Trace struct {
	Events []Event
}

func (t *Trace) add(e Event) {
	t.Events = append(t.Events, e)
}

// WriteCounts returns how often each slice was written.
func (t *Trace) WriteCounts() map[int]int {
	counts := make(map[int]int)
	for _, e := range t.Events {
		if e.Action == ActionWritten {
			counts[e.Slice]++
		}
	}
	return counts
}

// Written returns the written slice indices in ascending order.
func (t *Trace) Written() []int {
	counts := t.WriteCounts()
	out := make([]int, 0, len(counts))
	for z := range counts {
		out = append(out, z)
	}
	sort.Ints(out)
	return out
}

// WrittenBy returns the slices written during phase, in write order.
func (t *Trace) WrittenBy(phase Phase) []int {
	var out []int
	for _, e := range t.Events {
		if e.Action == ActionWritten && e.Phase == phase {
			out = append(out, e.Slice)
		}
	}
	return out
}
