package propagation

import "context"

// fillGap segments the slices strictly between two seed slices zStart < zStop.
// z0 and z1 are the lowest and highest seed slices of the object. Both ends
// are trusted, so no IoU gate is applied inside a gap.
func (r *run) fillGap(ctx context.Context, zStart, zStop, z0, z1 int) error {
	diff := zStop - zStart
	zMid := (zStart + zStop) / 2

	switch {
	case diff <= 1:
		return nil

	// the lower end is a stop annotation: segment downward from the upper end only
	case zStart == z0 && r.cfg.StopLower:
		_, err := r.walk(ctx, zStop, zStart, Down, StopAtOrBefore, nil, PhaseGap)
		return err

	// the upper end is a stop annotation: segment upward from the lower end only
	case zStop == z1 && r.cfg.StopUpper:
		_, err := r.walk(ctx, zStart, zStop, Up, StopAtOrAfter, nil, PhaseGap)
		return err

	case diff == 2:
		return r.segmentFromUnion(ctx, zStart+1, zStart, zStop)
	}

	// Bisect. For an odd gap the upward walk takes the lower half including
	// zMid; for an even gap both walks stop short of zMid, which is then
	// prompted by the union of its two neighbours.
	even := diff%2 == 0
	rule := StopAfter
	if even {
		rule = StopAtOrAfter
	}
	if _, err := r.walk(ctx, zStart, zMid, Up, rule, nil, PhaseGap); err != nil {
		return err
	}
	if _, err := r.walk(ctx, zStop, zMid, Down, StopAtOrBefore, nil, PhaseGap); err != nil {
		return err
	}
	if even {
		return r.segmentFromUnion(ctx, zMid, zMid-1, zMid+1)
	}
	return nil
}
