package stepcompress

// Points is the per-step acceptance window: a cumulative clock offset (from
// last_step_clock) must land in [MinP, MaxP] for the step to be considered
// satisfied. Mirrors the source's "struct points".
type Points struct {
	MinP, MaxP int32
}

// window returns the i-th pending step's acceptance window, mirroring the
// source's minmax_point: maxp is the step's exact offset from
// last_step_clock; minp backs off by max_error, but never by more than half
// the gap to the previous step, so two consecutive windows can never
// overlap by more than half their gap.
func (sc *StepCompress) window(i int) Points {
	lsc := sc.lastStepClock
	point := int32(sc.queue.At(i) - lsc)
	var prevPoint int32
	if i > 0 {
		prevPoint = int32(sc.queue.At(i-1) - lsc)
	}
	maxErr := (point - prevPoint) / 2
	if uint32(maxErr) > sc.maxError {
		maxErr = int32(sc.maxError)
	}
	return Points{MinP: point - maxErr, MaxP: point}
}
