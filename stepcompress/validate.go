package stepcompress

// checkLine verifies a StepMove actually reproduces the queued step times
// it claims to cover. The source gates this behind a CHECK_LINES
// preprocessor toggle that's always 1 in practice; there's no equivalent
// build-time knob worth adding in Go, so the check always runs.
func (sc *StepCompress) checkLine(move StepMove) error {
	if move.Count == 0 || (move.Interval == 0 && move.Add == 0 && move.Count > 1) || move.Interval >= 0x80000000 {
		return &StepError{
			OID:  sc.oid,
			Move: move,
			Err:  ErrInvalidMove,
		}
	}
	interval := int32(move.Interval)
	var p int32
	for i := 0; i < int(move.Count); i++ {
		point := sc.window(i)
		p += interval
		if p < point.MinP || p > point.MaxP {
			return &StepError{
				OID:   sc.oid,
				Move:  move,
				Index: i + 1,
				Want:  point,
				Got:   p,
				Err:   ErrPointOutOfRange,
			}
		}
		interval += int32(move.Add)
	}
	return nil
}
