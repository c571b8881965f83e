package stepcompress

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conditions that are fatal for a stepper: once
// returned, the caller must treat the owning StepCompress as done and
// abort the motion session. Nothing here is recovered locally.
var (
	ErrInvalidMove     = errors.New("stepcompress: invalid move")
	ErrPointOutOfRange = errors.New("stepcompress: point out of range")
)

// StepError carries the diagnostic fields needed to debug a rejected move:
// oid, the offending move, the step index within it, and the window that
// step violated. It wraps one of the sentinels above so callers can still
// use errors.Is.
type StepError struct {
	OID   uint32
	Move  StepMove
	Index int // 1-based, per check_line's convention
	Want  Points
	Got   int32
	Err   error
}

func (e *StepError) Error() string {
	if e.Index == 0 {
		return fmt.Sprintf(
			"stepcompress oid=%d interval=%d count=%d add=%d: invalid sequence",
			e.OID, e.Move.Interval, e.Move.Count, e.Move.Add)
	}
	return fmt.Sprintf(
		"stepcompress oid=%d interval=%d count=%d add=%d: point %d: %d not in %d:%d",
		e.OID, e.Move.Interval, e.Move.Count, e.Move.Add, e.Index, e.Got, e.Want.MinP, e.Want.MaxP)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
