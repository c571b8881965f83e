package stepcompress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdivRounding(t *testing.T) {
	require.Equal(t, int32(3), idivUp(7, 3))
	require.Equal(t, int32(-2), idivUp(-7, 3))
	require.Equal(t, int32(2), idivDown(7, 3))
	require.Equal(t, int32(-3), idivDown(-7, 3))
}

// compressBisectAdd over a single queued step must return a trivial
// count=1 move regardless of add range, since there is nothing to extend.
func TestCompressBisectAddSingleStep(t *testing.T) {
	sc := newTestStepperNoT()
	sc.queue.Append(2000)
	move := sc.compressBisectAdd()
	require.Equal(t, uint16(1), move.Count)
	require.Equal(t, uint32(2000), move.Interval)
	require.NoError(t, sc.checkLine(move))
}

func newTestStepperNoT() *StepCompress {
	sc := NewStepCompress(1)
	sc.Fill(testMaxError, testQueueStep, testSetDir)
	sc.SetTime(0, testMCUFreq)
	return sc
}

func TestCheckLineRejectsZeroCount(t *testing.T) {
	sc := newTestStepperNoT()
	sc.queue.Append(2000)
	err := sc.checkLine(StepMove{Interval: 2000, Count: 0, Add: 0})
	require.ErrorIs(t, err, ErrInvalidMove)
}

func TestCheckLineRejectsOutOfWindow(t *testing.T) {
	sc := newTestStepperNoT()
	sc.queue.Append(2000)
	err := sc.checkLine(StepMove{Interval: 5000, Count: 1, Add: 0})
	require.ErrorIs(t, err, ErrPointOutOfRange)
}
