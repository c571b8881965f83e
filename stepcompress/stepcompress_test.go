package stepcompress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"stepcompress/protocol"
)

const (
	testMCUFreq   = 20_000_000.0
	testMaxError  = 25600
	testQueueStep = 1
	testSetDir    = 2
)

func newTestStepper(t *testing.T) *StepCompress {
	t.Helper()
	sc := NewStepCompress(7)
	sc.Fill(testMaxError, testQueueStep, testSetDir)
	sc.SetTime(0, testMCUFreq)
	return sc
}

// decodeQueueStep unpacks a queue_step payload back into its fields, for
// asserting on what actually went out over the wire rather than on
// internal state.
func decodeQueueStep(t *testing.T, data []byte) (msgtag int32, oid, interval, count uint32, add int32) {
	t.Helper()
	buf := data
	var err error
	msgtag, err = protocol.DecodeVLQInt(&buf)
	require.NoError(t, err)
	oid, err = protocol.DecodeVLQUint(&buf)
	require.NoError(t, err)
	interval, err = protocol.DecodeVLQUint(&buf)
	require.NoError(t, err)
	count, err = protocol.DecodeVLQUint(&buf)
	require.NoError(t, err)
	add, err = protocol.DecodeVLQInt(&buf)
	require.NoError(t, err)
	return
}

func decodeSetDir(t *testing.T, data []byte) (msgtag int32, oid, dirBit uint32) {
	t.Helper()
	buf := data
	var err error
	msgtag, err = protocol.DecodeVLQInt(&buf)
	require.NoError(t, err)
	oid, err = protocol.DecodeVLQUint(&buf)
	require.NoError(t, err)
	dirBit, err = protocol.DecodeVLQUint(&buf)
	require.NoError(t, err)
	return
}

// Uniform cadence: 50 steps 100us apart should collapse into exactly one
// set_next_step_dir plus one queue_step with count=50, add=0.
func TestUniformCadenceCollapsesToOneMove(t *testing.T) {
	sc := newTestStepper(t)
	for k := 0; k < 50; k++ {
		require.NoError(t, sc.Append(true, 0, float64(k)*1e-4))
	}
	require.NoError(t, sc.Commit())
	require.NoError(t, sc.Flush(^uint64(0)))

	require.Len(t, sc.msgQueue, 2)

	_, _, dirBit := decodeSetDir(t, sc.msgQueue[0].Data)
	require.Equal(t, uint32(1), dirBit)

	_, oid, interval, count, add := decodeQueueStep(t, sc.msgQueue[1].Data)
	require.Equal(t, uint32(7), oid)
	require.Equal(t, uint32(50), count)
	require.Equal(t, int32(0), add)
	require.InDelta(t, 2000, interval, 1)
}

// Linear acceleration: t_k = sqrt(k/a) should collapse into one move with
// a positive add, and the validator must accept it.
func TestLinearAccelerationSingleMove(t *testing.T) {
	sc := newTestStepper(t)
	const a = 1.0
	for k := 1; k <= 100; k++ {
		tk := math.Sqrt(float64(k) / a)
		require.NoError(t, sc.Append(true, 0, tk))
	}
	require.NoError(t, sc.Commit())
	require.NoError(t, sc.Flush(^uint64(0)))

	require.Len(t, sc.msgQueue, 2)
	_, _, _, count, add := decodeQueueStep(t, sc.msgQueue[1].Data)
	require.Equal(t, uint32(100), count)
	require.Greater(t, add, int32(0))
}

// Direction chatter: a reversal 100us after a pending step (well inside
// the 750us SDS filter) must roll back the pending step with no output.
func TestDirectionChatterSuppressesOutput(t *testing.T) {
	sc := newTestStepper(t)
	require.NoError(t, sc.Append(true, 0, 0))
	require.NoError(t, sc.Append(false, 0, 100e-6))

	require.Empty(t, sc.msgQueue)
	require.Equal(t, int32(-1), sc.sdir)
	require.False(t, sc.nextStepDir)
}

// Direction change spaced far enough apart (800us, outside the SDS
// window) commits the first two steps as one move and starts a new
// direction, leaving the third step pending.
func TestDirectionChangeSpacedCommitsFirstMove(t *testing.T) {
	sc := newTestStepper(t)
	require.NoError(t, sc.Append(true, 0, 0))
	require.NoError(t, sc.Append(true, 0, 100e-6))
	require.NoError(t, sc.Append(false, 0, 900e-6))

	require.NotZero(t, sc.nextStepClock)
	require.False(t, sc.nextStepDir)

	require.NoError(t, sc.Flush(^uint64(0)))

	var sawSetDir, sawStep bool
	for _, qm := range sc.msgQueue {
		tag, _, _ := decodeSetDir(t, qm.Data)
		if tag == testSetDir {
			sawSetDir = true
			continue
		}
		_, _, _, count, add := decodeQueueStep(t, qm.Data)
		if count == 2 && add == 0 {
			sawStep = true
		}
	}
	require.True(t, sawSetDir)
	require.True(t, sawStep)
}

// Far-future gap: a step scheduled at or beyond CLOCK_DIFF_MAX must be
// emitted as a singleton queue_step rather than pulled through the
// bisection compressor.
func TestFarFutureGapEmitsSingleton(t *testing.T) {
	sc := newTestStepper(t)
	farOffset := uint64(clockDiffMax) + 10
	require.NoError(t, sc.Append(true, 0, float64(farOffset)/testMCUFreq))
	require.NoError(t, sc.Commit())
	require.NoError(t, sc.Flush(^uint64(0)))

	require.Len(t, sc.msgQueue, 2)
	_, _, interval, count, add := decodeQueueStep(t, sc.msgQueue[1].Data)
	require.Equal(t, uint32(1), count)
	require.Equal(t, int32(0), add)
	require.InDelta(t, farOffset, interval, 1)
}

// recordingTransport captures the batches SteppersSync.Flush hands it, for
// asserting on cross-stepper ordering.
type recordingTransport struct {
	batches [][]*QueueMessage
}

func (r *recordingTransport) SendBatch(msgs []*QueueMessage) error {
	r.batches = append(r.batches, msgs)
	return nil
}

// Synchronizer fairness: messages are merged by req_clock, and with a
// 4-slot move queue each slot-consuming message's MinClock is rewritten to
// the clock at which the slot taken four messages earlier frees up, so no
// more than 4 messages are ever in flight. Here every message's input
// MinClock equals its ReqClock, so the i-th message (i >= 4) must be held
// until the ReqClock of message i-4; the first 4 use the initially free
// slots (clock 0).
func TestSynchronizerHeapBoundsInFlightSlots(t *testing.T) {
	a := NewStepCompress(1)
	a.Fill(testMaxError, testQueueStep, testSetDir)
	b := NewStepCompress(2)
	b.Fill(testMaxError, testQueueStep, testSetDir)

	for i := 0; i < 10; i++ {
		a.msgQueue = append(a.msgQueue, &QueueMessage{
			Data:     []byte{byte(i)},
			ReqClock: uint64(i + 1),
			MinClock: uint64(i + 1),
		})
	}
	for i := 0; i < 10; i++ {
		b.msgQueue = append(b.msgQueue, &QueueMessage{
			Data:     []byte{byte(100 + i)},
			ReqClock: 2,
			MinClock: 2,
		})
	}

	transport := &recordingTransport{}
	ss := NewSteppersSync(transport, []*StepCompress{a, b}, 4)

	require.NoError(t, ss.Flush(^uint64(0)))
	require.Len(t, transport.batches, 1)

	batch := transport.batches[0]
	require.Len(t, batch, 20)
	for i, qm := range batch {
		want := uint64(0)
		if i >= 4 {
			want = batch[i-4].ReqClock
		}
		require.Equal(t, want, qm.MinClock)
	}
}

func TestSetInvertSDirFlipsKnownDirection(t *testing.T) {
	sc := newTestStepper(t)
	sc.sdir = 1
	sc.SetInvertSDir(true)
	require.Equal(t, int32(0), sc.sdir)
	sc.SetInvertSDir(false)
	require.Equal(t, int32(1), sc.sdir)
}

func TestFindPastPositionBeforeAnyHistory(t *testing.T) {
	sc := newTestStepper(t)
	require.NoError(t, sc.SetLastPosition(0, 42))
	require.Equal(t, int64(42), sc.FindPastPosition(1000))
}
