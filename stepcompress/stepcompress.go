package stepcompress

import "fmt"

// clockDiffMax bounds how far a single step clock may run ahead of
// last_step_clock before it has to be escorted through the "far future"
// path instead of the bisection compressor (source's CLOCK_DIFF_MAX).
const clockDiffMax = 3 << 28

// sdsFilterTime debounces a direction flip that immediately follows a step:
// a reversal within this many seconds of mcu time rolls back the pending
// step instead of emitting a spurious step+dir+step (source's
// SDS_FILTER_TIME).
const sdsFilterTime = .000750

// StepCompress holds the per-stepper compression state: the pending-step
// queue, the clock/time conversion, direction filtering, and the message
// and position history used to answer later queries. One instance exists
// per physical stepper.
type StepCompress struct {
	oid      uint32
	maxError uint32

	mcuTimeOffset, mcuFreq, lastStepPrintTime float64

	lastStepClock uint64
	msgQueue      []*QueueMessage

	queueStepMsgtag, setNextStepDirMsgtag int32
	sdir                                  int32 // -1 = unset, else 0/1
	invertSDir                            bool

	nextStepClock uint64
	nextStepDir   bool

	lastPosition int64
	history      []historyStep

	queue *stepQueue
}

// NewStepCompress allocates a StepCompress for the given oid. Mirrors
// stepcompress_alloc - sdir starts unset (-1) so the first Append always
// emits a set_next_step_dir.
func NewStepCompress(oid uint32) *StepCompress {
	return &StepCompress{
		oid:   oid,
		sdir:  -1,
		queue: newStepQueue(),
	}
}

// Fill sets the error tolerance and the two message ids this stepper's
// commands are tagged with, resolved from the MCU's command dictionary.
func (sc *StepCompress) Fill(maxError uint32, queueStepMsgtag, setNextStepDirMsgtag int32) {
	sc.maxError = maxError
	sc.queueStepMsgtag = queueStepMsgtag
	sc.setNextStepDirMsgtag = setNextStepDirMsgtag
}

// SetInvertSDir flips the sense of the direction bit written to the wire.
// If sdir is already known it is XORed in place too, so the direction the
// MCU was last told stays the same (matches stepcompress_set_invert_sdir;
// not a reset).
func (sc *StepCompress) SetInvertSDir(invert bool) {
	if invert != sc.invertSDir {
		sc.invertSDir = invert
		if sc.sdir >= 0 {
			sc.sdir ^= 1
		}
	}
}

// GetOID returns the stepper's oid.
func (sc *StepCompress) GetOID() uint32 { return sc.oid }

// GetStepDir returns the direction of the most recently appended step.
func (sc *StepCompress) GetStepDir() bool { return sc.nextStepDir }

// calcLastStepPrintTime recomputes last_step_print_time from
// last_step_clock and prunes history older than historyExpire seconds.
func (sc *StepCompress) calcLastStepPrintTime() {
	lsc := float64(sc.lastStepClock)
	sc.lastStepPrintTime = sc.mcuTimeOffset + (lsc-.5)/sc.mcuFreq
	if lsc > sc.mcuFreq*historyExpire {
		sc.pruneHistory(uint64(lsc - sc.mcuFreq*historyExpire))
	}
}

// SetTime sets the print_time-to-clock conversion rate.
func (sc *StepCompress) SetTime(timeOffset, mcuFreq float64) {
	sc.mcuTimeOffset = timeOffset
	sc.mcuFreq = mcuFreq
	sc.calcLastStepPrintTime()
}

// addMove builds a queue_step command for move starting at firstClock,
// enqueues it, advances last_step_clock, and records a history entry.
// Mirrors add_move exactly, including the order of operations: the new
// message's clocks are derived from the OLD last_step_clock before it's
// advanced.
func (sc *StepCompress) addMove(firstClock uint64, move StepMove) {
	addFactor := int32(move.Count) * int32(move.Count-1) / 2
	ticks := int32(move.Add)*addFactor + int32(move.Interval)*int32(move.Count-1)
	lastClock := firstClock + uint64(uint32(ticks))

	qm := &QueueMessage{
		Data:     encodeQueueStep(sc.queueStepMsgtag, sc.oid, move),
		ReqClock: sc.lastStepClock,
		MinClock: sc.lastStepClock,
	}
	if move.Count == 1 && firstClock >= sc.lastStepClock+clockDiffMax {
		qm.ReqClock = firstClock
	}
	sc.msgQueue = append(sc.msgQueue, qm)
	sc.lastStepClock = lastClock

	hs := historyStep{
		firstClock:    firstClock,
		lastClock:     lastClock,
		startPosition: sc.lastPosition,
		interval:      int32(move.Interval),
		add:           int32(move.Add),
	}
	if sc.sdir != 0 {
		hs.stepCount = int32(move.Count)
	} else {
		hs.stepCount = -int32(move.Count)
	}
	sc.lastPosition += int64(hs.stepCount)
	sc.pushHistory(hs)
}

// queueFlush converts queued step times into queue_step commands until
// last_step_clock reaches moveClock or the queue drains.
func (sc *StepCompress) queueFlush(moveClock uint64) error {
	if sc.queue.Empty() {
		return nil
	}
	for sc.lastStepClock < moveClock {
		move := sc.compressBisectAdd()
		if err := sc.checkLine(move); err != nil {
			return err
		}
		sc.addMove(sc.lastStepClock+uint64(move.Interval), move)
		if sc.queue.Len() <= int(move.Count) {
			sc.queue.Advance(sc.queue.Len())
			break
		}
		sc.queue.Advance(int(move.Count))
	}
	sc.calcLastStepPrintTime()
	return nil
}

// flushFar emits a single queue_step for a step too far in the future to
// reach through the bisection compressor.
func (sc *StepCompress) flushFar(absStepClock uint64) error {
	move := StepMove{Interval: uint32(absStepClock - sc.lastStepClock), Count: 1, Add: 0}
	sc.addMove(absStepClock, move)
	sc.calcLastStepPrintTime()
	return nil
}

// setNextStepDir flushes any pending queue_step commands, then emits a
// set_next_step_dir for the new direction. A no-op if sdir already matches.
func (sc *StepCompress) setNextStepDir(dir int32) error {
	if sc.sdir == dir {
		return nil
	}
	if err := sc.queueFlush(^uint64(0)); err != nil {
		return err
	}
	sc.sdir = dir
	dirBit := uint32(dir) ^ boolToUint32(sc.invertSDir)
	qm := &QueueMessage{
		Data:     encodeSetNextStepDir(sc.setNextStepDirMsgtag, sc.oid, dirBit),
		ReqClock: sc.lastStepClock,
	}
	sc.msgQueue = append(sc.msgQueue, qm)
	return nil
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// queueAppendFar is the slow path for queueAppend: the next pending step is
// far enough in the future that it can't share a bisection window with
// anything already queued.
func (sc *StepCompress) queueAppendFar() error {
	stepClock := sc.nextStepClock
	sc.nextStepClock = 0
	if err := sc.queueFlush(stepClock - clockDiffMax + 1); err != nil {
		return err
	}
	if stepClock >= sc.lastStepClock+clockDiffMax {
		return sc.flushFar(stepClock)
	}
	sc.queue.Append(stepClock)
	return nil
}

// queueAppendExtend appends next_step_clock for every step that is not on
// the far-future path, first flushing preemptively when more than
// 65535+2000 steps are pending so the queue never holds much more than 64K
// steps; stepQueue.Append grows or shuffles the backing slice as needed.
func (sc *StepCompress) queueAppendExtend() error {
	if sc.queue.shouldPreflush() {
		flushClock := sc.queue.preflushClock(sc.lastStepClock)
		if err := sc.queueFlush(flushClock); err != nil {
			return err
		}
	}
	sc.queue.Append(sc.nextStepClock)
	sc.nextStepClock = 0
	return nil
}

// queueAppend adds next_step_clock to the queue, handling the direction
// change, far-future, and growth slow paths as needed.
func (sc *StepCompress) queueAppend() error {
	dir := int32(0)
	if sc.nextStepDir {
		dir = 1
	}
	if dir != sc.sdir {
		if err := sc.setNextStepDir(dir); err != nil {
			return err
		}
	}
	if sc.nextStepClock >= sc.lastStepClock+clockDiffMax {
		return sc.queueAppendFar()
	}
	return sc.queueAppendExtend()
}

// Append records a step at the given direction and time, debouncing a
// direction reversal that immediately follows a prior step (the SDS
// filter). Mirrors stepcompress_append.
func (sc *StepCompress) Append(sdir bool, printTime, stepTime float64) error {
	offset := printTime - sc.lastStepPrintTime
	relSC := (stepTime + offset) * sc.mcuFreq
	stepClock := sc.lastStepClock + uint64(int64(relSC))

	if sc.nextStepClock != 0 {
		if sdir != sc.nextStepDir {
			diff := float64(int64(stepClock - sc.nextStepClock))
			if diff < sdsFilterTime*sc.mcuFreq {
				sc.nextStepClock = 0
				sc.nextStepDir = sdir
				return nil
			}
		}
		if err := sc.queueAppend(); err != nil {
			return err
		}
	}
	sc.nextStepClock = stepClock
	sc.nextStepDir = sdir
	return nil
}

// Commit finalizes the pending step so it can no longer be rolled back by
// a debounced direction reversal.
func (sc *StepCompress) Commit() error {
	if sc.nextStepClock != 0 {
		return sc.queueAppend()
	}
	return nil
}

// Flush converts queued steps into commands up to moveClock, first
// committing a pending step if moveClock has already reached it.
func (sc *StepCompress) Flush(moveClock uint64) error {
	if sc.nextStepClock != 0 && moveClock >= sc.nextStepClock {
		if err := sc.queueAppend(); err != nil {
			return err
		}
	}
	return sc.queueFlush(moveClock)
}

// Reset flushes all pending steps and rebases last_step_clock, clearing the
// sdir filter state (equivalent to a fresh stepcompress_alloc's sdir).
func (sc *StepCompress) Reset(lastStepClock uint64) error {
	if err := sc.Flush(^uint64(0)); err != nil {
		return err
	}
	sc.lastStepClock = lastStepClock
	sc.sdir = -1
	sc.calcLastStepPrintTime()
	return nil
}

// SetLastPosition rebases the position counter and drops a zero-length
// history marker at clock, so later FindPastPosition calls before any step
// has been queued still resolve correctly.
func (sc *StepCompress) SetLastPosition(clock uint64, lastPosition int64) error {
	if err := sc.Flush(^uint64(0)); err != nil {
		return err
	}
	sc.lastPosition = lastPosition
	sc.pushHistory(historyStep{firstClock: clock, lastClock: clock, startPosition: lastPosition})
	return nil
}

// QueueMsg enqueues an out-of-band command to be transmitted in order with
// this stepper's step commands, without consuming a move-queue slot.
func (sc *StepCompress) QueueMsg(data []byte) error {
	if err := sc.Flush(^uint64(0)); err != nil {
		return err
	}
	sc.msgQueue = append(sc.msgQueue, &QueueMessage{
		Data:     append([]byte(nil), data...),
		ReqClock: sc.lastStepClock,
	})
	return nil
}

func (sc *StepCompress) String() string {
	return fmt.Sprintf("stepcompress(oid=%d)", sc.oid)
}
