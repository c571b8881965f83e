package stepcompress

import "math"

// maxClock is used as "no message found yet" sentinel when scanning for
// the lowest req_clock across steppers, matching the source's MAX_CLOCK.
const maxClock = math.MaxUint64

// SteppersSync coordinates message transmission across a group of
// steppers sharing one finite MCU move queue. It tracks when each move
// queue slot becomes free with a binary min-heap and interleaves each
// stepper's pending commands in req_clock order before handing a batch to
// the transport.
type SteppersSync struct {
	transport  Transport
	steppers   []*StepCompress
	moveClocks []uint64
}

// NewSteppersSync allocates a synchronizer over steppers, tracking
// moveQueueDepth move-queue slots (the mcu's configured move queue size).
func NewSteppersSync(transport Transport, steppers []*StepCompress, moveQueueDepth int) *SteppersSync {
	return &SteppersSync{
		transport:  transport,
		steppers:   append([]*StepCompress(nil), steppers...),
		moveClocks: make([]uint64, moveQueueDepth),
	}
}

// SetTime propagates the print_time-to-clock conversion rate to every
// managed stepper.
func (ss *SteppersSync) SetTime(timeOffset, mcuFreq float64) {
	for _, sc := range ss.steppers {
		sc.SetTime(timeOffset, mcuFreq)
	}
}

// heapReplace pops the smallest pending move-queue availability clock and
// pushes reqClock in its place, in one sift-down pass. A hand-rolled sift
// rather than container/heap: heap_replace is a single fused
// pop-then-push over a fixed-size, zero-initialized array, and routing
// that through Push/Pop/Fix would cost more lines than this does.
func (ss *SteppersSync) heapReplace(reqClock uint64) {
	mc := ss.moveClocks
	nmc := len(mc)
	pos := 0
	for {
		child1, child2 := 2*pos+1, 2*pos+2
		child1Clock, child2Clock := uint64(maxClock), uint64(maxClock)
		if child1 < nmc {
			child1Clock = mc[child1]
		}
		if child2 < nmc {
			child2Clock = mc[child2]
		}
		if reqClock <= child1Clock && reqClock <= child2Clock {
			mc[pos] = reqClock
			return
		}
		if child1Clock < child2Clock {
			mc[pos] = child1Clock
			pos = child1
		} else {
			mc[pos] = child2Clock
			pos = child2
		}
	}
}

// Flush flushes every managed stepper up to moveClock, then interleaves
// their pending messages by ascending req_clock and hands the resulting
// batch to the transport in one call, preserving relative order between
// steppers.
func (ss *SteppersSync) Flush(moveClock uint64) error {
	for _, sc := range ss.steppers {
		if err := sc.Flush(moveClock); err != nil {
			return err
		}
	}

	var batch []*QueueMessage
	for {
		reqClock := uint64(maxClock)
		var owner *StepCompress
		for _, sc := range ss.steppers {
			if len(sc.msgQueue) == 0 {
				continue
			}
			m := sc.msgQueue[0]
			if m.ReqClock < reqClock {
				owner = sc
				reqClock = m.ReqClock
			}
		}
		if owner == nil || (owner.msgQueue[0].MinClock != 0 && reqClock > moveClock) {
			break
		}

		qm := owner.msgQueue[0]
		nextAvail := ss.moveClocks[0]
		if qm.MinClock != 0 {
			ss.heapReplace(qm.MinClock)
		}
		qm.MinClock = nextAvail

		owner.msgQueue = owner.msgQueue[1:]
		batch = append(batch, qm)
	}

	if len(batch) == 0 {
		return nil
	}
	return ss.transport.SendBatch(batch)
}
