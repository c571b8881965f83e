package stepcompress

import "math"

// historyExpire mirrors the source's HISTORY_EXPIRE: entries older than
// this many seconds of MCU time (scaled by mcu_freq) are discarded.
const historyExpire = 30.0

// historyStep is one entry of the per-stepper move history, used to answer
// "what position was stepper X at clock Y" queries. The source's
// history_list is an intrusive, newest-first linked list (list_add_head);
// here it's a slice with newest at index 0.
type historyStep struct {
	firstClock, lastClock uint64
	startPosition         int64
	stepCount             int32 // signed: direction folded in
	interval, add         int32
}

// HistoryEntry is the exported, read-only view extract_old returns.
type HistoryEntry struct {
	FirstClock, LastClock uint64
	StartPosition         int64
	StepCount             int32
	Interval, Add         int32
}

// pushHistory records a newly emitted move, newest-first.
func (sc *StepCompress) pushHistory(hs historyStep) {
	sc.history = append(sc.history, historyStep{})
	copy(sc.history[1:], sc.history)
	sc.history[0] = hs
}

// pruneHistory drops entries whose LastClock is at or before endClock, i.e.
// older than HISTORY_EXPIRE. Mirrors the source's free_history, walking
// from the oldest (tail) end.
func (sc *StepCompress) pruneHistory(endClock uint64) {
	n := len(sc.history)
	for n > 0 && sc.history[n-1].lastClock <= endClock {
		n--
	}
	sc.history = sc.history[:n]
}

// FindPastPosition answers "what was this stepper's position at clock",
// mirroring the source's stepcompress_find_past_position.
func (sc *StepCompress) FindPastPosition(clock uint64) int64 {
	lastPosition := sc.lastPosition
	for _, hs := range sc.history {
		if clock < hs.firstClock {
			lastPosition = hs.startPosition
			continue
		}
		if clock >= hs.lastClock {
			return hs.startPosition + int64(hs.stepCount)
		}
		interval, add := hs.interval, hs.add
		ticks := int32(clock-hs.firstClock) + interval
		var offset int32
		if add == 0 {
			offset = ticks / interval
		} else {
			a := 0.5 * float64(add)
			b := float64(interval) - 0.5*float64(add)
			c := -float64(ticks)
			offset = int32((math.Sqrt(b*b-4*a*c) - b) / (2 * a))
		}
		if hs.stepCount < 0 {
			return hs.startPosition - int64(offset)
		}
		return hs.startPosition + int64(offset)
	}
	return lastPosition
}

// ExtractOld returns history entries overlapping [startClock, endClock),
// newest-first, up to max entries. Mirrors stepcompress_extract_old.
func (sc *StepCompress) ExtractOld(startClock, endClock uint64, max int) []HistoryEntry {
	var out []HistoryEntry
	for _, hs := range sc.history {
		if startClock >= hs.lastClock || len(out) >= max {
			break
		}
		if endClock <= hs.firstClock {
			continue
		}
		out = append(out, HistoryEntry{
			FirstClock:    hs.firstClock,
			LastClock:     hs.lastClock,
			StartPosition: hs.startPosition,
			StepCount:     hs.stepCount,
			Interval:      hs.interval,
			Add:           hs.add,
		})
	}
	return out
}
