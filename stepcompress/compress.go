package stepcompress

// StepMove is a single queue_step command: count pulses, each interval
// ticks apart, with interval growing by add after every pulse. Mirrors the
// source's "struct step_move" field widths exactly, since they round-trip
// onto the wire unchanged.
type StepMove struct {
	Interval uint32
	Count    uint16
	Add      int16
}

// quadraticDev bounds how far two valid quadratic step sequences can
// diverge: add*count*(count-1)/2 + interval*count admits a maximum add
// delta of (6+4*sqrt(2)) * max_error / count^2 ~= 11.657; 11 is the
// integer approximation the source uses and that works well in practice.
const quadraticDev = 11

// idivUp rounds n/d away from zero toward +Inf for n>=0, matching the
// source's idiv_up (DIV_ROUND_UP for non-negative n, truncating division
// otherwise - the mixed rounding is intentional, not a bug).
func idivUp(n, d int32) int32 {
	if n >= 0 {
		return (n + d - 1) / d
	}
	return n / d
}

// idivDown rounds n/d toward -Inf for n>=0, matching the source's idiv_down.
func idivDown(n, d int32) int32 {
	if n >= 0 {
		return n / d
	}
	return (n - d + 1) / d
}

// compressBisectAdd finds the longest StepMove that covers a prefix of the
// pending queue, bisecting over the 'add' parameter. Translated directly
// from compress_bisect_add in the source.
func (sc *StepCompress) compressBisectAdd() StepMove {
	qlen := sc.queue.Len()
	qlast := qlen
	if qlast > 65535 {
		qlast = 65535
	}

	point := sc.window(0)
	outerMinInterval, outerMaxInterval := point.MinP, point.MaxP
	add := int32(0)
	minAdd, maxAdd := int32(-0x8000), int32(0x7fff)
	bestInterval, bestCount, bestAdd, bestReach := int32(0), int32(1), int32(1), int32(-1<<31)
	zeroInterval, zeroCount := int32(0), int32(0)

	for {
		nextMinInterval := outerMinInterval
		nextMaxInterval := outerMaxInterval
		interval := nextMaxInterval
		nextCount := int32(1)

		var nextPoint Points
		for {
			nextCount++
			if int(nextCount-1) >= qlast {
				count := nextCount - 1
				return StepMove{
					Interval: uint32(interval),
					Count:    uint16(count),
					Add:      int16(add),
				}
			}
			nextPoint = sc.window(int(nextCount - 1))
			nextAddFactor := nextCount * (nextCount - 1) / 2
			c := add * nextAddFactor
			if nextMinInterval*nextCount < nextPoint.MinP-c {
				nextMinInterval = idivUp(nextPoint.MinP-c, nextCount)
			}
			if nextMaxInterval*nextCount > nextPoint.MaxP-c {
				nextMaxInterval = idivDown(nextPoint.MaxP-c, nextCount)
			}
			if nextMinInterval > nextMaxInterval {
				break
			}
			interval = nextMaxInterval
		}

		count := nextCount - 1
		addFactor := count * (count - 1) / 2
		reach := add*addFactor + interval*count
		if reach > bestReach || (reach == bestReach && interval > bestInterval) {
			bestInterval, bestCount, bestAdd, bestReach = interval, count, add, reach
			if add == 0 {
				zeroInterval, zeroCount = interval, count
			}
			if count > 0x200 {
				// No 'add' will improve this sequence; stop before the
				// quadratic terms below risk overflowing int32.
				break
			}
		}

		nextAddFactor := nextCount * (nextCount - 1) / 2
		nextReach := add*nextAddFactor + interval*nextCount
		if nextReach < nextPoint.MinP {
			minAdd = add + 1
			outerMaxInterval = nextMaxInterval
		} else {
			maxAdd = add - 1
			outerMinInterval = nextMinInterval
		}

		if count > 1 {
			errDelta := int32(sc.maxError) * quadraticDev / (count * count)
			if minAdd < add-errDelta {
				minAdd = add - errDelta
			}
			if maxAdd > add+errDelta {
				maxAdd = add + errDelta
			}
		}

		c := outerMaxInterval * nextCount
		if minAdd*nextAddFactor < nextPoint.MinP-c {
			minAdd = idivUp(nextPoint.MinP-c, nextAddFactor)
		}
		c = outerMinInterval * nextCount
		if maxAdd*nextAddFactor > nextPoint.MaxP-c {
			maxAdd = idivDown(nextPoint.MaxP-c, nextAddFactor)
		}

		if minAdd > maxAdd {
			break
		}
		add = maxAdd - (maxAdd-minAdd)/4
	}

	useZeroes := zeroCount+zeroCount/16 >= bestCount
	if useZeroes {
		return StepMove{Interval: uint32(zeroInterval), Count: uint16(zeroCount), Add: 0}
	}
	return StepMove{Interval: uint32(bestInterval), Count: uint16(bestCount), Add: int16(bestAdd)}
}
