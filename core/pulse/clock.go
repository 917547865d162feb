// Package pulse provides the slot clock: the mapping from wall-clock time
// to the epoch-relative slot and round numbers that govern delegate
// forging order (§4.3). The package kept its name and position in the
// import graph from the teacher's DAG liveness tracker — a slot clock is,
// like a finality tracker, the thing that decides when the next unit of
// consensus is allowed to exist — but its content is new: there is no DAG
// here, only deterministic integer arithmetic over wall time.
package pulse

import "time"

// SlotInterval is the width of a slot (§4.3).
const SlotInterval = 10 * time.Second

// Clock converts wall-clock milliseconds into epoch time, slot numbers,
// and back, anchored at EpochStart.
type Clock struct {
	EpochStart   time.Time
	SlotInterval time.Duration
}

// NewClock builds a Clock anchored at epochStart with the default
// 10-second slot interval.
func NewClock(epochStart time.Time) *Clock {
	return &Clock{EpochStart: epochStart, SlotInterval: SlotInterval}
}

// EpochTime returns floor((wall - EpochStart) / 1s), in seconds. Negative
// before EpochStart.
func (c *Clock) EpochTime(wall time.Time) int64 {
	delta := wall.Sub(c.EpochStart)
	return int64(delta / time.Second)
}

// SlotNumber returns floor(epochTime / slotSeconds).
func (c *Clock) SlotNumber(epochTime int64) int64 {
	slotSeconds := int64(c.SlotInterval / time.Second)
	return floorDiv(epochTime, slotSeconds)
}

// SlotTime returns the epoch-time (seconds) at which slot begins:
// slot * slotSeconds.
func (c *Clock) SlotTime(slot int64) int64 {
	slotSeconds := int64(c.SlotInterval / time.Second)
	return slot * slotSeconds
}

// SlotAt returns the slot number containing wall-clock time wall.
func (c *Clock) SlotAt(wall time.Time) int64 {
	return c.SlotNumber(c.EpochTime(wall))
}

// CurrentSlot returns the slot number containing now.
func (c *Clock) CurrentSlot() int64 {
	return c.SlotAt(time.Now())
}

// NextSlot returns SlotAt(now) + 1.
func (c *Clock) NextSlot() int64 {
	return c.CurrentSlot() + 1
}

// WallTimeOfSlot returns the wall-clock instant a slot begins.
func (c *Clock) WallTimeOfSlot(slot int64) time.Time {
	return c.EpochStart.Add(time.Duration(c.SlotTime(slot)) * time.Second)
}

// LastSlotOfRound returns the last slot belonging to the round that
// contains slot, where a round spans activeDelegates consecutive slots.
// Resolves the spec's "getLastSlot" open question: the likely intent is
// "last slot of the round containing this slot", not an unconditional
// slot+activeDelegates addition. Used by core/chain to derive the round
// number a block's slot falls in, for the delegate-roster reshuffle
// boundary (§GLOSSARY "Round").
func LastSlotOfRound(slot int64, activeDelegates int64) int64 {
	if activeDelegates <= 0 {
		return slot
	}
	roundStart := slot - floorMod(slot, activeDelegates)
	return roundStart + activeDelegates - 1
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && ((a < 0) != (b < 0)) {
		m += b
	}
	return m
}
