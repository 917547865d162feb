package pulse

import (
	"testing"
	"time"
)

func TestSlotGating(t *testing.T) {
	epochStart := time.Unix(0, 0).UTC()
	c := NewClock(epochStart)

	wall := epochStart.Add(25_000 * time.Millisecond)
	epochTime := c.EpochTime(wall)
	if epochTime != 25 {
		t.Fatalf("EpochTime = %d, want 25", epochTime)
	}
	slot := c.SlotNumber(epochTime)
	if slot != 2 {
		t.Fatalf("SlotNumber(25) = %d, want 2", slot)
	}
	if st := c.SlotTime(slot); st != 20 {
		t.Fatalf("SlotTime(2) = %d, want 20", st)
	}
}

func TestSlotNumberSlotTimeInverse(t *testing.T) {
	c := &Clock{EpochStart: time.Unix(0, 0).UTC(), SlotInterval: SlotInterval}
	for s := int64(0); s < 1000; s++ {
		got := c.SlotNumber(c.SlotTime(s))
		if got != s {
			t.Fatalf("SlotNumber(SlotTime(%d)) = %d, want %d", s, got, s)
		}
	}
}

func TestEpochTimeBeforeEpochStartIsNegative(t *testing.T) {
	epochStart := time.Unix(1000, 0).UTC()
	c := NewClock(epochStart)
	wall := time.Unix(990, 0).UTC()
	if got := c.EpochTime(wall); got != -10 {
		t.Fatalf("EpochTime = %d, want -10", got)
	}
}

func TestLastSlotOfRound(t *testing.T) {
	tests := []struct {
		slot, activeDelegates, want int64
	}{
		{0, 5, 4},
		{4, 5, 4},
		{5, 5, 9},
		{7, 5, 9},
		{100, 10, 109},
	}
	for _, tt := range tests {
		got := LastSlotOfRound(tt.slot, tt.activeDelegates)
		if got != tt.want {
			t.Errorf("LastSlotOfRound(%d, %d) = %d, want %d", tt.slot, tt.activeDelegates, got, tt.want)
		}
	}
}

func TestLastSlotOfRoundZeroDelegatesIsIdentity(t *testing.T) {
	if got := LastSlotOfRound(42, 0); got != 42 {
		t.Fatalf("LastSlotOfRound(42, 0) = %d, want 42", got)
	}
}
