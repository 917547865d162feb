package staking

import (
	"testing"
	"time"
)

func TestDoubleSignDetection(t *testing.T) {
	slasher := NewSlasher(nil)

	var validator uint64 = 0xAA
	now := time.Now().Unix()

	isDouble, _ := slasher.RecordBlockSigned(100, validator, [32]byte{1}, now)
	if isDouble {
		t.Error("First block should not be double-sign")
	}

	isDouble, record := slasher.RecordBlockSigned(100, validator, [32]byte{2}, now)
	if !isDouble {
		t.Error("Second block at same slot with a different id should be detected as double-sign")
	}
	if record == nil {
		t.Fatal("expected slash record")
	}
	if record.Offense != OffenseDoubleSign {
		t.Errorf("Offense = %v, want OffenseDoubleSign", record.Offense)
	}
}

func TestSameBlockNotDoubleSign(t *testing.T) {
	slasher := NewSlasher(nil)

	var validator uint64 = 0xBB
	now := time.Now().Unix()
	blockID := [32]byte{1}

	slasher.RecordBlockSigned(50, validator, blockID, now)
	isDouble, _ := slasher.RecordBlockSigned(50, validator, blockID, now)

	if isDouble {
		t.Error("Same block id signed twice for the same slot should not be double-sign")
	}
}

func TestSlashCalculation(t *testing.T) {
	config := &SlashingConfig{DoubleSignSlashPercent: 10, DowntimeSlashPercent: 1}
	slasher := NewSlasher(config)

	stake := int64(1000 * 1_000_000)
	amount, err := slasher.CalculateSlashAmount(stake, OffenseDoubleSign)
	if err != nil {
		t.Fatalf("CalculateSlashAmount: %v", err)
	}
	if want := int64(100 * 1_000_000); amount != want {
		t.Errorf("double-sign slash = %d, want %d", amount, want)
	}

	amount, err = slasher.CalculateSlashAmount(stake, OffenseDowntime)
	if err != nil {
		t.Fatalf("CalculateSlashAmount: %v", err)
	}
	if want := int64(10 * 1_000_000); amount != want {
		t.Errorf("downtime slash = %d, want %d", amount, want)
	}
}

func TestSlashAndJail(t *testing.T) {
	config := DefaultSlashingConfig()
	slasher := NewSlasher(config)

	var validator uint64 = 0xCC
	stake := int64(1000 * 1_000_000)
	timestamp := time.Now().Unix()

	amount, err := slasher.Slash(validator, stake, OffenseDoubleSign, timestamp)
	if err != nil {
		t.Fatalf("Slash: %v", err)
	}
	if amount == 0 {
		t.Error("slash amount should not be zero")
	}
	if !slasher.IsJailed(validator, timestamp) {
		t.Error("validator should be jailed right after a slash")
	}

	records := slasher.GetSlashRecords(validator)
	if len(records) != 1 {
		t.Fatalf("GetSlashRecords returned %d records, want 1", len(records))
	}

	afterJail := timestamp + config.JailDuration + 1
	if slasher.IsJailed(validator, afterJail) {
		t.Error("validator should no longer be jailed once JailDuration has elapsed")
	}
}

func TestNotJailed(t *testing.T) {
	slasher := NewSlasher(nil)
	var validator uint64 = 0xDD
	if slasher.IsJailed(validator, time.Now().Unix()) {
		t.Error("unslashed validator should not be jailed")
	}
}
