package staking

import (
	"fmt"
	"sync"
	"time"

	safemath "novachain/core/math"
)

// SlashableOffense represents the type of slashable behavior.
type SlashableOffense uint8

const (
	OffenseDoubleSign SlashableOffense = iota // signing two different blocks for the same slot
	OffenseDowntime                           // extended validator downtime
	OffenseInvalidBlock                       // producing an invalid block
)

// SlashingConfig contains the slashing parameters.
type SlashingConfig struct {
	DoubleSignSlashPercent uint64 // percentage of stake to slash for double signing
	DowntimeSlashPercent   uint64 // percentage of stake to slash for downtime
	DowntimeThreshold      int64  // seconds of downtime before slashing
	JailDuration           int64  // seconds a validator is jailed after slashing
}

// DefaultSlashingConfig returns default slashing parameters.
func DefaultSlashingConfig() *SlashingConfig {
	return &SlashingConfig{
		DoubleSignSlashPercent: 10,
		DowntimeSlashPercent:   1,
		DowntimeThreshold:      int64(24 * time.Hour / time.Second),
		JailDuration:           int64(7 * 24 * time.Hour / time.Second),
	}
}

// SlashRecord tracks a single slashing event for a validator.
type SlashRecord struct {
	Validator   uint64
	Offense     SlashableOffense
	Amount      int64
	Timestamp   int64
	BlockID     [32]byte
	JailedUntil int64 // unix timestamp when jail ends
}

// Slasher manages slashing logic and double-sign evidence tracking. Keyed
// by slot rather than the teacher's DAG round, since a slot is this
// chain's one-generator-per-unit-of-time equivalent.
type Slasher struct {
	config *SlashingConfig

	// signedBlocks[slot][validator] = block id, for double-sign detection.
	signedBlocks map[int64]map[uint64][32]byte

	slashRecords []SlashRecord
	jailed       map[uint64]int64 // validator -> jail release unix time

	mu sync.RWMutex
}

// NewSlasher creates a new slashing manager.
func NewSlasher(config *SlashingConfig) *Slasher {
	if config == nil {
		config = DefaultSlashingConfig()
	}
	return &Slasher{
		config:       config,
		signedBlocks: make(map[int64]map[uint64][32]byte),
		jailed:       make(map[uint64]int64),
	}
}

// RecordBlockSigned records that validator signed blockID for slot.
// Returns true and a SlashRecord if this is a double-sign (same slot,
// different block id already on file for this validator).
func (s *Slasher) RecordBlockSigned(slot int64, validator uint64, blockID [32]byte, timestamp int64) (bool, *SlashRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.signedBlocks[slot] == nil {
		s.signedBlocks[slot] = make(map[uint64][32]byte)
	}

	if existing, exists := s.signedBlocks[slot][validator]; exists {
		if existing != blockID {
			return true, &SlashRecord{
				Validator: validator,
				Offense:   OffenseDoubleSign,
				Timestamp: timestamp,
				BlockID:   blockID,
			}
		}
		return false, nil
	}

	s.signedBlocks[slot][validator] = blockID

	// Retain only the last 1000 slots of evidence.
	if old := slot - 1000; old >= 0 {
		delete(s.signedBlocks, old)
	}
	return false, nil
}

// CalculateSlashAmount calculates the amount to slash based on offense type.
func (s *Slasher) CalculateSlashAmount(currentStake int64, offense SlashableOffense) (int64, error) {
	var percent int64
	switch offense {
	case OffenseDoubleSign, OffenseInvalidBlock:
		percent = int64(s.config.DoubleSignSlashPercent)
	case OffenseDowntime:
		percent = int64(s.config.DowntimeSlashPercent)
	default:
		return 0, fmt.Errorf("unknown offense type: %d", offense)
	}
	amount, err := safemath.SafeMulI64(currentStake, percent)
	if err != nil {
		return 0, err
	}
	return amount / 100, nil
}

// Slash applies slashing to validator and jails it. Returns the amount
// slashed; the caller is responsible for debiting validator's
// TotalStakedAmount by that amount in execution.State.
func (s *Slasher) Slash(validator uint64, stake int64, offense SlashableOffense, timestamp int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount, err := s.CalculateSlashAmount(stake, offense)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, nil
	}

	record := SlashRecord{
		Validator:   validator,
		Offense:     offense,
		Amount:      amount,
		Timestamp:   timestamp,
		JailedUntil: timestamp + s.config.JailDuration,
	}
	s.slashRecords = append(s.slashRecords, record)
	s.jailed[validator] = record.JailedUntil

	return amount, nil
}

// IsJailed reports whether validator is currently jailed at currentTime
// (unix seconds).
func (s *Slasher) IsJailed(validator uint64, currentTime int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	until, exists := s.jailed[validator]
	return exists && currentTime < until
}

// GetSlashRecords returns every slash record for validator.
func (s *Slasher) GetSlashRecords(validator uint64) []SlashRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SlashRecord
	for _, r := range s.slashRecords {
		if r.Validator == validator {
			out = append(out, r)
		}
	}
	return out
}
