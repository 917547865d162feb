// Package staking implements delegate election and double-sign
// accountability. Grounded on the teacher's core/staking package
// (ValidateBlock's stake-floor check, Slasher's evidence table), reshaped
// from per-vertex validation to the round/slot roster the glossary's
// "Round. Contiguous block of slots... delegate roster is reshuffled at
// round boundaries" describes but spec.md never gives an algorithm for —
// the election rule and reshuffle seeding here are an invented-but-
// documented fill-in (see DESIGN.md).
package staking

import (
	"math/rand"
	"sort"
	"sync"

	"novachain/core/execution"
)

// MinDelegateStake is the floor a candidate's TotalStakedAmount must clear
// to be eligible for election, folding in the teacher's
// stake.go:MinStakeRequired role (there applied per-block at validation
// time; here applied once per election instead, since the roster itself
// is now the gate — a block's generator is checked against the elected
// set rather than re-checking stake on every block).
const MinDelegateStake = 1000 * 1_000_000

// Roster holds the elected delegate set for the current round, ordered so
// that elected[i] forges the i-th slot of the round.
type Roster struct {
	mu              sync.RWMutex
	activeDelegates int
	elected         []uint64
}

// NewRoster returns an empty Roster configured for activeDelegates seats.
func NewRoster(activeDelegates int) *Roster {
	return &Roster{activeDelegates: activeDelegates}
}

// ElectCandidates ranks every account whose TotalStakedAmount clears
// MinDelegateStake, highest stake first (address ascending breaks ties),
// and returns up to activeDelegates of them.
func ElectCandidates(state *execution.State, activeDelegates int) []uint64 {
	accounts := state.Accounts()
	type candidate struct {
		addr  uint64
		stake int64
	}
	candidates := make([]candidate, 0, len(accounts))
	for addr, acc := range accounts {
		if acc.TotalStakedAmount >= MinDelegateStake {
			candidates = append(candidates, candidate{addr, acc.TotalStakedAmount})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].stake != candidates[j].stake {
			return candidates[i].stake > candidates[j].stake
		}
		return candidates[i].addr < candidates[j].addr
	})
	if activeDelegates > 0 && len(candidates) > activeDelegates {
		candidates = candidates[:activeDelegates]
	}
	out := make([]uint64, len(candidates))
	for i, c := range candidates {
		out[i] = c.addr
	}
	return out
}

// Reshuffle re-elects the roster from the current state and deterministically
// shuffles the winners, seeded by round, so the same stake ranking doesn't
// hand the same validator the same slot position every round. Every node
// computes the same shuffle from the same (state, round) pair, so this
// stays consensus-deterministic despite using math/rand.
func (r *Roster) Reshuffle(state *execution.State, round int64) {
	elected := ElectCandidates(state, r.activeDelegates)
	rng := rand.New(rand.NewSource(round))
	rng.Shuffle(len(elected), func(i, j int) {
		elected[i], elected[j] = elected[j], elected[i]
	})
	r.mu.Lock()
	r.elected = elected
	r.mu.Unlock()
}

// SetElected deterministically shuffles candidates (already filtered by
// the caller — e.g. to exclude jailed delegates per the slashing table)
// seeded by round, the same way Reshuffle shuffles ElectCandidates' raw
// output. Lets core/chain fold Slasher.IsJailed into election without
// Roster needing to know about Slasher.
func (r *Roster) SetElected(candidates []uint64, round int64) {
	elected := append([]uint64(nil), candidates...)
	rng := rand.New(rand.NewSource(round))
	rng.Shuffle(len(elected), func(i, j int) {
		elected[i], elected[j] = elected[j], elected[i]
	})
	r.mu.Lock()
	r.elected = elected
	r.mu.Unlock()
}

// GeneratorForSlot returns the address scheduled to forge slot, or 0 if
// the roster is empty (no candidates have ever cleared MinDelegateStake).
func (r *Roster) GeneratorForSlot(slot int64) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.elected) == 0 {
		return 0
	}
	idx := slot % int64(len(r.elected))
	if idx < 0 {
		idx += int64(len(r.elected))
	}
	return r.elected[idx]
}

// IsElected reports whether addr currently holds a roster seat.
func (r *Roster) IsElected(addr uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.elected {
		if a == addr {
			return true
		}
	}
	return false
}

// Size returns the number of currently-elected delegates (<= activeDelegates).
func (r *Roster) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.elected)
}
