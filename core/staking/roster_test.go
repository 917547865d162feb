package staking

import (
	"testing"

	"novachain/core/execution"
)

func stakeAccount(s *execution.State, addr uint64, amount int64) {
	s.Begin("seed")
	s.Credit("seed", addr, [32]byte{}, amount)
	s.Stake("seed", addr, amount, 0)
	s.Commit("seed")
}

func TestElectCandidatesRanksByStakeDescending(t *testing.T) {
	s := execution.NewState()
	stakeAccount(s, 1, MinDelegateStake)
	stakeAccount(s, 2, MinDelegateStake*3)
	stakeAccount(s, 3, MinDelegateStake*2)

	got := ElectCandidates(s, 10)
	want := []uint64{2, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("ElectCandidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestElectCandidatesExcludesBelowMinimum(t *testing.T) {
	s := execution.NewState()
	stakeAccount(s, 1, MinDelegateStake-1)
	stakeAccount(s, 2, MinDelegateStake)

	got := ElectCandidates(s, 10)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("ElectCandidates = %v, want [2]", got)
	}
}

func TestElectCandidatesRespectsActiveDelegatesLimit(t *testing.T) {
	s := execution.NewState()
	for addr := uint64(1); addr <= 5; addr++ {
		stakeAccount(s, addr, MinDelegateStake*int64(addr))
	}
	got := ElectCandidates(s, 2)
	if len(got) != 2 {
		t.Fatalf("ElectCandidates = %v, want 2 entries", got)
	}
	if got[0] != 5 || got[1] != 4 {
		t.Errorf("got %v, want top 2 stakers [5 4]", got)
	}
}

func TestRosterGeneratorForSlotCyclesElectedSet(t *testing.T) {
	s := execution.NewState()
	stakeAccount(s, 1, MinDelegateStake)
	stakeAccount(s, 2, MinDelegateStake)

	r := NewRoster(2)
	r.Reshuffle(s, 7)

	if r.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", r.Size())
	}
	gen0 := r.GeneratorForSlot(0)
	gen2 := r.GeneratorForSlot(2)
	if gen0 != gen2 {
		t.Errorf("GeneratorForSlot(0)=%d and GeneratorForSlot(2)=%d should match (cycle length 2)", gen0, gen2)
	}
	if !r.IsElected(gen0) {
		t.Errorf("GeneratorForSlot result %d must be elected", gen0)
	}
}

func TestRosterEmptyGeneratorIsZero(t *testing.T) {
	r := NewRoster(3)
	if got := r.GeneratorForSlot(5); got != 0 {
		t.Errorf("GeneratorForSlot on empty roster = %d, want 0", got)
	}
	if r.IsElected(42) {
		t.Error("empty roster must not elect anything")
	}
}
