// Package execution holds the in-memory Address→Account ledger (§4.4).
// Mutations are routed through typed methods that record a pre-mutation
// snapshot in a per-session diary, so undo(session) restores byte-
// identical state no matter how many accounts a session touched.
package execution

import (
	"sync"

	"novachain/core/errs"
	"novachain/core/math"
)

// State is the Address→Account map plus its mutation diary. A State is
// safe under the single-writer discipline of §5: callers serialize
// mutating sessions externally (chain.Sequence); State itself only
// guards the read path with RWMutex so status/RPC reads never block a
// writer nor observe a half-mutated account.
type State struct {
	mu       sync.RWMutex
	accounts map[Address]*Account

	diaryMu sync.Mutex
	diaries map[string]map[Address]*Account // sessionID -> address -> pre-session snapshot
}

// NewState returns an empty ledger.
func NewState() *State {
	return &State{
		accounts: make(map[Address]*Account),
		diaries:  make(map[string]map[Address]*Account),
	}
}

// Get returns the account at address, or nil if it does not exist yet.
// The returned pointer is valid only until the next mutating call —
// callers inside a session must not retain it across a Begin/Undo/Commit
// boundary.
func (s *State) Get(address Address) *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[address]
}

// GetOrCreate returns the account at address, creating a zero-balance one
// keyed by publicKey if absent.
func (s *State) GetOrCreate(address Address, publicKey [32]byte) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[address]
	if !ok {
		acc = NewAccount(address, publicKey)
		s.accounts[address] = acc
	}
	return acc
}

// Accounts returns a shallow snapshot of every known account, keyed by
// address. Used by read-only, non-mutating scans (roster election,
// status/RPC summaries) that must not observe a half-mutated account
// mid-session.
func (s *State) Accounts() map[Address]*Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Address]*Account, len(s.accounts))
	for addr, acc := range s.accounts {
		out[addr] = acc
	}
	return out
}

// Begin opens a new diary session, identified by sessionID (a
// transaction id for pool-level apply/undo, or a block id for block-level
// apply/undo). Panics on a reused still-open sessionID — that indicates a
// caller bug, not a runtime condition to recover from.
func (s *State) Begin(sessionID string) {
	s.diaryMu.Lock()
	defer s.diaryMu.Unlock()
	if _, exists := s.diaries[sessionID]; exists {
		panic("execution: diary session " + sessionID + " already open")
	}
	s.diaries[sessionID] = make(map[Address]*Account)
}

// Commit discards a session's diary, making its mutations permanent.
func (s *State) Commit(sessionID string) {
	s.diaryMu.Lock()
	defer s.diaryMu.Unlock()
	delete(s.diaries, sessionID)
}

// Undo restores every account touched during sessionID to its
// pre-session snapshot, then discards the diary. Restoring a snapshot
// that was itself taken from a non-existent account deletes the account.
func (s *State) Undo(sessionID string) {
	s.diaryMu.Lock()
	snapshot := s.diaries[sessionID]
	delete(s.diaries, sessionID)
	s.diaryMu.Unlock()

	if snapshot == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, prior := range snapshot {
		if prior == nil {
			delete(s.accounts, addr)
			continue
		}
		s.accounts[addr] = prior
	}
}

// touch records the pre-mutation snapshot of address the first time it is
// mutated within sessionID, then returns the live account for mutation
// (creating it if absent).
func (s *State) touch(sessionID string, address Address, publicKey [32]byte) *Account {
	s.diaryMu.Lock()
	diary, ok := s.diaries[sessionID]
	if !ok {
		diary = make(map[Address]*Account)
		s.diaries[sessionID] = diary
	}
	_, recorded := diary[address]
	s.diaryMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, exists := s.accounts[address]
	if !recorded {
		s.diaryMu.Lock()
		if exists {
			diary[address] = acc.clone()
		} else {
			diary[address] = nil
		}
		s.diaryMu.Unlock()
	}
	if !exists {
		acc = NewAccount(address, publicKey)
		s.accounts[address] = acc
	}
	return acc
}

// Credit adds amount to address's ActualBalance within sessionID.
func (s *State) Credit(sessionID string, address Address, publicKey [32]byte, amount int64) error {
	acc := s.touch(sessionID, address, publicKey)
	next, err := math.SafeAddI64(acc.ActualBalance, amount)
	if err != nil {
		return errs.Newf(errs.InvariantViolated, "credit overflow for address %d: %v", address, err)
	}
	acc.ActualBalance = next
	return nil
}

// Debit subtracts amount from address's ActualBalance within sessionID.
// Fails with InsufficientBalance if ActualBalance would go negative.
func (s *State) Debit(sessionID string, address Address, amount int64) error {
	s.mu.RLock()
	acc := s.accounts[address]
	s.mu.RUnlock()
	if acc == nil {
		return errs.Newf(errs.InsufficientBalance, "address %d has no account", address)
	}
	next, err := math.SafeSubI64(acc.ActualBalance, amount)
	if err != nil || next < 0 {
		return errs.Newf(errs.InsufficientBalance, "address %d: balance %d cannot cover debit %d", address, acc.ActualBalance, amount)
	}
	live := s.touch(sessionID, address, acc.PublicKey)
	live.ActualBalance = next
	return nil
}

// Stake moves amount from spendable balance into TotalStakedAmount and
// appends a Stake entry starting at startTimestamp.
func (s *State) Stake(sessionID string, address Address, amount int64, startTimestamp uint32) error {
	s.mu.RLock()
	acc := s.accounts[address]
	s.mu.RUnlock()
	if acc == nil {
		return errs.Newf(errs.InsufficientBalance, "address %d has no account", address)
	}
	if acc.SpendableBalance() < amount {
		return errs.Newf(errs.InsufficientBalance, "address %d: spendable %d cannot cover stake %d", address, acc.SpendableBalance(), amount)
	}
	nextStaked, err := math.SafeAddI64(acc.TotalStakedAmount, amount)
	if err != nil {
		return errs.Newf(errs.InvariantViolated, "stake overflow for address %d: %v", address, err)
	}
	live := s.touch(sessionID, address, acc.PublicKey)
	live.TotalStakedAmount = nextStaked
	live.Stakes = append(live.Stakes, Stake{Amount: amount, StartTimestamp: startTimestamp})
	return nil
}

// Unstake releases amount of previously staked funds back into the
// spendable balance, consuming matching Stake entries oldest-first.
func (s *State) Unstake(sessionID string, address Address, amount int64) error {
	s.mu.RLock()
	acc := s.accounts[address]
	s.mu.RUnlock()
	if acc == nil || acc.TotalStakedAmount < amount {
		return errs.Newf(errs.InsufficientBalance, "address %d has insufficient staked amount", address)
	}
	live := s.touch(sessionID, address, acc.PublicKey)
	live.TotalStakedAmount -= amount
	remaining := amount
	kept := live.Stakes[:0:0]
	for _, st := range live.Stakes {
		if remaining <= 0 {
			kept = append(kept, st)
			continue
		}
		if st.Amount <= remaining {
			remaining -= st.Amount
			continue
		}
		kept = append(kept, Stake{Amount: st.Amount - remaining, StartTimestamp: st.StartTimestamp})
		remaining = 0
	}
	live.Stakes = kept
	return nil
}

// SetPublicKey records address's real public key the first time it is
// seen as a sender, without disturbing an account created earlier as a
// transfer recipient with only its address known (publicKey left zero
// until the address sends its own transaction).
func (s *State) SetPublicKey(sessionID string, address Address, publicKey [32]byte) {
	s.mu.RLock()
	acc := s.accounts[address]
	s.mu.RUnlock()
	var zero [32]byte
	if acc != nil && acc.PublicKey != zero {
		return
	}
	live := s.touch(sessionID, address, publicKey)
	live.PublicKey = publicKey
}

// AddVote records address casting a vote for validator within sessionID.
func (s *State) AddVote(sessionID string, address, validator Address, publicKey [32]byte) {
	acc := s.touch(sessionID, address, publicKey)
	if acc.Votes == nil {
		acc.Votes = make(map[Address]struct{})
	}
	acc.Votes[validator] = struct{}{}
}

// RemoveVote removes address's vote for validator within sessionID.
func (s *State) RemoveVote(sessionID string, address, validator Address, publicKey [32]byte) {
	acc := s.touch(sessionID, address, publicKey)
	delete(acc.Votes, validator)
}
