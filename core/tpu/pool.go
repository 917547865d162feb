// Package tpu ("transaction processing unit") implements the two-stage
// unconfirmed-transaction pipeline of §4.6/§4.7: an unverified FIFO Queue
// feeding a verified, indexed Pool. Grounded on the teacher's
// ingest.go worker pool and mempool.go fee-sorted batch extraction,
// generalized from a flat fee-sorted map into the id/sender/recipient
// triple-indexed structure §4.7 requires.
package tpu

import (
	"sort"
	"sync"

	"novachain/core/codec"
	"novachain/core/execution"
)

// PoolEntry is a verified unconfirmed transaction, indexed by id and by
// both sender and recipient address (§3 "Pool entry").
type PoolEntry struct {
	Tx               *codec.Transaction
	ID               string
	SenderAddress    uint64
	RecipientAddress uint64 // 0 if the asset has no recipient concept
	HasRecipient     bool
}

// Pool is the keyed+indexed structure of §4.7. Account mutation for a
// pooled transaction is assumed already applied (and its diary session
// still open) by the caller before Add — Pool itself only manages the
// id/sender/recipient indexes, matching §4.7's "add(tx): insert;
// preconditions: passed verify; account mutation applied."
type Pool struct {
	mu          sync.RWMutex
	byID        map[string]*PoolEntry
	bySender    map[uint64][]*PoolEntry
	byRecipient map[uint64][]*PoolEntry
	state       *execution.State
}

// NewPool returns an empty Pool backed by state for undo on Remove.
func NewPool(state *execution.State) *Pool {
	return &Pool{
		byID:        make(map[string]*PoolEntry),
		bySender:    make(map[uint64][]*PoolEntry),
		byRecipient: make(map[uint64][]*PoolEntry),
		state:       state,
	}
}

func recipientOf(tx *codec.Transaction) (uint64, bool) {
	if t, ok := tx.Asset.(*codec.Transfer); ok {
		return t.RecipientAddress, true
	}
	return 0, false
}

// Add indexes tx, keyed by its id and by senderAddress/recipientAddress.
// A re-add of an already-pooled id is a no-op, satisfying the queue's
// idempotence requirement (§4.6).
func (p *Pool) Add(tx *codec.Transaction, senderAddress uint64) {
	id := tx.IDHex()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byID[id]; exists {
		return
	}
	recipient, hasRecipient := recipientOf(tx)
	entry := &PoolEntry{
		Tx:               tx,
		ID:               id,
		SenderAddress:    senderAddress,
		RecipientAddress: recipient,
		HasRecipient:     hasRecipient,
	}
	p.byID[id] = entry
	p.bySender[senderAddress] = insertSorted(p.bySender[senderAddress], entry)
	if hasRecipient {
		p.byRecipient[recipient] = insertSorted(p.byRecipient[recipient], entry)
	}
}

// insertSorted inserts entry into a per-address list kept ordered by
// (createdAt asc, id asc), per §4.7.
func insertSorted(list []*PoolEntry, entry *PoolEntry) []*PoolEntry {
	i := sort.Search(len(list), func(i int) bool {
		return lessPerAddress(entry, list[i])
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = entry
	return list
}

func lessPerAddress(a, b *PoolEntry) bool {
	if a.Tx.CreatedAt != b.Tx.CreatedAt {
		return a.Tx.CreatedAt < b.Tx.CreatedAt
	}
	return a.ID < b.ID
}

// Remove undoes tx's account mutation (via the still-open diary session
// keyed by its id) and removes it from every index.
func (p *Pool) Remove(tx *codec.Transaction) {
	id := tx.IDHex()
	p.mu.Lock()
	entry, exists := p.byID[id]
	if !exists {
		p.mu.Unlock()
		return
	}
	delete(p.byID, id)
	p.bySender[entry.SenderAddress] = removeByID(p.bySender[entry.SenderAddress], id)
	if entry.HasRecipient {
		p.byRecipient[entry.RecipientAddress] = removeByID(p.byRecipient[entry.RecipientAddress], id)
	}
	p.mu.Unlock()

	p.state.Undo(id)
}

// Confirm removes tx from the pool's live indexes without undoing its
// account mutation — the transaction's diary session stays open under the
// block's ownership (see chain.Sequence), to be committed or undone as a
// unit with the rest of the block.
func (p *Pool) Confirm(tx *codec.Transaction) {
	id := tx.IDHex()
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, exists := p.byID[id]
	if !exists {
		return
	}
	delete(p.byID, id)
	p.bySender[entry.SenderAddress] = removeByID(p.bySender[entry.SenderAddress], id)
	if entry.HasRecipient {
		p.byRecipient[entry.RecipientAddress] = removeByID(p.byRecipient[entry.RecipientAddress], id)
	}
}

func removeByID(list []*PoolEntry, id string) []*PoolEntry {
	for i, e := range list {
		if e.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Get returns the pool entry for id, or nil if absent.
func (p *Pool) Get(id string) *PoolEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byID[id]
}

// Len returns the number of transactions currently pooled.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}

// PopSortedUnconfirmed returns up to limit transactions ordered by (fee
// desc, createdAt asc, id asc), WITHOUT removing them — §4.7 removal
// happens only on successful block apply via Confirm.
func (p *Pool) PopSortedUnconfirmed(limit int) []*PoolEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	all := make([]*PoolEntry, 0, len(p.byID))
	for _, e := range p.byID {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Tx.Fee != b.Tx.Fee {
			return a.Tx.Fee > b.Tx.Fee
		}
		if a.Tx.CreatedAt != b.Tx.CreatedAt {
			return a.Tx.CreatedAt < b.Tx.CreatedAt
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// GetBySenderAddress returns the sender's pool entries, ordered by
// (createdAt asc, id asc).
func (p *Pool) GetBySenderAddress(address uint64) []*PoolEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	list := p.bySender[address]
	out := make([]*PoolEntry, len(list))
	copy(out, list)
	return out
}

// GetByRecipientAddress returns the recipient's pool entries, ordered by
// (createdAt asc, id asc).
func (p *Pool) GetByRecipientAddress(address uint64) []*PoolEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	list := p.byRecipient[address]
	out := make([]*PoolEntry, len(list))
	copy(out, list)
	return out
}
