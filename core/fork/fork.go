// Package fork implements §4.10's Fork Resolver: classifying an incoming
// block against the current head and reconciling the two recognized fork
// shapes. No teacher analog — the teacher's DAG model has no single
// linear head to fork from. The tie-break rule and the sender-conflict
// walk below follow spec.md §4.10's enumeration directly.
package fork

import (
	"novachain/core/codec"
	"novachain/core/execution"
	"novachain/core/tpu"
)

// Classification names the four shapes §4.10 distinguishes. The normal-
// append case is not one of them — callers rule it out before calling
// Classify at all.
type Classification int

const (
	// Same: incoming carries the same id and height as the current head —
	// a harmless duplicate delivery.
	Same Classification = iota
	// Fork1: consecutive height, different parent.
	Fork1
	// Fork5: same height, same parent, different id.
	Fork5
	// Discard: any other shape (older height, far-future height, ...).
	Discard
)

// Classify compares incoming against head. The caller is responsible for
// having already ruled out the normal-append case (height ==
// head.Height+1 && previousBlockId == head.id) before calling this.
func Classify(incoming, head *codec.Block) Classification {
	if head == nil {
		return Discard
	}
	if incoming.IDHex() == head.IDHex() && incoming.Height == head.Height {
		return Same
	}
	if incoming.Height == head.Height+1 && incoming.PreviousBlockID != head.Hash() {
		return Fork1
	}
	if incoming.Height == head.Height && incoming.PreviousBlockID == head.PreviousBlockID {
		return Fork5
	}
	return Discard
}

// winsTieBreak reports whether a displaces b: the older createdAt wins;
// equal createdAt breaks to the numerically smaller id.
func winsTieBreak(a, b *codec.Block) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.IDHex() < b.IDHex()
}

// ChainOps is the subset of *chain.Chain the resolvers below need.
// Defined here rather than imported from core/chain to avoid a cycle —
// chain imports fork to delegate into it.
type ChainOps interface {
	DeleteLastBlock() (*codec.Block, error)
	VerifyReceipt(block *codec.Block) error
	ApplyBlock(block *codec.Block, broadcast, save bool) error
}

// ResolveFork1 handles the consecutive-height-different-parent case. If
// incoming loses the tie-break, the existing head stands and nothing
// happens. If incoming wins, its receipt is validated — but it is not
// applied here, since it still points at a parent this node doesn't hold
// as its head — and the current head plus its parent are rolled back,
// leaving the chain ready to accept the fork's suffix as ordinary
// appends from whatever peer sends it next.
func ResolveFork1(ops ChainOps, incoming, head *codec.Block) error {
	if !winsTieBreak(incoming, head) {
		return nil
	}
	if err := ops.VerifyReceipt(incoming); err != nil {
		return err
	}
	if _, err := ops.DeleteLastBlock(); err != nil {
		return err
	}
	if _, err := ops.DeleteLastBlock(); err != nil {
		return err
	}
	return nil
}

// ResolveFork5 handles the same-height-same-parent-different-id case. If
// incoming wins, the current head is rolled back and the incoming block
// is processed as its replacement.
func ResolveFork5(ops ChainOps, incoming, head *codec.Block) error {
	if !winsTieBreak(incoming, head) {
		return nil
	}
	if _, err := ops.DeleteLastBlock(); err != nil {
		return err
	}
	return ops.ApplyBlock(incoming, true, true)
}

// ResolveSenderConflicts implements §4.10's per-sender walk: each
// sender's pool transactions are re-verified in order against current
// account state. The first one that fails, and every later pool
// transaction from that sender, is undone and pushed back to the queue
// for re-entry. A transfer's recipient, if itself a pool sender, is
// recursed into. visited guarantees termination across the recursion.
// state is accepted to match §4.10's signature; the actual re-check is
// delegated to queue.StillFeasible, which already has everything it
// needs (dispatcher and state) to re-run each type's real feasibility
// rule rather than a hand-rolled balance check here.
func ResolveSenderConflicts(pool *tpu.Pool, queue *tpu.Queue, state *execution.State, senders []uint64) error {
	visited := make(map[uint64]struct{})
	for _, addr := range senders {
		resolveSender(pool, queue, addr, visited)
	}
	return nil
}

func resolveSender(pool *tpu.Pool, queue *tpu.Queue, addr uint64, visited map[uint64]struct{}) {
	if _, done := visited[addr]; done {
		return
	}
	visited[addr] = struct{}{}

	entries := pool.GetBySenderAddress(addr)
	failedAt := -1
	for i, e := range entries {
		if !queue.StillFeasible(e.Tx) {
			failedAt = i
			break
		}
	}
	if failedAt < 0 {
		return
	}

	recipients := make(map[uint64]struct{})
	for _, e := range entries[failedAt:] {
		if e.HasRecipient {
			recipients[e.RecipientAddress] = struct{}{}
		}
		pool.Remove(e.Tx)
		queue.Push(e.Tx)
	}
	for recipient := range recipients {
		resolveSender(pool, queue, recipient, visited)
	}
}
