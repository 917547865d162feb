// Package chain implements the §4.9 Block Pipeline: generating, verifying,
// applying, and receiving blocks, plus the §5 concurrency discipline that
// keeps those operations single-writer. No direct teacher analog — the
// teacher's closest equivalent is the DAG AddVertex path in its miner loop
// and core/p2p/server.go's block-receive handler, both built around a bare
// sync.Mutex rather than a linear chain. This package generalizes that
// shape to a height-ordered chain with a bounded reorg window.
package chain

import (
	"crypto/sha256"
	"sync"

	"github.com/rs/zerolog/log"

	"novachain/core/codec"
	"novachain/core/config"
	"novachain/core/crypto"
	"novachain/core/errs"
	"novachain/core/execution"
	"novachain/core/math"
	"novachain/core/pulse"
	"novachain/core/staking"
	"novachain/core/store"
	"novachain/core/tpu"
)

// Broadcaster emits a block to the transport layer. Satisfied by
// core/p2p's server; kept as a minimal interface here so chain does not
// import p2p — p2p already depends on chain to drive ReceiveBlock, and a
// two-way import would cycle.
type Broadcaster interface {
	BroadcastBlock(block *codec.Block)
}

// Chain wires together every collaborator the block pipeline touches:
// the durable+in-memory Chain Store, the account ledger, the unconfirmed
// pool/queue, the delegate roster, and the slashing table. One Chain per
// running node.
type Chain struct {
	Clock   *pulse.Clock
	Store   *store.ChainStore
	State   *execution.State
	Pool    *tpu.Pool
	Queue   *tpu.Queue
	Roster  *staking.Roster
	Slasher *staking.Slasher
	Config  *config.Config

	Broadcaster Broadcaster

	// OnBlockApplied, if set, is called after a block is durably applied,
	// broadcast, and slash-checked. Optional; wired by the explorer API to
	// push new blocks to its websocket feed. Grounded on the teacher's
	// pulse.VertexStore.OnNewVertex hook.
	OnBlockApplied func(block *codec.Block)

	Sequence   *Sequence
	DBSequence *Sequence

	// poolMu guards the atomic pool+queue reshaping of §5: block generate,
	// block receive, and conflict resolution all hold it for the duration
	// of their reshaping. It is not reentrant — callers already holding it
	// must call the lower-case-free ApplyBlock/VerifyReceipt directly
	// rather than re-entering through ProcessBlock.
	poolMu sync.Mutex

	// lastRound is the round last reshuffled into Roster, so every node
	// re-elects exactly once per round boundary rather than once per
	// block. -1 guarantees the first applied block always reshuffles.
	lastRound int64
}

// New builds a Chain from its collaborators and starts its two sequences.
func New(cfg *config.Config, clock *pulse.Clock, cs *store.ChainStore, state *execution.State, pool *tpu.Pool, queue *tpu.Queue, roster *staking.Roster, slasher *staking.Slasher) *Chain {
	return &Chain{
		Clock:      clock,
		Store:      cs,
		State:      state,
		Pool:       pool,
		Queue:      queue,
		Roster:     roster,
		Slasher:    slasher,
		Config:     cfg,
		Sequence:   NewSequence(),
		DBSequence: NewSequence(),
		lastRound:  -1,
	}
}

func sha256Sum(b []byte) [32]byte {
	var out [32]byte
	h := sha256.Sum256(b)
	copy(out[:], h[:])
	return out
}

// GenerateBlock builds and applies a new block for slotTimestamp (epoch
// seconds), forged by kp, draining the pool for its transactions. §4.9
// generateBlock steps 1-6. Because Pool.PopSortedUnconfirmed never
// removes entries — removal happens only on successful Confirm inside
// ApplyBlock — a failure here leaves the drained transactions exactly
// where they were: still pooled, nothing to push back.
func (c *Chain) GenerateBlock(kp *crypto.KeyPair, slotTimestamp int64) (*codec.Block, error) {
	var built *codec.Block
	err := c.Sequence.Run(func() error {
		c.poolMu.Lock()
		defer c.poolMu.Unlock()

		entries := c.Pool.PopSortedUnconfirmed(c.Config.MaxTxPerBlock)

		block := &codec.Block{
			Version:   c.Config.BlockVersion,
			Height:    1,
			CreatedAt: uint32(slotTimestamp),
		}
		copy(block.GeneratorPublicKey[:], kp.PublicKey)
		if last := c.Store.LastBlock(); last != nil {
			height, err := math.SafeAdd(last.Height, 1)
			if err != nil {
				return errs.Newf(errs.InvariantViolated, "chain height overflow past %d", last.Height)
			}
			block.Height = height
			block.PreviousBlockID = last.Hash()
		}
		for _, e := range entries {
			block.Transactions = append(block.Transactions, e.Tx)
			_, amount := e.Tx.Asset.HeaderFields()
			block.Amount += int64(amount)
			block.Fee += e.Tx.Fee
		}

		digest := sha256Sum(block.SignBytes())
		block.Signature = kp.Sign(digest[:])

		if err := c.ApplyBlock(block, true, true); err != nil {
			return err
		}
		built = block
		return nil
	})
	return built, err
}

// ProcessBlock is the public entrypoint for §4.9's processBlock, for
// callers not already inside a Sequence.Run (genesis bootstrap, tests).
// It acquires both the sequence and the pool+queue lock itself.
func (c *Chain) ProcessBlock(block *codec.Block, broadcast, save bool) error {
	return c.Sequence.Run(func() error {
		c.poolMu.Lock()
		defer c.poolMu.Unlock()
		return c.ApplyBlock(block, broadcast, save)
	})
}

// ApplyBlock runs §4.9 processBlock steps 1-5 assuming the caller already
// holds poolMu (GenerateBlock, ReceiveBlock, and the fork resolver all
// call it directly while holding the lock; ProcessBlock acquires the lock
// itself for standalone callers).
func (c *Chain) ApplyBlock(block *codec.Block, broadcast, save bool) error {
	c.reshuffleIfRoundBoundary(c.Clock.SlotNumber(int64(block.CreatedAt)))

	if err := c.VerifyReceipt(block); err != nil {
		return err
	}
	if err := c.VerifyBlock(block); err != nil {
		return err
	}

	wasPooled := make([]bool, len(block.Transactions))
	applied := 0
	rollback := func() {
		for i := applied - 1; i >= 0; i-- {
			tx := block.Transactions[i]
			c.State.Undo(tx.IDHex())
			if wasPooled[i] {
				c.Queue.Push(tx)
			}
		}
	}

	for i, tx := range block.Transactions {
		if c.Pool.Get(tx.IDHex()) != nil {
			wasPooled[i] = true
		}
		if err := c.Queue.ApplyForBlock(tx); err != nil {
			rollback()
			return err
		}
		applied = i + 1
	}

	if save {
		evicted, err := c.Store.PushBlock(block)
		if err != nil {
			rollback()
			return err
		}
		if evicted != nil {
			for _, tx := range evicted.Transactions {
				c.State.Commit(tx.IDHex())
			}
		}
	}

	if broadcast && c.Broadcaster != nil {
		c.Broadcaster.BroadcastBlock(block)
	}

	c.recordSignatureAndSlash(block)
	if c.OnBlockApplied != nil {
		c.OnBlockApplied(block)
	}
	return nil
}

// reshuffleIfRoundBoundary re-elects the roster once per round, rather
// than once per block, by tracking the last round it ran for. A round
// spans Config.ActiveDelegates consecutive slots (glossary: "delegate
// roster is reshuffled at round boundaries"); ActiveDelegates <= 0 opts a
// node entirely out of automatic reshuffling, leaving Roster exactly as
// whatever the caller set up externally (genesis bootstrap, tests).
// Jailed delegates (core/staking/slashing.go, supplemented feature) are
// filtered out of the candidate list before electing, so a validator
// slashed for double-signing cannot be handed a slot in the very round
// that follows its offense.
func (c *Chain) reshuffleIfRoundBoundary(slot int64) {
	if c.Config.ActiveDelegates <= 0 {
		return
	}
	activeDelegates := int64(c.Config.ActiveDelegates)
	round := (pulse.LastSlotOfRound(slot, activeDelegates) + 1) / activeDelegates - 1
	if round == c.lastRound {
		return
	}
	c.lastRound = round

	candidates := staking.ElectCandidates(c.State, c.Config.ActiveDelegates)
	if c.Slasher != nil {
		now := c.Clock.SlotTime(slot)
		filtered := candidates[:0]
		for _, addr := range candidates {
			if !c.Slasher.IsJailed(addr, now) {
				filtered = append(filtered, addr)
			}
		}
		candidates = filtered
	}
	c.Roster.SetElected(candidates, round)
}

// recordSignatureAndSlash feeds the block into the slashing table's
// double-sign evidence and, if this generator has now signed two
// different blocks for the same slot, slashes and jails it. Supplemented
// behavior (teacher core/staking/slashing.go), run after a block's
// effects are already committed: the offense is in who signed what for a
// slot, not in whether either block is individually well-formed, so it
// must not block otherwise-valid application.
func (c *Chain) recordSignatureAndSlash(block *codec.Block) {
	if c.Slasher == nil {
		return
	}
	generatorAddr := crypto.DeriveAddress(block.GeneratorPublicKey[:])
	slot := c.Clock.SlotNumber(int64(block.CreatedAt))
	isDouble, record := c.Slasher.RecordBlockSigned(slot, generatorAddr, block.Hash(), int64(block.CreatedAt))
	if !isDouble {
		return
	}
	log.Warn().Uint64("validator", generatorAddr).Int64("slot", slot).Msg("double-sign detected")
	sender := c.State.Get(generatorAddr)
	if sender == nil {
		return
	}
	amount, err := c.Slasher.Slash(generatorAddr, sender.TotalStakedAmount, record.Offense, int64(block.CreatedAt))
	if err != nil || amount == 0 {
		return
	}
	session := "slash:" + block.IDHex()
	c.State.Begin(session)
	if err := c.State.Unstake(session, generatorAddr, amount); err != nil {
		c.State.Undo(session)
		return
	}
	c.State.Commit(session)
}

// VerifyReceipt implements §4.9 step 1: signature verify, version,
// generator membership in the elected set, and createdAt/slot/delegate
// agreement. id recomputation and payloadHash recomputation have no
// separate check here — codec.Block.Hash()/PayloadHash() are always
// derived from the in-memory struct, never trusted off the wire, so
// there is nothing stale to catch beyond what decoding already enforces.
func (c *Chain) VerifyReceipt(block *codec.Block) error {
	if block.Version != c.Config.BlockVersion {
		return errs.Newf(errs.Malformed, "block version %d does not match expected %d", block.Version, c.Config.BlockVersion)
	}

	digest := sha256Sum(block.SignBytes())
	if !crypto.Verify(block.GeneratorPublicKey[:], digest[:], block.Signature[:]) {
		return errs.New(errs.SignatureInvalid, "block signature does not verify")
	}

	generatorAddr := crypto.DeriveAddress(block.GeneratorPublicKey[:])
	if !c.Roster.IsElected(generatorAddr) {
		return errs.Newf(errs.SlotMismatch, "generator %d is not in the elected delegate set", generatorAddr)
	}

	slot := c.Clock.SlotNumber(int64(block.CreatedAt))
	if c.Clock.SlotTime(slot) != int64(block.CreatedAt) {
		return errs.Newf(errs.SlotMismatch, "createdAt %d is not a slot boundary", block.CreatedAt)
	}
	if want := c.Roster.GeneratorForSlot(slot); want != generatorAddr {
		return errs.Newf(errs.SlotMismatch, "slot %d belongs to delegate %d, not %d", slot, want, generatorAddr)
	}
	return nil
}

// VerifyBlock implements §4.9 step 2's chain-relative checks.
func (c *Chain) VerifyBlock(block *codec.Block) error {
	last := c.Store.LastBlock()
	wantHeight, wantPrev := uint64(1), [32]byte{}
	wantCreatedAfter := int64(-1)
	if last != nil {
		height, err := math.SafeAdd(last.Height, 1)
		if err != nil {
			return errs.Newf(errs.InvariantViolated, "chain height overflow past %d", last.Height)
		}
		wantHeight = height
		wantPrev = last.Hash()
		wantCreatedAfter = int64(last.CreatedAt)
	}
	if block.Height != wantHeight {
		return errs.Newf(errs.InvariantViolated, "block height %d, want %d", block.Height, wantHeight)
	}
	if block.PreviousBlockID != wantPrev {
		return errs.New(errs.ChainDivergent, "block previousBlockId does not match chain head")
	}
	if int64(block.CreatedAt) <= wantCreatedAfter {
		return errs.Newf(errs.InvariantViolated, "block createdAt %d does not advance past head createdAt %d", block.CreatedAt, wantCreatedAfter)
	}

	seen := make(map[string]struct{}, len(block.Transactions))
	size := codec.BlockHeaderLength
	for _, tx := range block.Transactions {
		id := tx.IDHex()
		if _, dup := seen[id]; dup {
			return errs.Newf(errs.InvariantViolated, "duplicate transaction id %s in block", id)
		}
		seen[id] = struct{}{}
		size += len(tx.Bytes())
	}
	if c.Config.MaxBlockBytes > 0 && size > c.Config.MaxBlockBytes {
		return errs.Newf(errs.InvariantViolated, "block size %d exceeds MAX_BLOCK_BYTES %d", size, c.Config.MaxBlockBytes)
	}
	return nil
}

// DeleteLastBlock pops the current head off the Chain Store and undoes
// its transactions' diary sessions in reverse of their original apply
// order — a no-op per session that already fell out of the reorg window
// and was Committed — then pushes them back onto the Queue so they
// re-enter the pool on their own terms.
func (c *Chain) DeleteLastBlock() (*codec.Block, error) {
	block, err := c.Store.DeleteLastBlock()
	if err != nil || block == nil {
		return block, err
	}
	for i := len(block.Transactions) - 1; i >= 0; i-- {
		tx := block.Transactions[i]
		c.State.Undo(tx.IDHex())
		c.Queue.Push(tx)
	}
	return block, nil
}
