package chain

import (
	"github.com/rs/zerolog/log"

	"novachain/core/codec"
	"novachain/core/crypto"
	"novachain/core/fork"
)

// ReceiveBlock is §4.9's receiveBlock: classify the incoming block
// against the current head and either append it normally or delegate to
// the Fork Resolver.
func (c *Chain) ReceiveBlock(block *codec.Block) error {
	return c.Sequence.Run(func() error {
		last := c.Store.LastBlock()
		if last == nil || (block.PreviousBlockID == last.Hash() && block.Height == last.Height+1) {
			return c.receiveNormalAppend(block)
		}
		return c.delegateToFork(block, last)
	})
}

// receiveNormalAppend implements §4.9's normal-append branch: undo any of
// this node's own speculative pool application for transactions that
// appear in the incoming block (their block-relative order or
// surrounding set may differ from this node's local pool state), apply
// the block fresh, then route every sender or recipient touched by the
// block whose pool transactions are still pending through conflict
// resolution.
func (c *Chain) receiveNormalAppend(block *codec.Block) error {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()

	for _, tx := range block.Transactions {
		if entry := c.Pool.Get(tx.IDHex()); entry != nil {
			c.Pool.Remove(entry.Tx)
		}
	}

	if err := c.ApplyBlock(block, true, true); err != nil {
		return err
	}

	touched := make(map[uint64]struct{}, len(block.Transactions)*2)
	for _, tx := range block.Transactions {
		touched[crypto.DeriveAddress(tx.SenderPublicKey[:])] = struct{}{}
		if r, ok := tx.Asset.(*codec.Transfer); ok {
			touched[r.RecipientAddress] = struct{}{}
		}
	}

	var senders []uint64
	for addr := range touched {
		if len(c.Pool.GetBySenderAddress(addr)) > 0 {
			senders = append(senders, addr)
		}
	}
	if len(senders) == 0 {
		return nil
	}
	return fork.ResolveSenderConflicts(c.Pool, c.Queue, c.State, senders)
}

func (c *Chain) delegateToFork(incoming, head *codec.Block) error {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()

	switch fork.Classify(incoming, head) {
	case fork.Fork1:
		return fork.ResolveFork1(c, incoming, head)
	case fork.Fork5:
		return fork.ResolveFork5(c, incoming, head)
	case fork.Same:
		log.Info().Str("incoming", incoming.IDHex()).Uint64("height", incoming.Height).Msg("block already confirmed, no-op")
		return nil
	default:
		log.Warn().Str("incoming", incoming.IDHex()).Uint64("height", incoming.Height).Msg("discarding block: not a recognized fork shape")
		return nil
	}
}
