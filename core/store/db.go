// Package store implements the §4.8 Chain Store: an in-memory ring of
// recent blocks backed by a durable badger mirror. Grounded on the
// teacher's db.go (bare package-level *badger.DB with Init/Close) and
// pulse/store.go (gob envelope per key, "prefix:identifier" key
// convention, best-effort-synchronous persistence that logs rather than
// fails the in-memory mutation).
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"novachain/core/codec"
	"novachain/core/errs"
	"novachain/core/math"
)

const blockKeyPrefix = "b:"

// DB is the shared badger handle, kept at package scope as in the
// teacher's db.go. Within this module only ChainStore reads and writes it.
var DB *badger.DB

// Init opens the badger database at path.
func Init(path string) error {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Close closes the badger database, if open.
func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
}

// wireBlock is the gob envelope persisted per block. Block.Bytes()
// excludes Height (§6 deliberately leaves it out of the hash preimage as
// a derived/checked invariant rather than identity), so it travels
// alongside the canonical header bytes here.
type wireBlock struct {
	Height      uint64
	HeaderBytes []byte
	TxBytes     [][]byte
}

// ChainStore is the ring of recent blocks: depth entries in memory for
// fast lastBlock/fork-resolution access, mirrored block-by-block to
// badger for full durability. depth must be at least activeDelegates+2
// per §4.8.
type ChainStore struct {
	mu     sync.RWMutex
	recent []*codec.Block
	depth  int
}

// NewChainStore returns an empty ring retaining up to depth blocks in
// memory.
func NewChainStore(depth int) *ChainStore {
	return &ChainStore{depth: depth}
}

func blockKey(height uint64) []byte {
	key := make([]byte, len(blockKeyPrefix)+8)
	copy(key, blockKeyPrefix)
	binary.BigEndian.PutUint64(key[len(blockKeyPrefix):], height)
	return key
}

// LastBlock returns the current chain head, or nil if the store is empty.
func (c *ChainStore) LastBlock() *codec.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.recent) == 0 {
		return nil
	}
	return c.recent[len(c.recent)-1]
}

// Len reports the number of blocks currently held in the in-memory
// ring, not the chain's true height (callers wanting chain height should
// read LastBlock().Height).
func (c *ChainStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.recent)
}

// BlocksSince returns every block currently held in the in-memory ring
// with Height >= sinceHeight, oldest first. Used by the p2p sync
// handshake to answer a peer's "send me what you have past my head"
// request; blocks that have already fallen out of the ring (evicted past
// the reorg window) are not resent here — a peer that far behind needs a
// durable-store replay, not the live ring.
func (c *ChainStore) BlocksSince(sinceHeight uint64) []*codec.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*codec.Block
	for _, b := range c.recent {
		if b.Height >= sinceHeight {
			out = append(out, b)
		}
	}
	return out
}

// PushBlock appends b as the new head, trimming the in-memory ring to
// depth, and mirrors it to badger. The in-memory append always succeeds;
// a badger failure is logged and returned but does not unwind the
// in-memory push, matching §4.8's "best-effort-synchronous" durability.
// When the push trims a block off the tail of the ring, that block is
// returned as evicted — it has fallen outside the reorg window and its
// transactions' diary sessions are safe for the caller to Commit.
func (c *ChainStore) PushBlock(b *codec.Block) (evicted *codec.Block, err error) {
	c.mu.Lock()
	c.recent = append(c.recent, b)
	if c.depth > 0 && len(c.recent) > c.depth {
		evicted = c.recent[0]
		c.recent = c.recent[len(c.recent)-c.depth:]
	}
	c.mu.Unlock()

	if DB == nil {
		return evicted, nil
	}
	wb := wireBlock{Height: b.Height, HeaderBytes: b.Bytes()}
	for _, tx := range b.Transactions {
		wb.TxBytes = append(wb.TxBytes, tx.Bytes())
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wb); err != nil {
		return evicted, errs.Newf(errs.Transient, "encode block %d: %v", b.Height, err)
	}
	if err := DB.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(b.Height), buf.Bytes())
	}); err != nil {
		log.Error().Err(err).Uint64("height", b.Height).Msg("failed to persist block")
		return evicted, errs.Newf(errs.Transient, "persist block %d: %v", b.Height, err)
	}
	return evicted, nil
}

// DeleteLastBlock pops and returns the current head for fork recovery.
// Returns (nil, nil) if the store is empty.
func (c *ChainStore) DeleteLastBlock() (*codec.Block, error) {
	c.mu.Lock()
	if len(c.recent) == 0 {
		c.mu.Unlock()
		return nil, nil
	}
	b := c.recent[len(c.recent)-1]
	c.recent = c.recent[:len(c.recent)-1]
	c.mu.Unlock()

	if DB == nil {
		return b, nil
	}
	if err := DB.Update(func(txn *badger.Txn) error {
		return txn.Delete(blockKey(b.Height))
	}); err != nil {
		log.Error().Err(err).Uint64("height", b.Height).Msg("failed to delete persisted block")
		return b, errs.Newf(errs.Transient, "delete block %d: %v", b.Height, err)
	}
	return b, nil
}

// LoadFromDB repopulates the in-memory ring from badger on startup,
// reading the depth blocks up to and including headHeight.
func (c *ChainStore) LoadFromDB(headHeight uint64) error {
	if DB == nil {
		return nil
	}
	start := uint64(0)
	if c.depth > 0 && headHeight >= uint64(c.depth) {
		afterTrim, err := math.SafeSub(headHeight, uint64(c.depth))
		if err != nil {
			return errs.Newf(errs.InvariantViolated, "chain depth %d exceeds head height %d", c.depth, headHeight)
		}
		start, err = math.SafeAdd(afterTrim, 1)
		if err != nil {
			return errs.Newf(errs.InvariantViolated, "chain height overflow past %d", afterTrim)
		}
	}
	var loaded []*codec.Block
	err := DB.View(func(txn *badger.Txn) error {
		for h := start; h <= headHeight; h++ {
			item, err := txn.Get(blockKey(h))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var wb wireBlock
			if err := item.Value(func(val []byte) error {
				return gob.NewDecoder(bytes.NewReader(val)).Decode(&wb)
			}); err != nil {
				return err
			}
			b, err := decodeWireBlock(wb)
			if err != nil {
				return err
			}
			loaded = append(loaded, b)
		}
		return nil
	})
	if err != nil {
		return errs.Newf(errs.Transient, "load chain from db: %v", err)
	}
	c.mu.Lock()
	c.recent = loaded
	c.mu.Unlock()
	return nil
}

func decodeWireBlock(wb wireBlock) (*codec.Block, error) {
	txs := make([]*codec.Transaction, 0, len(wb.TxBytes))
	for _, raw := range wb.TxBytes {
		tx, err := codec.DecodeTransaction(raw)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	b, err := codec.DecodeBlock(wb.HeaderBytes, txs)
	if err != nil {
		return nil, err
	}
	b.Height = wb.Height
	return b, nil
}
