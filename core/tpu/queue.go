package tpu

import (
	"sync"

	"novachain/core/codec"
	"novachain/core/crypto"
	"novachain/core/errs"
	"novachain/core/execution"
	"novachain/core/txservice"
)

// Queue is the FIFO buffer of not-yet-verified transactions (§4.6).
// Verify runs the full §4.5 verification chain and, on success, applies
// the transaction's account effect and hands it to the Pool.
type Queue struct {
	mu         sync.Mutex
	buf        []*codec.Transaction
	state      *execution.State
	dispatcher *txservice.Dispatcher
	pool       *Pool
}

// NewQueue builds a Queue that verifies against state via dispatcher and
// promotes accepted transactions into pool.
func NewQueue(state *execution.State, dispatcher *txservice.Dispatcher, pool *Pool) *Queue {
	return &Queue{state: state, dispatcher: dispatcher, pool: pool}
}

// Push appends tx to the FIFO. Re-pushing a transaction already resident
// in the pool is a silent no-op (§4.6 idempotence), checked at drain time
// rather than here so Push itself never blocks on pool state.
func (q *Queue) Push(tx *codec.Transaction) {
	q.mu.Lock()
	q.buf = append(q.buf, tx)
	q.mu.Unlock()
}

// Len reports the number of transactions awaiting verification.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// DrainOne pops the oldest queued transaction and verifies it, returning
// the failure reason if it was dropped, or nil if accepted into the pool
// or skipped as an idempotent duplicate. Returns (nil, false) if the
// queue is empty.
func (q *Queue) DrainOne() (*errs.Failure, bool) {
	q.mu.Lock()
	if len(q.buf) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	tx := q.buf[0]
	q.buf = q.buf[1:]
	q.mu.Unlock()

	err := q.Verify(tx)
	if err == nil {
		return nil, true
	}
	if f, ok := err.(*errs.Failure); ok {
		return f, true
	}
	return errs.New(errs.Transient, err.Error()), true
}

// Verify runs the full verification chain of §4.5/§4.6 against the
// current state: static Validate, signature check, fee recomputation,
// dynamic VerifyUnconfirmed, then ApplyUnconfirmed under a diary session
// keyed by the transaction's id, before handing the entry to Pool.Add. On
// any failure the diary session (if opened) is undone and the
// transaction is dropped with a structured reason.
//
// The signature is checked against tx exactly as received — including
// whatever fee the sender signed over — before fee is ever touched here.
// §4.5 recomputes fee server-side and says the id is "recomputed if it
// changed", but nothing resigns the transaction when that happens: a
// server-computed fee that disagrees with the signed one can never
// satisfy the sender's signature, so it is treated as a rejection
// (mismatched fee) rather than an in-place rewrite of tx.Fee. This keeps
// id stable across the entire pool/diary lifetime of a transaction,
// which both Pool's indexes and the block pipeline's session-ownership
// handoff rely on.
func (q *Queue) Verify(tx *codec.Transaction) error {
	id := tx.IDHex()
	if q.pool.Get(id) != nil {
		return nil // already pooled; idempotent no-op
	}
	senderAddr, err := q.verifyAndApply(tx)
	if err != nil {
		return err
	}
	q.pool.Add(tx, senderAddr)
	return nil
}

// StillFeasible re-runs svc.VerifyUnconfirmed for tx against sender's
// current account state, without touching the diary or the pool. Used by
// fork conflict resolution (§4.10) to cheaply re-check an already-pooled
// transaction after the account it draws from has moved under it.
func (q *Queue) StillFeasible(tx *codec.Transaction) bool {
	svc, err := q.dispatcher.Resolve(tx.Type)
	if err != nil {
		return false
	}
	senderAddr := crypto.DeriveAddress(tx.SenderPublicKey[:])
	sender := q.state.Get(senderAddr)
	if sender == nil {
		return false
	}
	return svc.VerifyUnconfirmed(tx, sender).OK
}

// ApplyForBlock makes tx's account effect part of the block pipeline's
// in-progress apply, for a transaction arriving embedded in a block rather
// than through this node's own Push/Verify path. If tx is already pool
// resident — it passed Verify earlier and is sitting on this node's own
// pool — ownership of its already-open diary session transfers to the
// block via Pool.Confirm with no re-verification. Otherwise it runs the
// full verify+apply chain directly, opening the session for the block to
// own outright, matching §4.9's per-transaction verifyUnconfirmed+
// applyUnconfirmed step for transactions new to this node.
func (q *Queue) ApplyForBlock(tx *codec.Transaction) error {
	id := tx.IDHex()
	if q.pool.Get(id) != nil {
		q.pool.Confirm(tx)
		return nil
	}
	_, err := q.verifyAndApply(tx)
	return err
}

// verifyAndApply runs the full verification chain of §4.5/§4.6 against the
// current state: static Validate, signature check, fee recomputation,
// dynamic VerifyUnconfirmed, then ApplyUnconfirmed under a diary session
// keyed by the transaction's id. On any failure the diary session (if
// opened) is undone and the failure reason is returned. On success the
// session is left open under the caller's ownership (Queue.Verify hands it
// to the Pool; ApplyForBlock hands it to the block being processed).
//
// The signature is checked against tx exactly as received — including
// whatever fee the sender signed over — before fee is ever touched here.
// §4.5 recomputes fee server-side and says the id is "recomputed if it
// changed", but nothing resigns the transaction when that happens: a
// server-computed fee that disagrees with the signed one can never
// satisfy the sender's signature, so it is treated as a rejection
// (mismatched fee) rather than an in-place rewrite of tx.Fee. This keeps
// id stable across the entire pool/diary lifetime of a transaction,
// which both Pool's indexes and the block pipeline's session-ownership
// handoff rely on.
func (q *Queue) verifyAndApply(tx *codec.Transaction) (senderAddr uint64, err error) {
	id := tx.IDHex()
	senderAddr = crypto.DeriveAddress(tx.SenderPublicKey[:])
	svc, err := q.dispatcher.Resolve(tx.Type)
	if err != nil {
		return senderAddr, err
	}

	if res := svc.Validate(tx); !res.OK {
		return senderAddr, res.AsError()
	}

	digest := tx.Hash()
	if !crypto.Verify(tx.SenderPublicKey[:], digest[:], tx.Signature[:]) {
		return senderAddr, errs.New(errs.SignatureInvalid, "transaction signature does not verify")
	}

	sender := q.state.GetOrCreate(senderAddr, tx.SenderPublicKey)
	if wantFee := svc.CalculateFee(tx, sender); wantFee != tx.Fee {
		return senderAddr, errs.Newf(errs.InvariantViolated, "fee %d does not match required fee %d", tx.Fee, wantFee)
	}

	if res := svc.VerifyUnconfirmed(tx, sender); !res.OK {
		return senderAddr, res.AsError()
	}

	q.state.Begin(id)
	q.state.SetPublicKey(id, senderAddr, tx.SenderPublicKey)
	if err := svc.ApplyUnconfirmed(id, tx, senderAddr, q.state); err != nil {
		q.state.Undo(id)
		return senderAddr, err
	}

	return senderAddr, nil
}
