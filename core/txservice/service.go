// Package txservice implements the per-asset-type validate/verify/apply
// rules (§4.5). A Dispatcher resolves a transaction's AssetType to its
// Service; the block pipeline and transaction queue never switch on the
// type themselves, matching §9's "prefer exhaustive matching so adding a
// type is a compile-time change."
package txservice

import (
	"novachain/core/codec"
	"novachain/core/errs"
	"novachain/core/execution"
)

// Service is the per-type rule set §4.5 requires. calculateUndoUnconfirmed
// from §4.5 is not a separate method here: execution.State's diary-based
// Undo already reverses any mutation a Service's ApplyUnconfirmed made,
// regardless of asset type, so a bespoke per-type undo calculation would
// just be a slower way to reach the same state. See DESIGN.md.
type Service interface {
	Type() codec.AssetType

	// Validate performs static checks on tx alone: field presence,
	// ranges, structural legality. No account state is consulted.
	Validate(tx *codec.Transaction) *errs.VerifyResult

	// CalculateFee derives the fee tx should carry given the current
	// state of sender. Some types (VOTE) price the transaction against
	// sender.TotalStakedAmount.
	CalculateFee(tx *codec.Transaction, sender *execution.Account) int64

	// VerifyUnconfirmed performs dynamic checks against sender's current
	// state: balance sufficiency, vote legality, frozen stake windows.
	VerifyUnconfirmed(tx *codec.Transaction, sender *execution.Account) *errs.VerifyResult

	// ApplyUnconfirmed mutates state within sessionID to reflect tx being
	// accepted into the pool (or, for confirmed application, into a
	// block). senderAddr is the pre-derived sender address so services
	// never recompute DeriveAddress themselves.
	ApplyUnconfirmed(sessionID string, tx *codec.Transaction, senderAddr uint64, state *execution.State) error
}

// Dispatcher resolves an AssetType to its Service, per §4.5's "a
// dispatcher resolves type → service."
type Dispatcher struct {
	services map[codec.AssetType]Service
}

// NewDispatcher builds a Dispatcher with every known asset type
// registered, so an unregistered type is a startup bug, not a runtime
// one.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{services: make(map[codec.AssetType]Service)}
	for _, s := range []Service{
		&TransferService{},
		&VoteService{},
		&StakeService{},
		&UnstakeService{},
		&DelegateService{},
		&WithdrawService{},
		&GrantService{},
	} {
		d.services[s.Type()] = s
	}
	return d
}

// Resolve returns the Service for t, or a Malformed failure if t is not a
// known asset type.
func (d *Dispatcher) Resolve(t codec.AssetType) (Service, error) {
	s, ok := d.services[t]
	if !ok {
		return nil, errs.Newf(errs.Malformed, "no transaction service registered for asset type %v", t)
	}
	return s, nil
}
