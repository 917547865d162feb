package txservice

import (
	"novachain/core/codec"
	"novachain/core/errs"
	"novachain/core/execution"
)

// DelegateService implements §4.5 for AssetDelegate: liquid-stake
// sender's funds into a validator's pool without leaving the sender's
// own stake list (the validator, not the sender, tracks the Stake
// entry — a sender may delegate to many validators).
type DelegateService struct{}

func (s *DelegateService) Type() codec.AssetType { return codec.AssetDelegate }

func (s *DelegateService) Validate(tx *codec.Transaction) *errs.VerifyResult {
	d, ok := tx.Asset.(*codec.Delegate)
	if !ok {
		return errs.Fail(errs.Malformed, "asset is not a Delegate")
	}
	if d.Amount <= 0 {
		return errs.Fail(errs.InvariantViolated, "invalid amount: delegate amount must be positive")
	}
	return errs.Ok()
}

func (s *DelegateService) CalculateFee(tx *codec.Transaction, sender *execution.Account) int64 {
	return DelegateFee
}

func (s *DelegateService) VerifyUnconfirmed(tx *codec.Transaction, sender *execution.Account) *errs.VerifyResult {
	d := tx.Asset.(*codec.Delegate)
	if sender.SpendableBalance() < d.Amount+tx.Fee {
		return errs.Failf(errs.InsufficientBalance, "spendable balance %d cannot cover delegate %d + fee %d", sender.SpendableBalance(), d.Amount, tx.Fee)
	}
	return errs.Ok()
}

func (s *DelegateService) ApplyUnconfirmed(sessionID string, tx *codec.Transaction, senderAddr uint64, state *execution.State) error {
	d := tx.Asset.(*codec.Delegate)
	if err := state.Debit(sessionID, senderAddr, d.Amount+tx.Fee); err != nil {
		return err
	}
	// The delegated amount becomes part of the validator's own actual
	// balance before being locked, so TotalStakedAmount never exceeds
	// ActualBalance for an account that never held the funds directly.
	var zero [32]byte
	if err := state.Credit(sessionID, d.ValidatorAddress, zero, d.Amount); err != nil {
		return err
	}
	return state.Stake(sessionID, d.ValidatorAddress, d.Amount, 0)
}
