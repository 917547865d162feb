package txservice

import (
	"novachain/core/codec"
	"novachain/core/errs"
	"novachain/core/execution"
)

// WithdrawService implements §4.5 for AssetWithdraw: claim previously
// unstaked funds. Unstake already moved the funds out of
// TotalStakedAmount into the spendable balance (see UnstakeService);
// Withdraw here is the explicit claim step some external unbonding-delay
// policy gates, so it only needs to confirm the funds are present and
// move them out of the account rather than touching stake bookkeeping
// again.
type WithdrawService struct{}

func (s *WithdrawService) Type() codec.AssetType { return codec.AssetWithdraw }

func (s *WithdrawService) Validate(tx *codec.Transaction) *errs.VerifyResult {
	w, ok := tx.Asset.(*codec.Withdraw)
	if !ok {
		return errs.Fail(errs.Malformed, "asset is not a Withdraw")
	}
	if w.Amount <= 0 {
		return errs.Fail(errs.InvariantViolated, "invalid amount: withdraw amount must be positive")
	}
	return errs.Ok()
}

func (s *WithdrawService) CalculateFee(tx *codec.Transaction, sender *execution.Account) int64 {
	return WithdrawFee
}

func (s *WithdrawService) VerifyUnconfirmed(tx *codec.Transaction, sender *execution.Account) *errs.VerifyResult {
	w := tx.Asset.(*codec.Withdraw)
	if sender.SpendableBalance() < w.Amount+tx.Fee {
		return errs.Failf(errs.InsufficientBalance, "spendable balance %d cannot cover withdraw %d + fee %d", sender.SpendableBalance(), w.Amount, tx.Fee)
	}
	return errs.Ok()
}

func (s *WithdrawService) ApplyUnconfirmed(sessionID string, tx *codec.Transaction, senderAddr uint64, state *execution.State) error {
	w := tx.Asset.(*codec.Withdraw)
	return state.Debit(sessionID, senderAddr, w.Amount+tx.Fee)
}
