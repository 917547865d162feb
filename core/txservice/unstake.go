package txservice

import (
	"novachain/core/codec"
	"novachain/core/errs"
	"novachain/core/execution"
)

// UnstakeService implements §4.5 for AssetUnstake: begin unbonding a
// portion of staked funds.
type UnstakeService struct{}

func (s *UnstakeService) Type() codec.AssetType { return codec.AssetUnstake }

func (s *UnstakeService) Validate(tx *codec.Transaction) *errs.VerifyResult {
	u, ok := tx.Asset.(*codec.Unstake)
	if !ok {
		return errs.Fail(errs.Malformed, "asset is not an Unstake")
	}
	if u.Amount <= 0 {
		return errs.Fail(errs.InvariantViolated, "invalid amount: unstake amount must be positive")
	}
	return errs.Ok()
}

func (s *UnstakeService) CalculateFee(tx *codec.Transaction, sender *execution.Account) int64 {
	return UnstakeFee
}

func (s *UnstakeService) VerifyUnconfirmed(tx *codec.Transaction, sender *execution.Account) *errs.VerifyResult {
	u := tx.Asset.(*codec.Unstake)
	if sender.TotalStakedAmount < u.Amount {
		return errs.Failf(errs.InsufficientBalance, "staked amount %d cannot cover unstake %d", sender.TotalStakedAmount, u.Amount)
	}
	if sender.SpendableBalance() < tx.Fee {
		return errs.Failf(errs.InsufficientBalance, "spendable balance %d cannot cover fee %d", sender.SpendableBalance(), tx.Fee)
	}
	return errs.Ok()
}

func (s *UnstakeService) ApplyUnconfirmed(sessionID string, tx *codec.Transaction, senderAddr uint64, state *execution.State) error {
	u := tx.Asset.(*codec.Unstake)
	if err := state.Debit(sessionID, senderAddr, tx.Fee); err != nil {
		return err
	}
	return state.Unstake(sessionID, senderAddr, u.Amount)
}
