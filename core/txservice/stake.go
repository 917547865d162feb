package txservice

import (
	"novachain/core/codec"
	"novachain/core/errs"
	"novachain/core/execution"
)

// StakeService implements §4.5 for AssetStake: lock spendable balance as
// stake.
type StakeService struct{}

func (s *StakeService) Type() codec.AssetType { return codec.AssetStake }

func (s *StakeService) Validate(tx *codec.Transaction) *errs.VerifyResult {
	st, ok := tx.Asset.(*codec.Stake)
	if !ok {
		return errs.Fail(errs.Malformed, "asset is not a Stake")
	}
	if st.Amount <= 0 {
		return errs.Fail(errs.InvariantViolated, "invalid amount: stake amount must be positive")
	}
	return errs.Ok()
}

func (s *StakeService) CalculateFee(tx *codec.Transaction, sender *execution.Account) int64 {
	return StakeFee
}

func (s *StakeService) VerifyUnconfirmed(tx *codec.Transaction, sender *execution.Account) *errs.VerifyResult {
	st := tx.Asset.(*codec.Stake)
	if sender.SpendableBalance() < st.Amount+tx.Fee {
		return errs.Failf(errs.InsufficientBalance, "spendable balance %d cannot cover stake %d + fee %d", sender.SpendableBalance(), st.Amount, tx.Fee)
	}
	return errs.Ok()
}

func (s *StakeService) ApplyUnconfirmed(sessionID string, tx *codec.Transaction, senderAddr uint64, state *execution.State) error {
	st := tx.Asset.(*codec.Stake)
	if err := state.Debit(sessionID, senderAddr, tx.Fee); err != nil {
		return err
	}
	return state.Stake(sessionID, senderAddr, st.Amount, st.StartTimestamp)
}
