package txservice

import (
	"novachain/core/codec"
	"novachain/core/errs"
	"novachain/core/execution"
)

// GrantService implements §4.5 for AssetGrant: a genesis validator grants
// locked stake to a new validator, minting the amount rather than moving
// it from the sender's own balance. Only callable by a genesis address —
// the pipeline enforces that restriction, not this service, since
// "which addresses are genesis validators" is chain configuration, not an
// asset-decoding concern.
type GrantService struct{}

func (s *GrantService) Type() codec.AssetType { return codec.AssetGrant }

func (s *GrantService) Validate(tx *codec.Transaction) *errs.VerifyResult {
	g, ok := tx.Asset.(*codec.Grant)
	if !ok {
		return errs.Fail(errs.Malformed, "asset is not a Grant")
	}
	if g.Amount <= 0 {
		return errs.Fail(errs.InvariantViolated, "invalid amount: grant amount must be positive")
	}
	return errs.Ok()
}

func (s *GrantService) CalculateFee(tx *codec.Transaction, sender *execution.Account) int64 {
	return GrantFee
}

func (s *GrantService) VerifyUnconfirmed(tx *codec.Transaction, sender *execution.Account) *errs.VerifyResult {
	return errs.Ok()
}

func (s *GrantService) ApplyUnconfirmed(sessionID string, tx *codec.Transaction, senderAddr uint64, state *execution.State) error {
	g := tx.Asset.(*codec.Grant)
	var zero [32]byte
	if err := state.Credit(sessionID, g.RecipientAddress, zero, g.Amount); err != nil {
		return err
	}
	return state.Stake(sessionID, g.RecipientAddress, g.Amount, 0)
}
