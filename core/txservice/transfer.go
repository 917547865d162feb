package txservice

import (
	"novachain/core/codec"
	"novachain/core/errs"
	"novachain/core/execution"
)

// TransferService implements §4.5 for AssetTransfer: move amount from
// sender's spendable balance to recipient's actual balance.
type TransferService struct{}

func (s *TransferService) Type() codec.AssetType { return codec.AssetTransfer }

func (s *TransferService) Validate(tx *codec.Transaction) *errs.VerifyResult {
	t, ok := tx.Asset.(*codec.Transfer)
	if !ok {
		return errs.Fail(errs.Malformed, "asset is not a Transfer")
	}
	if t.Amount == 0 {
		return errs.Fail(errs.InvariantViolated, "invalid amount: transfer amount must be non-zero")
	}
	if t.Amount < 0 {
		return errs.Fail(errs.InvariantViolated, "invalid amount: transfer amount must be positive")
	}
	return errs.Ok()
}

func (s *TransferService) CalculateFee(tx *codec.Transaction, sender *execution.Account) int64 {
	return TransferFee
}

func (s *TransferService) VerifyUnconfirmed(tx *codec.Transaction, sender *execution.Account) *errs.VerifyResult {
	t := tx.Asset.(*codec.Transfer)
	need := t.Amount + tx.Fee
	if sender.SpendableBalance() < need {
		return errs.Failf(errs.InsufficientBalance, "spendable balance %d cannot cover amount %d + fee %d", sender.SpendableBalance(), t.Amount, tx.Fee)
	}
	return errs.Ok()
}

func (s *TransferService) ApplyUnconfirmed(sessionID string, tx *codec.Transaction, senderAddr uint64, state *execution.State) error {
	t := tx.Asset.(*codec.Transfer)
	if err := state.Debit(sessionID, senderAddr, t.Amount+tx.Fee); err != nil {
		return err
	}
	var zero [32]byte
	return state.Credit(sessionID, t.RecipientAddress, zero, t.Amount)
}
