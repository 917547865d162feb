package txservice

import (
	"novachain/core/codec"
	"novachain/core/errs"
	"novachain/core/execution"
)

// VoteService implements §4.5 for AssetVote: cast/withdraw delegate
// votes, and optionally claim a staking reward split with airdrop
// sponsors.
type VoteService struct{}

func (s *VoteService) Type() codec.AssetType { return codec.AssetVote }

func (s *VoteService) Validate(tx *codec.Transaction) *errs.VerifyResult {
	v, ok := tx.Asset.(*codec.Vote)
	if !ok {
		return errs.Fail(errs.Malformed, "asset is not a Vote")
	}
	if len(v.Votes) == 0 && !v.Reward && !v.Unstake {
		return errs.Fail(errs.InvariantViolated, "vote transaction has no votes, reward claim, or unstake request")
	}
	for _, entry := range v.Votes {
		if entry.Direction != 1 && entry.Direction != -1 {
			return errs.Failf(errs.Malformed, "vote direction must be +1 or -1, got %d", entry.Direction)
		}
	}
	for _, sp := range v.Sponsors {
		if sp.Amount < 0 {
			return errs.Fail(errs.InvariantViolated, "sponsor amount must be non-negative")
		}
	}
	return errs.Ok()
}

func (s *VoteService) CalculateFee(tx *codec.Transaction, sender *execution.Account) int64 {
	v := tx.Asset.(*codec.Vote)
	return int64(len(v.Votes))*VoteBaseFee + sender.TotalStakedAmount/voteStakeFeeDivisor
}

func (s *VoteService) VerifyUnconfirmed(tx *codec.Transaction, sender *execution.Account) *errs.VerifyResult {
	v := tx.Asset.(*codec.Vote)
	if sender.SpendableBalance() < tx.Fee {
		return errs.Failf(errs.InsufficientBalance, "spendable balance %d cannot cover fee %d", sender.SpendableBalance(), tx.Fee)
	}
	for _, entry := range v.Votes {
		_, already := sender.Votes[entry.Address]
		if entry.Direction == 1 && already {
			return errs.Failf(errs.InvariantViolated, "already voted for delegate %d", entry.Address)
		}
		if entry.Direction == -1 && !already {
			return errs.Failf(errs.InvariantViolated, "no existing vote for delegate %d to withdraw", entry.Address)
		}
	}
	if v.Unstake && sender.TotalStakedAmount <= 0 {
		return errs.Fail(errs.InvariantViolated, "no staked amount to unstake")
	}
	return errs.Ok()
}

func (s *VoteService) ApplyUnconfirmed(sessionID string, tx *codec.Transaction, senderAddr uint64, state *execution.State) error {
	v := tx.Asset.(*codec.Vote)
	sender := state.Get(senderAddr)
	if err := state.Debit(sessionID, senderAddr, tx.Fee); err != nil {
		return err
	}
	for _, entry := range v.Votes {
		if entry.Direction == 1 {
			state.AddVote(sessionID, senderAddr, entry.Address, sender.PublicKey)
		} else {
			state.RemoveVote(sessionID, senderAddr, entry.Address, sender.PublicKey)
		}
	}
	if v.Reward {
		reward := sender.TotalStakedAmount / 1000
		remaining := reward
		var zero [32]byte
		for _, sp := range v.Sponsors {
			amt := sp.Amount
			if amt > remaining {
				amt = remaining
			}
			if amt <= 0 {
				continue
			}
			if err := state.Credit(sessionID, sp.Address, zero, amt); err != nil {
				return err
			}
			remaining -= amt
		}
		if remaining > 0 {
			if err := state.Credit(sessionID, senderAddr, sender.PublicKey, remaining); err != nil {
				return err
			}
		}
	}
	return nil
}
