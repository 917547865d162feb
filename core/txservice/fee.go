package txservice

// Flat per-type base fees, denominated in the same integer unit as
// Account.ActualBalance. VOTE additionally scales with the voter's stake
// (§4.5: "fee is recomputed during verification... some types (VOTE)
// depend on sender.totalStakedAmount").
const (
	TransferFee = 10_000
	VoteBaseFee = 5_000
	StakeFee    = 10_000
	UnstakeFee  = 10_000
	DelegateFee = 10_000
	WithdrawFee = 10_000
	GrantFee    = 0 // genesis-only operation; no fee charged
)

// voteStakeFeeDivisor scales the stake-proportional component of a VOTE
// transaction's fee: one fee unit per this many units of staked balance.
const voteStakeFeeDivisor = 10_000
