package codec

import "encoding/binary"

// AssetType is the sealed variant tag for a transaction's asset payload
// (§3 AssetT). Kept as an exhaustive Go type switch rather than an open
// interface hierarchy so adding a type is a compile-time change, per §9.
type AssetType uint8

const (
	AssetTransfer AssetType = 0
	AssetVote     AssetType = 1
	AssetStake    AssetType = 2
	AssetUnstake  AssetType = 3
	AssetDelegate AssetType = 4
	AssetWithdraw AssetType = 5
	AssetGrant    AssetType = 6
)

func (t AssetType) String() string {
	switch t {
	case AssetTransfer:
		return "TRANSFER"
	case AssetVote:
		return "VOTE"
	case AssetStake:
		return "STAKE"
	case AssetUnstake:
		return "UNSTAKE"
	case AssetDelegate:
		return "DELEGATE"
	case AssetWithdraw:
		return "WITHDRAW"
	case AssetGrant:
		return "GRANT"
	default:
		return "UNKNOWN"
	}
}

// Asset is the per-variant payload of a Transaction. HeaderFields supplies
// the two fixed header slots the §4.1 layout reserves (recipientAddress,
// amount) — zero for every variant except Transfer. Tail supplies the
// variable bytes appended after the fixed header.
type Asset interface {
	Type() AssetType
	HeaderFields() (recipientAddress uint64, amount uint64)
	Tail() []byte
}

// Transfer moves value from sender to recipient.
type Transfer struct {
	RecipientAddress uint64
	Amount           int64
}

func (a *Transfer) Type() AssetType { return AssetTransfer }

func (a *Transfer) HeaderFields() (uint64, uint64) {
	return a.RecipientAddress, uint64(a.Amount)
}

func (a *Transfer) Tail() []byte { return nil }

// VoteEntry is one delegate vote cast or withdrawn by a Vote transaction.
// Direction is +1 to cast, -1 to withdraw.
type VoteEntry struct {
	Direction int8
	Address   uint64
}

// SponsorEntry is one entry of the ordered airdrop-reward sponsor map.
type SponsorEntry struct {
	Address uint64
	Amount  int64
}

// Vote casts or withdraws delegate votes and may claim a staking reward.
type Vote struct {
	Votes    []VoteEntry
	Reward   bool
	Unstake  bool
	Sponsors []SponsorEntry // airdropReward.sponsors, insertion order preserved
}

func (a *Vote) Type() AssetType                { return AssetVote }
func (a *Vote) HeaderFields() (uint64, uint64) { return 0, 0 }

func (a *Vote) Tail() []byte {
	buf := make([]byte, 2, 2+len(a.Votes)*9+2+2+len(a.Sponsors)*16)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(a.Votes)))
	for _, v := range a.Votes {
		buf = append(buf, byte(v.Direction))
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v.Address)
		buf = append(buf, b[:]...)
	}
	flags := byte(0)
	if a.Reward {
		flags |= 1
	}
	if a.Unstake {
		flags |= 2
	}
	buf = append(buf, flags)
	var cnt [2]byte
	binary.LittleEndian.PutUint16(cnt[:], uint16(len(a.Sponsors)))
	buf = append(buf, cnt[:]...)
	for _, s := range a.Sponsors {
		var ab [8]byte
		binary.LittleEndian.PutUint64(ab[:], s.Address)
		buf = append(buf, ab[:]...)
		var amt [8]byte
		binary.LittleEndian.PutUint64(amt[:], uint64(s.Amount))
		buf = append(buf, amt[:]...)
	}
	return buf
}

// Stake locks funds as stake, starting at StartTimestamp.
type Stake struct {
	Amount         int64
	StartTimestamp uint32
}

func (a *Stake) Type() AssetType                { return AssetStake }
func (a *Stake) HeaderFields() (uint64, uint64) { return 0, 0 }

func (a *Stake) Tail() []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(a.Amount))
	binary.LittleEndian.PutUint32(buf[8:12], a.StartTimestamp)
	return buf
}

// Unstake begins the unbonding period for Amount of stake.
type Unstake struct {
	Amount int64
}

func (a *Unstake) Type() AssetType                { return AssetUnstake }
func (a *Unstake) HeaderFields() (uint64, uint64) { return 0, 0 }

func (a *Unstake) Tail() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(a.Amount))
	return buf
}

// Delegate moves funds from the sender's balance into a validator's
// stake pool (liquid staking).
type Delegate struct {
	ValidatorAddress uint64
	Amount           int64
}

func (a *Delegate) Type() AssetType                { return AssetDelegate }
func (a *Delegate) HeaderFields() (uint64, uint64) { return 0, 0 }

func (a *Delegate) Tail() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], a.ValidatorAddress)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(a.Amount))
	return buf
}

// Withdraw claims Amount of funds after the unbonding period has elapsed.
type Withdraw struct {
	Amount int64
}

func (a *Withdraw) Type() AssetType                { return AssetWithdraw }
func (a *Withdraw) HeaderFields() (uint64, uint64) { return 0, 0 }

func (a *Withdraw) Tail() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(a.Amount))
	return buf
}

// Grant allows a genesis validator to grant locked stake to a new
// validator.
type Grant struct {
	RecipientAddress uint64
	Amount           int64
}

func (a *Grant) Type() AssetType                { return AssetGrant }
func (a *Grant) HeaderFields() (uint64, uint64) { return 0, 0 }

func (a *Grant) Tail() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], a.RecipientAddress)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(a.Amount))
	return buf
}
