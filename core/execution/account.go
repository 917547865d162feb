package execution

// Address is a derived account identifier — see crypto.DeriveAddress.
type Address = uint64

// Stake is one entry of an account's ordered stake list (§3).
type Stake struct {
	Amount         int64
	StartTimestamp uint32
}

// Account is the per-address ledger entry (§3). ActualBalance must never
// go negative after a mutation; SpendableBalance is what new outgoing
// transfers are checked against.
type Account struct {
	Address           Address
	PublicKey         [32]byte
	ActualBalance     int64
	TotalStakedAmount int64
	SecondPublicKey   *[32]byte
	Votes             map[Address]struct{}
	Stakes            []Stake
}

// NewAccount returns a zero-balance account for address, keyed by
// publicKey.
func NewAccount(address Address, publicKey [32]byte) *Account {
	return &Account{
		Address:   address,
		PublicKey: publicKey,
		Votes:     make(map[Address]struct{}),
	}
}

// SpendableBalance is ActualBalance minus TotalStakedAmount (§3).
func (a *Account) SpendableBalance() int64 {
	return a.ActualBalance - a.TotalStakedAmount
}

// clone deep-copies an account for diary snapshotting; Votes and Stakes
// are independently backed slices/maps so mutating the live account never
// aliases into a stored snapshot.
func (a *Account) clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	if a.SecondPublicKey != nil {
		pk := *a.SecondPublicKey
		cp.SecondPublicKey = &pk
	}
	cp.Votes = make(map[Address]struct{}, len(a.Votes))
	for addr := range a.Votes {
		cp.Votes[addr] = struct{}{}
	}
	cp.Stakes = append([]Stake(nil), a.Stakes...)
	return &cp
}

// Equal reports whether two accounts hold byte-identical ledger state —
// used by tests to verify apply/undo restores exact prior state (§8).
func (a *Account) Equal(b *Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Address != b.Address || a.PublicKey != b.PublicKey {
		return false
	}
	if a.ActualBalance != b.ActualBalance || a.TotalStakedAmount != b.TotalStakedAmount {
		return false
	}
	if (a.SecondPublicKey == nil) != (b.SecondPublicKey == nil) {
		return false
	}
	if a.SecondPublicKey != nil && *a.SecondPublicKey != *b.SecondPublicKey {
		return false
	}
	if len(a.Votes) != len(b.Votes) {
		return false
	}
	for addr := range a.Votes {
		if _, ok := b.Votes[addr]; !ok {
			return false
		}
	}
	if len(a.Stakes) != len(b.Stakes) {
		return false
	}
	for i := range a.Stakes {
		if a.Stakes[i] != b.Stakes[i] {
			return false
		}
	}
	return true
}
