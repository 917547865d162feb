package txservice

import (
	"testing"

	"novachain/core/codec"
	"novachain/core/execution"
)

func pubKey(b byte) [32]byte {
	var pk [32]byte
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func TestDispatcherResolvesAllAssetTypes(t *testing.T) {
	d := NewDispatcher()
	types := []codec.AssetType{
		codec.AssetTransfer, codec.AssetVote, codec.AssetStake,
		codec.AssetUnstake, codec.AssetDelegate, codec.AssetWithdraw, codec.AssetGrant,
	}
	for _, typ := range types {
		svc, err := d.Resolve(typ)
		if err != nil {
			t.Errorf("Resolve(%v): %v", typ, err)
			continue
		}
		if svc.Type() != typ {
			t.Errorf("service for %v reports Type() = %v", typ, svc.Type())
		}
	}
}

func TestDispatcherRejectsUnknownType(t *testing.T) {
	d := NewDispatcher()
	if _, err := d.Resolve(codec.AssetType(250)); err == nil {
		t.Fatal("expected error for unregistered asset type")
	}
}

func TestTransferRejectsZeroAmount(t *testing.T) {
	svc := &TransferService{}
	tx := &codec.Transaction{Type: codec.AssetTransfer, Asset: &codec.Transfer{RecipientAddress: 1, Amount: 0}}
	res := svc.Validate(tx)
	if res.OK {
		t.Fatal("expected rejection of zero-amount transfer")
	}
}

func TestTransferAcceptsExactBalance(t *testing.T) {
	s := execution.NewState()
	sender := uint64(1)
	pk := pubKey(0x01)
	s.GetOrCreate(sender, pk)
	s.Begin("setup")
	if err := s.Credit("setup", sender, pk, 110); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	s.Commit("setup")

	svc := &TransferService{}
	tx := &codec.Transaction{
		Type:  codec.AssetTransfer,
		Fee:   10,
		Asset: &codec.Transfer{RecipientAddress: 2, Amount: 100},
	}
	res := svc.VerifyUnconfirmed(tx, s.Get(sender))
	if !res.OK {
		t.Fatalf("expected fee+amount == spendable balance to be accepted, got %+v", res)
	}
}

func TestTransferRejectsInsufficientBalance(t *testing.T) {
	s := execution.NewState()
	sender := uint64(3)
	pk := pubKey(0x03)
	s.GetOrCreate(sender, pk)
	s.Begin("setup2")
	if err := s.Credit("setup2", sender, pk, 100); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	s.Commit("setup2")

	svc := &TransferService{}
	tx := &codec.Transaction{
		Type:  codec.AssetTransfer,
		Fee:   20,
		Asset: &codec.Transfer{RecipientAddress: 4, Amount: 90},
	}
	res := svc.VerifyUnconfirmed(tx, s.Get(sender))
	if res.OK {
		t.Fatal("expected InsufficientBalance for amount+fee exceeding balance")
	}
	if res.Kind.String() != "InsufficientBalance" {
		t.Errorf("Kind = %v, want InsufficientBalance", res.Kind)
	}
}

func TestTransferApplyMovesFunds(t *testing.T) {
	s := execution.NewState()
	sender, recipient := uint64(5), uint64(6)
	pk := pubKey(0x05)
	s.GetOrCreate(sender, pk)
	s.Begin("setup3")
	if err := s.Credit("setup3", sender, pk, 1000); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	s.Commit("setup3")

	svc := &TransferService{}
	tx := &codec.Transaction{
		Type:  codec.AssetTransfer,
		Fee:   10,
		Asset: &codec.Transfer{RecipientAddress: recipient, Amount: 200},
	}
	s.Begin("tx-apply")
	if err := svc.ApplyUnconfirmed("tx-apply", tx, sender, s); err != nil {
		t.Fatalf("ApplyUnconfirmed: %v", err)
	}
	s.Commit("tx-apply")

	if got := s.Get(sender).ActualBalance; got != 790 {
		t.Errorf("sender balance = %d, want 790", got)
	}
	if got := s.Get(recipient).ActualBalance; got != 200 {
		t.Errorf("recipient balance = %d, want 200", got)
	}
}

func TestVoteRejectsDuplicateVote(t *testing.T) {
	s := execution.NewState()
	sender := uint64(7)
	pk := pubKey(0x07)
	s.GetOrCreate(sender, pk)
	s.Begin("setup4")
	s.AddVote("setup4", sender, 99, pk)
	s.Commit("setup4")

	svc := &VoteService{}
	tx := &codec.Transaction{
		Type: codec.AssetVote,
		Asset: &codec.Vote{
			Votes: []codec.VoteEntry{{Direction: 1, Address: 99}},
		},
	}
	res := svc.VerifyUnconfirmed(tx, s.Get(sender))
	if res.OK {
		t.Fatal("expected rejection of duplicate vote for an already-voted delegate")
	}
}

func TestStakeRejectsExceedingSpendableBalance(t *testing.T) {
	s := execution.NewState()
	addr := uint64(8)
	pk := pubKey(0x08)
	s.GetOrCreate(addr, pk)
	s.Begin("setup5")
	if err := s.Credit("setup5", addr, pk, 50); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	s.Commit("setup5")

	svc := &StakeService{}
	tx := &codec.Transaction{Type: codec.AssetStake, Fee: 0, Asset: &codec.Stake{Amount: 100}}
	res := svc.VerifyUnconfirmed(tx, s.Get(addr))
	if res.OK {
		t.Fatal("expected InsufficientBalance for staking beyond spendable balance")
	}
}

func TestDelegateApplyLocksValidatorStake(t *testing.T) {
	s := execution.NewState()
	sender, validator := uint64(9), uint64(10)
	pk := pubKey(0x09)
	s.GetOrCreate(sender, pk)
	s.Begin("setup6")
	if err := s.Credit("setup6", sender, pk, 1000); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	s.Commit("setup6")

	svc := &DelegateService{}
	tx := &codec.Transaction{
		Type:  codec.AssetDelegate,
		Fee:   0,
		Asset: &codec.Delegate{ValidatorAddress: validator, Amount: 300},
	}
	s.Begin("tx-delegate")
	if err := svc.ApplyUnconfirmed("tx-delegate", tx, sender, s); err != nil {
		t.Fatalf("ApplyUnconfirmed: %v", err)
	}
	s.Commit("tx-delegate")

	if got := s.Get(sender).ActualBalance; got != 700 {
		t.Errorf("sender balance = %d, want 700", got)
	}
	vacc := s.Get(validator)
	if vacc.TotalStakedAmount != 300 {
		t.Errorf("validator staked = %d, want 300", vacc.TotalStakedAmount)
	}
	if vacc.SpendableBalance() != 0 {
		t.Errorf("validator spendable = %d, want 0 (fully locked)", vacc.SpendableBalance())
	}
}

func TestGrantMintsAndLocksFunds(t *testing.T) {
	s := execution.NewState()
	recipient := uint64(11)

	svc := &GrantService{}
	tx := &codec.Transaction{
		Type:  codec.AssetGrant,
		Asset: &codec.Grant{RecipientAddress: recipient, Amount: 5000},
	}
	s.Begin("tx-grant")
	if err := svc.ApplyUnconfirmed("tx-grant", tx, 0, s); err != nil {
		t.Fatalf("ApplyUnconfirmed: %v", err)
	}
	s.Commit("tx-grant")

	acc := s.Get(recipient)
	if acc.ActualBalance != 5000 || acc.TotalStakedAmount != 5000 {
		t.Errorf("recipient = %+v, want balance and stake both 5000", acc)
	}
}
