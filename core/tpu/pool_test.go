package tpu

import (
	"testing"

	"novachain/core/codec"
	"novachain/core/execution"
)

func txWith(createdAt uint32, amount int64, id byte) *codec.Transaction {
	tx := &codec.Transaction{
		Type:      codec.AssetTransfer,
		CreatedAt: createdAt,
		Fee:       int64(id), // only used to force distinct ids/fees in these index tests
		Asset:     &codec.Transfer{RecipientAddress: 1, Amount: amount},
	}
	tx.SenderPublicKey[0] = id
	return tx
}

func TestPoolAddIndexesBySenderAndRecipient(t *testing.T) {
	p := NewPool(execution.NewState())
	tx := txWith(100, 50, 1)
	p.Add(tx, 42)

	if p.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", p.Len())
	}
	if entry := p.Get(tx.IDHex()); entry == nil {
		t.Fatal("Get(id) returned nil after Add")
	}
	if got := p.GetBySenderAddress(42); len(got) != 1 || got[0].ID != tx.IDHex() {
		t.Errorf("GetBySenderAddress(42) = %+v, want single entry for tx", got)
	}
	recipient, _ := recipientOf(tx)
	if got := p.GetByRecipientAddress(recipient); len(got) != 1 {
		t.Errorf("GetByRecipientAddress = %+v, want single entry", got)
	}
}

func TestPoolAddIsIdempotent(t *testing.T) {
	p := NewPool(execution.NewState())
	tx := txWith(100, 50, 2)
	p.Add(tx, 7)
	p.Add(tx, 7)
	if p.Len() != 1 {
		t.Fatalf("Len() = %d after duplicate Add, want 1", p.Len())
	}
}

func TestPoolPerAddressOrderingByCreatedAtThenID(t *testing.T) {
	p := NewPool(execution.NewState())
	a := txWith(200, 10, 1)
	b := txWith(100, 10, 2)
	c := txWith(100, 10, 3)
	p.Add(a, 9)
	p.Add(b, 9)
	p.Add(c, 9)

	got := p.GetBySenderAddress(9)
	if len(got) != 3 {
		t.Fatalf("GetBySenderAddress returned %d entries, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if prev.Tx.CreatedAt > cur.Tx.CreatedAt {
			t.Fatalf("entries not ordered by createdAt asc: %+v", got)
		}
		if prev.Tx.CreatedAt == cur.Tx.CreatedAt && prev.ID >= cur.ID {
			t.Fatalf("entries with equal createdAt not ordered by id asc: %+v", got)
		}
	}
}

func TestPoolRemoveUndoesSessionAndClearsIndexes(t *testing.T) {
	s := execution.NewState()
	p := NewPool(s)
	tx := txWith(100, 50, 5)
	id := tx.IDHex()

	s.Begin(id)
	var pk [32]byte
	if err := s.Credit(id, 11, pk, 1000); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	p.Add(tx, 11)

	p.Remove(tx)

	if p.Get(id) != nil {
		t.Fatal("Get(id) still returns entry after Remove")
	}
	if got := p.GetBySenderAddress(11); len(got) != 0 {
		t.Errorf("GetBySenderAddress(11) = %+v, want empty after Remove", got)
	}
	if acc := s.Get(11); acc != nil && acc.ActualBalance != 0 {
		t.Errorf("balance = %d after Remove, want 0 (undone)", acc.ActualBalance)
	}
}

func TestPoolConfirmClearsIndexesWithoutUndo(t *testing.T) {
	s := execution.NewState()
	p := NewPool(s)
	tx := txWith(100, 50, 6)
	id := tx.IDHex()

	s.Begin(id)
	var pk [32]byte
	if err := s.Credit(id, 12, pk, 500); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	p.Add(tx, 12)

	p.Confirm(tx)

	if p.Get(id) != nil {
		t.Fatal("Get(id) still returns entry after Confirm")
	}
	if acc := s.Get(12); acc == nil || acc.ActualBalance != 500 {
		t.Errorf("balance after Confirm = %+v, want 500 (session left open, not undone)", acc)
	}
	// the session is still open; undoing it directly must still work.
	s.Undo(id)
	if acc := s.Get(12); acc != nil && acc.ActualBalance != 0 {
		t.Errorf("balance after explicit Undo = %d, want 0", acc.ActualBalance)
	}
}

func TestPopSortedUnconfirmedOrdersByFeeDescThenCreatedAtThenID(t *testing.T) {
	p := NewPool(execution.NewState())
	low := &codec.Transaction{Type: codec.AssetTransfer, CreatedAt: 1, Fee: 10, Asset: &codec.Transfer{RecipientAddress: 1, Amount: 1}}
	low.SenderPublicKey[0] = 1
	high := &codec.Transaction{Type: codec.AssetTransfer, CreatedAt: 2, Fee: 100, Asset: &codec.Transfer{RecipientAddress: 1, Amount: 1}}
	high.SenderPublicKey[0] = 2
	mid := &codec.Transaction{Type: codec.AssetTransfer, CreatedAt: 1, Fee: 50, Asset: &codec.Transfer{RecipientAddress: 1, Amount: 1}}
	mid.SenderPublicKey[0] = 3

	p.Add(low, 1)
	p.Add(high, 2)
	p.Add(mid, 3)

	got := p.PopSortedUnconfirmed(0)
	if len(got) != 3 {
		t.Fatalf("PopSortedUnconfirmed returned %d entries, want 3", len(got))
	}
	if got[0].Tx.Fee != 100 || got[1].Tx.Fee != 50 || got[2].Tx.Fee != 10 {
		t.Fatalf("order = %d,%d,%d, want fee desc 100,50,10", got[0].Tx.Fee, got[1].Tx.Fee, got[2].Tx.Fee)
	}
}

func TestPopSortedUnconfirmedRespectsLimit(t *testing.T) {
	p := NewPool(execution.NewState())
	for i := byte(1); i <= 5; i++ {
		p.Add(txWith(uint32(i), 10, i), uint64(i))
	}
	got := p.PopSortedUnconfirmed(2)
	if len(got) != 2 {
		t.Fatalf("PopSortedUnconfirmed(2) returned %d entries, want 2", len(got))
	}
}
