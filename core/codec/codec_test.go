package codec

import (
	"bytes"
	"testing"
)

func samplePubKey(b byte) [32]byte {
	var pk [32]byte
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func TestTransactionRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tx   *Transaction
	}{
		{
			name: "transfer",
			tx: &Transaction{
				Salt:            [16]byte{1, 2, 3},
				Type:            AssetTransfer,
				CreatedAt:       1000,
				SenderPublicKey: samplePubKey(0xAA),
				Asset:           &Transfer{RecipientAddress: 42, Amount: 500},
			},
		},
		{
			name: "vote",
			tx: &Transaction{
				Salt:            [16]byte{9, 9, 9},
				Type:            AssetVote,
				CreatedAt:       2000,
				SenderPublicKey: samplePubKey(0xBB),
				Asset: &Vote{
					Votes: []VoteEntry{
						{Direction: 1, Address: 7},
						{Direction: -1, Address: 9},
					},
					Reward:  true,
					Unstake: false,
					Sponsors: []SponsorEntry{
						{Address: 11, Amount: 3},
						{Address: 12, Amount: 4},
					},
				},
			},
		},
		{
			name: "stake",
			tx: &Transaction{
				Type:            AssetStake,
				SenderPublicKey: samplePubKey(0xCC),
				Asset:           &Stake{Amount: 1000, StartTimestamp: 55555},
			},
		},
		{
			name: "unstake",
			tx: &Transaction{
				Type:            AssetUnstake,
				SenderPublicKey: samplePubKey(0xDD),
				Asset:           &Unstake{Amount: 250},
			},
		},
		{
			name: "delegate",
			tx: &Transaction{
				Type:            AssetDelegate,
				SenderPublicKey: samplePubKey(0xEE),
				Asset:           &Delegate{ValidatorAddress: 99, Amount: 123},
			},
		},
		{
			name: "withdraw",
			tx: &Transaction{
				Type:            AssetWithdraw,
				SenderPublicKey: samplePubKey(0xFF),
				Asset:           &Withdraw{Amount: 77},
			},
		},
		{
			name: "grant",
			tx: &Transaction{
				Type:            AssetGrant,
				SenderPublicKey: samplePubKey(0x11),
				Asset:           &Grant{RecipientAddress: 5, Amount: 6},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.tx.Bytes()
			decoded, err := DecodeTransaction(encoded)
			if err != nil {
				t.Fatalf("DecodeTransaction: %v", err)
			}
			reencoded := decoded.Bytes()
			if !bytes.Equal(encoded, reencoded) {
				t.Fatalf("round trip not byte-identical:\n  got  %x\n  want %x", reencoded, encoded)
			}
			if decoded.Type != tt.tx.Type {
				t.Errorf("Type = %v, want %v", decoded.Type, tt.tx.Type)
			}
		})
	}
}

func TestTransactionHashStable(t *testing.T) {
	tx := &Transaction{
		Salt:            [16]byte{1, 2, 3, 4},
		Type:            AssetTransfer,
		CreatedAt:       12345,
		SenderPublicKey: samplePubKey(0x42),
		Asset:           &Transfer{RecipientAddress: 7, Amount: 100},
	}
	h1 := tx.Hash()
	h2 := tx.Hash()
	if h1 != h2 {
		t.Fatalf("Hash() not stable across calls")
	}

	// Signing must not change the id: SignBytes zeroes the signature
	// slots so encode-then-sign-then-encode stays byte-identical.
	tx.Signature = [64]byte{1, 1, 1}
	h3 := tx.Hash()
	if h1 != h3 {
		t.Fatalf("Hash() changed after populating Signature, want signature-independent id")
	}
}

func TestTransactionHashChangesWithFee(t *testing.T) {
	base := &Transaction{
		Type:            AssetTransfer,
		SenderPublicKey: samplePubKey(0x02),
		Fee:             100,
		Asset:           &Transfer{RecipientAddress: 1, Amount: 100},
	}
	changed := &Transaction{
		Type:            AssetTransfer,
		SenderPublicKey: samplePubKey(0x02),
		Fee:             200,
		Asset:           &Transfer{RecipientAddress: 1, Amount: 100},
	}
	if base.Hash() == changed.Hash() {
		t.Fatalf("Hash() did not change when Fee changed")
	}
}

func TestTransactionHashChangesWithField(t *testing.T) {
	base := &Transaction{
		Type:            AssetTransfer,
		SenderPublicKey: samplePubKey(0x01),
		Asset:           &Transfer{RecipientAddress: 1, Amount: 100},
	}
	changed := &Transaction{
		Type:            AssetTransfer,
		SenderPublicKey: samplePubKey(0x01),
		Asset:           &Transfer{RecipientAddress: 1, Amount: 101},
	}
	if base.Hash() == changed.Hash() {
		t.Fatalf("Hash() did not change when Amount changed")
	}
}

func TestDecodeTransactionTooShort(t *testing.T) {
	_, err := DecodeTransaction(make([]byte, 10))
	if err == nil {
		t.Fatal("expected error for too-short buffer")
	}
}

func TestHeaderLengthMatchesOffsetTable(t *testing.T) {
	// salt(16) + type(1) + createdAt(4) + senderPublicKey(32) +
	// recipientAddress(8) + amount(8) + signature(64) + secondSignature(64)
	const want = 16 + 1 + 4 + 32 + 8 + 8 + 64 + 64
	if HeaderLength != want {
		t.Fatalf("HeaderLength = %d, want %d", HeaderLength, want)
	}
}

func TestBlockRoundTrip(t *testing.T) {
	tx := &Transaction{
		Type:            AssetTransfer,
		SenderPublicKey: samplePubKey(0x01),
		Asset:           &Transfer{RecipientAddress: 2, Amount: 100},
	}
	b := &Block{
		Version:            1,
		Height:             2,
		PreviousBlockID:    samplePubKey(0x99),
		CreatedAt:          555,
		GeneratorPublicKey: samplePubKey(0x77),
		Transactions:       []*Transaction{tx},
		Amount:             100,
		Fee:                1,
	}
	encoded := b.Bytes()
	decoded, err := DecodeBlock(encoded, b.Transactions)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if decoded.CreatedAt != b.CreatedAt {
		t.Errorf("CreatedAt = %d, want %d", decoded.CreatedAt, b.CreatedAt)
	}
	if decoded.Amount != b.Amount || decoded.Fee != b.Fee {
		t.Errorf("Amount/Fee = %d/%d, want %d/%d", decoded.Amount, decoded.Fee, b.Amount, b.Fee)
	}
	if !bytes.Equal(decoded.Bytes(), encoded) {
		t.Fatalf("re-encoded block bytes differ from original")
	}
}

func TestBlockPayloadHashCoversAllTransactions(t *testing.T) {
	tx1 := &Transaction{Type: AssetTransfer, Asset: &Transfer{RecipientAddress: 1, Amount: 1}}
	tx2 := &Transaction{Type: AssetTransfer, Asset: &Transfer{RecipientAddress: 2, Amount: 2}}

	b1 := &Block{Transactions: []*Transaction{tx1}}
	b2 := &Block{Transactions: []*Transaction{tx1, tx2}}

	if b1.PayloadHash() == b2.PayloadHash() {
		t.Fatalf("PayloadHash did not change when a transaction was added")
	}
}

func TestBlockHashChangesWithPreviousBlockID(t *testing.T) {
	b1 := &Block{PreviousBlockID: samplePubKey(0x01)}
	b2 := &Block{PreviousBlockID: samplePubKey(0x02)}
	if b1.Hash() == b2.Hash() {
		t.Fatalf("Hash() did not change when PreviousBlockID changed")
	}
}

func TestDecodeBlockIDRoundTrip(t *testing.T) {
	want := samplePubKey(0x5A)
	got, err := DecodeBlockID(bytesToHex(want[:]))
	if err != nil {
		t.Fatalf("DecodeBlockID: %v", err)
	}
	if got != want {
		t.Fatalf("DecodeBlockID round trip mismatch")
	}
}

func bytesToHex(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0F]
	}
	return string(out)
}
