// Package codec implements the deterministic, byte-exact binary encoding
// that underlies every hash and signature in the chain. It generalizes the
// teacher's core/types.SerializeForSigning (a single fixed 97-byte
// transfer-shaped header) into the full variant-tagged layout of §4.1: a
// fixed-width header shared by every transaction type, followed by a
// per-type tail produced by the Asset implementation carried in the
// transaction.
package codec

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"novachain/core/errs"
)

// SaltLength is the width of the anti-replay salt prefixed to every
// transaction (§4.1).
const SaltLength = 16

// header field offsets, per §4.1.
const (
	offSalt      = 0
	offType      = offSalt + SaltLength // 16
	offCreatedAt = offType + 1          // 17
	offSenderPub = offCreatedAt + 4     // 21
	offRecipient = offSenderPub + 32    // 53
	offAmount    = offRecipient + 8     // 61
	offSignature = offAmount + 8        // 69
	offSecondSig = offSignature + 64    // 133
	// HeaderLength is the fixed prefix every transaction serializes to
	// before its type-specific tail. The table above sums to 197 bytes
	// (salt 16 + type 1 + createdAt 4 + senderPublicKey 32 +
	// recipientAddress 8 + amount 8 + signature 64 + secondSignature 64);
	// that sum, not the "117" figure quoted loosely elsewhere, is what the
	// decoder enforces — see DESIGN.md for the reconciliation.
	HeaderLength = offSecondSig + 64 // 197
)

// Transaction is the decoded, in-memory form of a signed transaction.
type Transaction struct {
	Salt            [SaltLength]byte
	Type            AssetType
	CreatedAt       uint32
	SenderPublicKey [32]byte
	Signature       [64]byte
	HasSecondSig    bool
	SecondSignature [64]byte
	Fee             int64
	Asset           Asset
}

// HeaderBytes encodes the fixed 197-byte header: salt, type, createdAt,
// senderPublicKey, recipientAddress/amount (from the asset, zero unless
// Transfer), signature, secondSignature.
func (tx *Transaction) HeaderBytes() []byte {
	buf := make([]byte, HeaderLength)
	copy(buf[offSalt:offType], tx.Salt[:])
	buf[offType] = byte(tx.Type)
	binary.LittleEndian.PutUint32(buf[offCreatedAt:offSenderPub], tx.CreatedAt)
	copy(buf[offSenderPub:offRecipient], tx.SenderPublicKey[:])
	recipient, amount := uint64(0), uint64(0)
	if tx.Asset != nil {
		recipient, amount = tx.Asset.HeaderFields()
	}
	binary.LittleEndian.PutUint64(buf[offRecipient:offAmount], recipient)
	binary.LittleEndian.PutUint64(buf[offAmount:offSignature], amount)
	copy(buf[offSignature:offSecondSig], tx.Signature[:])
	if tx.HasSecondSig {
		copy(buf[offSecondSig:HeaderLength], tx.SecondSignature[:])
	}
	return buf
}

// Bytes encodes the full transaction: header, the asset's type-specific
// tail, then an 8-byte little-endian Fee trailer. Fee is not listed in
// §4.1's header offset table but §3/§4.5 both require it to participate
// in the id ("fee is recomputed during verification and the id
// recomputed if it changed") — appending it after the tail is the
// reconciliation; see DESIGN.md.
func (tx *Transaction) Bytes() []byte {
	buf := tx.HeaderBytes()
	if tx.Asset != nil {
		buf = append(buf, tx.Asset.Tail()...)
	}
	var feeBytes [8]byte
	binary.LittleEndian.PutUint64(feeBytes[:], uint64(tx.Fee))
	return append(buf, feeBytes[:]...)
}

// SignBytes returns the bytes that get hashed and signed: the header with
// both signature slots zeroed, plus the asset tail and the fee trailer. Re-encoding after
// signing must reproduce byte-identical output, so the signature fields
// cannot be part of what is signed over.
func (tx *Transaction) SignBytes() []byte {
	clone := *tx
	clone.Signature = [64]byte{}
	clone.SecondSignature = [64]byte{}
	clone.HasSecondSig = false
	return clone.Bytes()
}

// Hash returns sha256(SignBytes()), the transaction id (§4.1: id is the
// hash of the signed payload, independent of which signature slots are
// populated).
func (tx *Transaction) Hash() [32]byte {
	return sha256.Sum256(tx.SignBytes())
}

// DecodeTransaction parses buf into a Transaction. It returns a Malformed
// failure, never a panic, on any length or field mismatch.
func DecodeTransaction(buf []byte) (*Transaction, error) {
	if len(buf) < HeaderLength {
		return nil, errs.Newf(errs.Malformed, "transaction header too short: %d bytes", len(buf))
	}
	tx := &Transaction{}
	copy(tx.Salt[:], buf[offSalt:offType])
	tx.Type = AssetType(buf[offType])
	tx.CreatedAt = binary.LittleEndian.Uint32(buf[offCreatedAt:offSenderPub])
	copy(tx.SenderPublicKey[:], buf[offSenderPub:offRecipient])
	recipient := binary.LittleEndian.Uint64(buf[offRecipient:offAmount])
	amount := binary.LittleEndian.Uint64(buf[offAmount:offSignature])
	copy(tx.Signature[:], buf[offSignature:offSecondSig])
	copy(tx.SecondSignature[:], buf[offSecondSig:HeaderLength])
	for _, b := range tx.SecondSignature {
		if b != 0 {
			tx.HasSecondSig = true
			break
		}
	}
	tail := buf[HeaderLength:]
	asset, consumed, err := decodeAsset(tx.Type, recipient, amount, tail)
	if err != nil {
		return nil, err
	}
	if len(tail) < consumed+8 {
		return nil, errs.New(errs.Malformed, "transaction missing fee trailer")
	}
	tx.Fee = int64(binary.LittleEndian.Uint64(tail[consumed : consumed+8]))
	tx.Asset = asset
	return tx, nil
}

// decodeAsset returns the decoded asset and the number of tail bytes it
// consumed, so the caller can find the fee trailer that follows.
func decodeAsset(t AssetType, recipient, amount uint64, tail []byte) (Asset, int, error) {
	switch t {
	case AssetTransfer:
		return &Transfer{RecipientAddress: recipient, Amount: int64(amount)}, 0, nil
	case AssetVote:
		return decodeVote(tail)
	case AssetStake:
		if len(tail) < 12 {
			return nil, 0, errs.New(errs.Malformed, "stake tail too short")
		}
		return &Stake{
			Amount:         int64(binary.LittleEndian.Uint64(tail[0:8])),
			StartTimestamp: binary.LittleEndian.Uint32(tail[8:12]),
		}, 12, nil
	case AssetUnstake:
		if len(tail) < 8 {
			return nil, 0, errs.New(errs.Malformed, "unstake tail too short")
		}
		return &Unstake{Amount: int64(binary.LittleEndian.Uint64(tail[0:8]))}, 8, nil
	case AssetDelegate:
		if len(tail) < 16 {
			return nil, 0, errs.New(errs.Malformed, "delegate tail too short")
		}
		return &Delegate{
			ValidatorAddress: binary.LittleEndian.Uint64(tail[0:8]),
			Amount:           int64(binary.LittleEndian.Uint64(tail[8:16])),
		}, 16, nil
	case AssetWithdraw:
		if len(tail) < 8 {
			return nil, 0, errs.New(errs.Malformed, "withdraw tail too short")
		}
		return &Withdraw{Amount: int64(binary.LittleEndian.Uint64(tail[0:8]))}, 8, nil
	case AssetGrant:
		if len(tail) < 16 {
			return nil, 0, errs.New(errs.Malformed, "grant tail too short")
		}
		return &Grant{
			RecipientAddress: binary.LittleEndian.Uint64(tail[0:8]),
			Amount:           int64(binary.LittleEndian.Uint64(tail[8:16])),
		}, 16, nil
	default:
		return nil, 0, errs.Newf(errs.Malformed, "unknown asset type %d", t)
	}
}

func decodeVote(tail []byte) (*Vote, int, error) {
	if len(tail) < 2 {
		return nil, 0, errs.New(errs.Malformed, "vote tail too short")
	}
	voteCount := int(binary.LittleEndian.Uint16(tail[0:2]))
	off := 2
	votes := make([]VoteEntry, 0, voteCount)
	for i := 0; i < voteCount; i++ {
		if off+9 > len(tail) {
			return nil, 0, errs.New(errs.Malformed, "vote entry truncated")
		}
		votes = append(votes, VoteEntry{
			Direction: int8(tail[off]),
			Address:   binary.LittleEndian.Uint64(tail[off+1 : off+9]),
		})
		off += 9
	}
	if off+3 > len(tail) {
		return nil, 0, errs.New(errs.Malformed, "vote flags truncated")
	}
	flags := tail[off]
	off++
	sponsorCount := int(binary.LittleEndian.Uint16(tail[off : off+2]))
	off += 2
	sponsors := make([]SponsorEntry, 0, sponsorCount)
	for i := 0; i < sponsorCount; i++ {
		if off+16 > len(tail) {
			return nil, 0, errs.New(errs.Malformed, "sponsor entry truncated")
		}
		sponsors = append(sponsors, SponsorEntry{
			Address: binary.LittleEndian.Uint64(tail[off : off+8]),
			Amount:  int64(binary.LittleEndian.Uint64(tail[off+8 : off+16])),
		})
		off += 16
	}
	return &Vote{
		Votes:    votes,
		Reward:   flags&1 != 0,
		Unstake:  flags&2 != 0,
		Sponsors: sponsors,
	}, off, nil
}

// IDHex returns the lowercase hex transaction id.
func (tx *Transaction) IDHex() string {
	h := tx.Hash()
	return fmt.Sprintf("%x", h[:])
}
