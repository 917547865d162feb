package codec

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"novachain/core/errs"
)

// block canonical bytes layout (§6): version || createdAt || previousBlockId
// || transactionCount || amount || fee || payloadHash || generatorPublicKey
// || signature. Height is deliberately absent from the hash preimage — it
// is a derived invariant checked against the chain, not part of identity.
const (
	blkOffVersion     = 0
	blkOffCreatedAt   = blkOffVersion + 4   // 4
	blkOffPrevBlockID = blkOffCreatedAt + 4 // 8
	blkOffTxCount     = blkOffPrevBlockID + 32
	blkOffAmount      = blkOffTxCount + 4
	blkOffFee         = blkOffAmount + 8
	blkOffPayloadHash = blkOffFee + 8
	blkOffGeneratorPK = blkOffPayloadHash + 32
	blkOffSignature   = blkOffGeneratorPK + 32
	BlockHeaderLength = blkOffSignature + 64 // 188
)

// Block is the decoded, in-memory form of a block.
type Block struct {
	Version            uint32
	Height             uint64
	PreviousBlockID    [32]byte
	CreatedAt          uint32
	GeneratorPublicKey [32]byte
	Signature          [64]byte
	Transactions       []*Transaction
	Amount             int64
	Fee                int64
}

// PayloadHash is SHA-256 over the concatenation of each transaction's full
// encoded bytes, in block order.
func (b *Block) PayloadHash() [32]byte {
	h := sha256.New()
	for _, tx := range b.Transactions {
		h.Write(tx.Bytes())
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Bytes encodes the block's canonical bytes per §6. signed controls
// whether the signature slot is populated (false zeroes it, matching the
// pre-signing payload that GenerateBlock signs over).
func (b *Block) bytes(signed bool) []byte {
	buf := make([]byte, BlockHeaderLength)
	binary.LittleEndian.PutUint32(buf[blkOffVersion:blkOffCreatedAt], b.Version)
	binary.LittleEndian.PutUint32(buf[blkOffCreatedAt:blkOffPrevBlockID], b.CreatedAt)
	copy(buf[blkOffPrevBlockID:blkOffTxCount], b.PreviousBlockID[:])
	binary.LittleEndian.PutUint32(buf[blkOffTxCount:blkOffAmount], uint32(len(b.Transactions)))
	binary.LittleEndian.PutUint64(buf[blkOffAmount:blkOffFee], uint64(b.Amount))
	binary.LittleEndian.PutUint64(buf[blkOffFee:blkOffPayloadHash], uint64(b.Fee))
	payloadHash := b.PayloadHash()
	copy(buf[blkOffPayloadHash:blkOffGeneratorPK], payloadHash[:])
	copy(buf[blkOffGeneratorPK:blkOffSignature], b.GeneratorPublicKey[:])
	if signed {
		copy(buf[blkOffSignature:BlockHeaderLength], b.Signature[:])
	}
	return buf
}

// Bytes encodes the full canonical block, including signature.
func (b *Block) Bytes() []byte { return b.bytes(true) }

// SignBytes returns the canonical bytes with the signature slot zeroed,
// the payload that GenerateBlock signs and VerifyReceipt re-derives.
func (b *Block) SignBytes() []byte { return b.bytes(false) }

// Hash returns SHA-256(Bytes()) — the block id.
func (b *Block) Hash() [32]byte {
	return sha256.Sum256(b.Bytes())
}

// IDHex returns the lowercase hex block id.
func (b *Block) IDHex() string {
	h := b.Hash()
	return hex.EncodeToString(h[:])
}

// PreviousBlockIDHex returns the lowercase hex previous block id.
func (b *Block) PreviousBlockIDHex() string {
	return hex.EncodeToString(b.PreviousBlockID[:])
}

// DecodeBlockID parses a hex block id string into its 32-byte form.
func DecodeBlockID(idHex string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(idHex)
	if err != nil {
		return out, errs.Newf(errs.Malformed, "invalid block id hex: %v", err)
	}
	if len(raw) != 32 {
		return out, errs.Newf(errs.Malformed, "block id must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// DecodeBlock parses buf (BlockHeaderLength bytes, signature included) and
// attaches the already-decoded transactions in order. The caller supplies
// txs separately because block wire framing carries transactions as a
// distinct list rather than inline in the fixed header.
func DecodeBlock(buf []byte, txs []*Transaction) (*Block, error) {
	if len(buf) < BlockHeaderLength {
		return nil, errs.Newf(errs.Malformed, "block header too short: %d bytes", len(buf))
	}
	b := &Block{Transactions: txs}
	b.Version = binary.LittleEndian.Uint32(buf[blkOffVersion:blkOffCreatedAt])
	b.CreatedAt = binary.LittleEndian.Uint32(buf[blkOffCreatedAt:blkOffPrevBlockID])
	copy(b.PreviousBlockID[:], buf[blkOffPrevBlockID:blkOffTxCount])
	txCount := binary.LittleEndian.Uint32(buf[blkOffTxCount:blkOffAmount])
	if int(txCount) != len(txs) {
		return nil, errs.Newf(errs.Malformed, "transactionCount %d does not match supplied %d transactions", txCount, len(txs))
	}
	b.Amount = int64(binary.LittleEndian.Uint64(buf[blkOffAmount:blkOffFee]))
	b.Fee = int64(binary.LittleEndian.Uint64(buf[blkOffFee:blkOffPayloadHash]))
	// payloadHash at buf[blkOffPayloadHash:blkOffGeneratorPK] is recomputed
	// from txs rather than trusted from the wire; callers that need the
	// as-received value for comparison should read it directly.
	copy(b.GeneratorPublicKey[:], buf[blkOffGeneratorPK:blkOffSignature])
	copy(b.Signature[:], buf[blkOffSignature:BlockHeaderLength])
	return b, nil
}

// WireEncodedPayloadHash extracts the payloadHash field as received on the
// wire, for comparison against the recomputed PayloadHash().
func WireEncodedPayloadHash(buf []byte) ([32]byte, error) {
	var out [32]byte
	if len(buf) < BlockHeaderLength {
		return out, fmt.Errorf("block header too short: %d bytes", len(buf))
	}
	copy(out[:], buf[blkOffPayloadHash:blkOffGeneratorPK])
	return out, nil
}
