// Package crypto wraps Ed25519 keypair generation and detached sign/verify
// over pre-hashed digests, plus address derivation from a public key.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"novachain/core/errs"
)

// KeyPair is a single Ed25519 keypair; it carries no second keypair for
// the account's secondSignature slot.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateKeyPair produces a fresh Ed25519 keypair from crypto/rand.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// KeyPairFromSeed rebuilds a keypair from a 32-byte seed, the form stored
// in an encrypted keystore.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errs.Newf(errs.Malformed, "seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{PublicKey: priv.Public().(ed25519.PublicKey), PrivateKey: priv}, nil
}

// Sign signs a pre-hashed digest and returns the 64-byte detached
// signature (§4.2).
func (kp *KeyPair) Sign(hash []byte) [64]byte {
	sig := ed25519.Sign(kp.PrivateKey, hash)
	var out [64]byte
	copy(out[:], sig)
	return out
}

// Verify checks a detached signature over a pre-hashed digest against a
// raw 32-byte public key.
func Verify(pubKey []byte, hash []byte, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), hash, sig)
}

// DeriveAddress computes the Address (§3): the first 8 bytes of
// SHA-256(publicKey), interpreted little-endian.
func DeriveAddress(pubKey []byte) uint64 {
	h := sha256.Sum256(pubKey)
	return binary.LittleEndian.Uint64(h[:8])
}

// PublicKeyHex returns the keypair's public key as lowercase hex, used for
// display and wallet export.
func (kp *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.PublicKey)
}

// Address returns the keypair's derived Address.
func (kp *KeyPair) Address() uint64 {
	return DeriveAddress(kp.PublicKey)
}
