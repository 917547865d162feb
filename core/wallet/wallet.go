// Package wallet implements an encrypted keystore and transaction builder
// for holders, grounded on the teacher's wallet.go (PBKDF2-derived
// AES-256-GCM encryption, word-list mnemonic, on-disk JSON keystore) with
// its transaction construction rebuilt around codec.Transaction and
// crypto.KeyPair in place of the teacher's types.Transaction/raw ed25519.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"novachain/core/codec"
	"novachain/core/crypto"
)

// Common errors
var (
	ErrWalletLocked    = errors.New("wallet is locked")
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")
)

// Wallet is an encrypted Ed25519 keystore entry: the seed is stored
// AES-256-GCM-encrypted under a PBKDF2 key derived from the holder's
// password, never the private key itself in plaintext on disk.
type Wallet struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	EncSeed   []byte `json:"encryptedSeed"`
	Salt      []byte `json:"salt"`
	CreatedAt int64  `json:"createdAt"`
	Label     string `json:"label,omitempty"`

	keyPair  *crypto.KeyPair
	unlocked bool
	mu       sync.RWMutex
}

// WalletInfo is a safe representation for API responses (no private data)
type WalletInfo struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Label     string `json:"label,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	Unlocked  bool   `json:"unlocked"`
}

// CreateResponse is the response after creating a wallet
type CreateResponse struct {
	Address   string   `json:"address"`
	PublicKey string   `json:"publicKey"`
	Mnemonic  []string `json:"mnemonic"`
	CreatedAt int64    `json:"createdAt"`
}

// SignResponse is the response after signing
type SignResponse struct {
	TxID      string `json:"txId"`
	Signature string `json:"signature"`
	RawTx     string `json:"rawTx"`
}

var wordList = []string{
	"abandon", "ability", "able", "about", "above", "absent", "absorb", "abstract",
	"absurd", "abuse", "access", "accident", "account", "accuse", "achieve", "acid",
	"acoustic", "acquire", "across", "act", "action", "actor", "actress", "actual",
	"adapt", "add", "addict", "address", "adjust", "admit", "adult", "advance",
	"advice", "aerobic", "affair", "afford", "afraid", "again", "age", "agent",
	"agree", "ahead", "aim", "air", "airport", "aisle", "alarm", "album",
	"alert", "alien", "all", "alley", "allow", "almost", "alone", "alpha",
	"already", "also", "alter", "always", "amateur", "amazing", "among", "amount",
	"anchor", "ancient", "anger", "angle", "angry", "animal", "ankle", "announce",
	"annual", "another", "answer", "antenna", "antique", "anxiety", "any", "apart",
	"apology", "appear", "apple", "approve", "april", "arch", "arctic", "area",
	"arena", "argue", "arm", "armed", "armor", "army", "around", "arrange",
	"arrest", "arrive", "arrow", "art", "artefact", "artist", "artwork", "ask",
	"aspect", "assault", "asset", "assist", "assume", "asthma", "athlete", "atom",
	"attack", "attend", "attitude", "attract", "auction", "audit", "august", "aunt",
	"author", "auto", "autumn", "average", "avocado", "avoid", "awake", "aware",
	"away", "awesome", "awful", "awkward", "axis", "baby", "bachelor", "bacon",
	"badge", "bag", "balance", "balcony", "ball", "bamboo", "banana", "banner",
	"bar", "barely", "bargain", "barrel", "base", "basic", "basket", "battle",
	"beach", "bean", "beauty", "because", "become", "beef", "before", "begin",
	"behave", "behind", "believe", "below", "belt", "bench", "benefit", "best",
	"betray", "better", "between", "beyond", "bicycle", "bid", "bike", "bind",
	"biology", "bird", "birth", "bitter", "black", "blade", "blame", "blanket",
	"blast", "bleak", "bless", "blind", "blood", "blossom", "blouse", "blue",
	"blur", "blush", "board", "boat", "body", "boil", "bomb", "bone",
	"bonus", "book", "boost", "border", "boring", "borrow", "boss", "bottom",
	"bounce", "box", "boy", "bracket", "brain", "brand", "brass", "brave",
	"bread", "breeze", "brick", "bridge", "brief", "bright", "bring", "brisk",
	"broccoli", "broken", "bronze", "broom", "brother", "brown", "brush", "bubble",
	"buddy", "budget", "buffalo", "build", "bulb", "bulk", "bullet", "bundle",
	"bunker", "burden", "burger", "burst", "bus", "business", "busy", "butter",
	"buyer", "buzz", "cabbage", "cabin", "cable", "cactus", "cage", "cake",
}

// Manager handles multiple wallets
type Manager struct {
	wallets map[string]*Wallet // address -> wallet
	dataDir string
	mu      sync.RWMutex
}

// NewManager creates a new wallet manager, loading any keystore files
// already present in dataDir.
func NewManager(dataDir string) *Manager {
	m := &Manager{
		wallets: make(map[string]*Wallet),
		dataDir: dataDir,
	}
	m.loadWallets()
	return m
}

func (m *Manager) loadWallets() {
	if m.dataDir == "" {
		return
	}
	files, err := filepath.Glob(filepath.Join(m.dataDir, "wallet_*.json"))
	if err != nil {
		return
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var w Wallet
		if err := json.Unmarshal(data, &w); err != nil {
			continue
		}
		m.wallets[w.Address] = &w
	}
}

// Create generates a fresh mnemonic-backed keypair, encrypts it under
// password, and persists the keystore entry.
func (m *Manager) Create(password, label string) (*CreateResponse, error) {
	mnemonic := generateMnemonic(12)
	seed := mnemonicToSeed(mnemonic)

	kp, err := crypto.KeyPairFromSeed(seed[:32])
	if err != nil {
		return nil, fmt.Errorf("derive keypair: %w", err)
	}

	wallet, err := m.buildAndStore(kp, seed[:32], password, label)
	if err != nil {
		return nil, err
	}

	return &CreateResponse{
		Address:   wallet.Address,
		PublicKey: wallet.PublicKey,
		Mnemonic:  mnemonic,
		CreatedAt: wallet.CreatedAt,
	}, nil
}

// Import restores a keypair from a 12-word mnemonic.
func (m *Manager) Import(mnemonic []string, password, label string) (*WalletInfo, error) {
	if len(mnemonic) != 12 {
		return nil, ErrInvalidMnemonic
	}
	for _, word := range mnemonic {
		found := false
		for _, w := range wordList {
			if strings.EqualFold(word, w) {
				found = true
				break
			}
		}
		if !found {
			return nil, ErrInvalidMnemonic
		}
	}

	seed := mnemonicToSeed(mnemonic)
	kp, err := crypto.KeyPairFromSeed(seed[:32])
	if err != nil {
		return nil, fmt.Errorf("derive keypair: %w", err)
	}

	wallet, err := m.buildAndStore(kp, seed[:32], password, label)
	if err != nil {
		return nil, err
	}
	return wallet.Info(), nil
}

func (m *Manager) buildAndStore(kp *crypto.KeyPair, seed []byte, password, label string) (*Wallet, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	encKey := deriveKey(password, salt)
	encSeed, err := encryptAESGCM(encKey, seed)
	if err != nil {
		return nil, fmt.Errorf("encrypt seed: %w", err)
	}

	address := kp.PublicKeyHex()
	wallet := &Wallet{
		Address:   address,
		PublicKey: address,
		EncSeed:   encSeed,
		Salt:      salt,
		CreatedAt: time.Now().Unix(),
		Label:     label,
		keyPair:   kp,
		unlocked:  true,
	}

	m.mu.Lock()
	m.wallets[address] = wallet
	m.mu.Unlock()

	if err := m.saveWallet(wallet); err != nil {
		return nil, fmt.Errorf("save wallet: %w", err)
	}
	return wallet, nil
}

// Unlock decrypts and loads a wallet's keypair into memory.
func (m *Manager) Unlock(address, password string) error {
	m.mu.RLock()
	wallet, ok := m.wallets[address]
	m.mu.RUnlock()
	if !ok {
		return ErrWalletNotFound
	}

	wallet.mu.Lock()
	defer wallet.mu.Unlock()

	encKey := deriveKey(password, wallet.Salt)
	seed, err := decryptAESGCM(encKey, wallet.EncSeed)
	if err != nil {
		return ErrInvalidPassword
	}
	kp, err := crypto.KeyPairFromSeed(seed)
	if err != nil {
		return err
	}
	wallet.keyPair = kp
	wallet.unlocked = true
	return nil
}

// Lock clears the keypair from memory.
func (m *Manager) Lock(address string) error {
	m.mu.RLock()
	wallet, ok := m.wallets[address]
	m.mu.RUnlock()
	if !ok {
		return ErrWalletNotFound
	}

	wallet.mu.Lock()
	defer wallet.mu.Unlock()
	wallet.keyPair = nil
	wallet.unlocked = false
	return nil
}

// Get returns wallet info (safe for API)
func (m *Manager) Get(address string) (*WalletInfo, error) {
	m.mu.RLock()
	wallet, ok := m.wallets[address]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrWalletNotFound
	}
	return wallet.Info(), nil
}

// List returns all wallets (safe info only)
func (m *Manager) List() []*WalletInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var list []*WalletInfo
	for _, w := range m.wallets {
		list = append(list, w.Info())
	}
	return list
}

// SignTransfer builds and signs an AssetTransfer transaction from the
// unlocked wallet at address, stamped with createdAt (epoch seconds).
func (m *Manager) SignTransfer(address string, recipient uint64, amount int64, fee int64, createdAt uint32) (*codec.Transaction, *SignResponse, error) {
	m.mu.RLock()
	wallet, ok := m.wallets[address]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, ErrWalletNotFound
	}

	wallet.mu.RLock()
	defer wallet.mu.RUnlock()
	if !wallet.unlocked {
		return nil, nil, ErrWalletLocked
	}

	tx := &codec.Transaction{
		Type:      codec.AssetTransfer,
		CreatedAt: createdAt,
		Fee:       fee,
		Asset:     &codec.Transfer{RecipientAddress: recipient, Amount: amount},
	}
	if _, err := io.ReadFull(rand.Reader, tx.Salt[:]); err != nil {
		return nil, nil, fmt.Errorf("generate salt: %w", err)
	}
	copy(tx.SenderPublicKey[:], wallet.keyPair.PublicKey)

	digest := tx.Hash()
	tx.Signature = wallet.keyPair.Sign(digest[:])

	return tx, &SignResponse{
		TxID:      tx.IDHex(),
		Signature: hex.EncodeToString(tx.Signature[:]),
		RawTx:     hex.EncodeToString(tx.Bytes()),
	}, nil
}

// Delete removes a wallet after verifying its password.
func (m *Manager) Delete(address, password string) error {
	if err := m.Unlock(address, password); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.wallets, address)
	m.mu.Unlock()
	if m.dataDir != "" {
		os.Remove(filepath.Join(m.dataDir, fmt.Sprintf("wallet_%s.json", address[:16])))
	}
	return nil
}

// ExportSeed exports the 32-byte seed hex-encoded (requires unlock).
func (m *Manager) ExportSeed(address string) (string, error) {
	m.mu.RLock()
	wallet, ok := m.wallets[address]
	m.mu.RUnlock()
	if !ok {
		return "", ErrWalletNotFound
	}

	wallet.mu.RLock()
	defer wallet.mu.RUnlock()
	if !wallet.unlocked {
		return "", ErrWalletLocked
	}
	return hex.EncodeToString(wallet.keyPair.PrivateKey.Seed()), nil
}

// Info returns safe wallet info
func (w *Wallet) Info() *WalletInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return &WalletInfo{
		Address:   w.Address,
		PublicKey: w.PublicKey,
		Label:     w.Label,
		CreatedAt: w.CreatedAt,
		Unlocked:  w.unlocked,
	}
}

// saveWallet persists wallet to disk
func (m *Manager) saveWallet(w *Wallet) error {
	if m.dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.dataDir, 0700); err != nil {
		return err
	}
	filename := filepath.Join(m.dataDir, fmt.Sprintf("wallet_%s.json", w.Address[:16]))
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0600)
}

func generateMnemonic(wordCount int) []string {
	words := make([]string, wordCount)
	idx := make([]byte, wordCount)
	rand.Read(idx)
	for i := 0; i < wordCount; i++ {
		words[i] = wordList[int(idx[i])%len(wordList)]
	}
	return words
}

func mnemonicToSeed(mnemonic []string) [64]byte {
	phrase := strings.Join(mnemonic, " ")
	hash := sha256.Sum256([]byte(phrase))
	var seed [64]byte
	copy(seed[:32], hash[:])
	hash2 := sha256.Sum256(hash[:])
	copy(seed[32:], hash2[:])
	return seed
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, 100000, 32, sha256.New)
}

func encryptAESGCM(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptAESGCM(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// QuickCreate creates an unencrypted, in-memory-only keypair for
// testing/demo flows that don't need a persisted keystore.
func QuickCreate() (*crypto.KeyPair, string, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, "", err
	}
	return kp, kp.PublicKeyHex(), nil
}
