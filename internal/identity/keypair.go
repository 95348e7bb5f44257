// Package identity loads and generates the ed25519 keypairs whose public keys
// act as ledger addresses.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"solana-token-ledger/internal/domain"
)

// ErrInvalidKey is returned for malformed secret keys.
var ErrInvalidKey = errors.New("invalid secret key")

// Keypair is an ed25519 secret key and its derived address.
type Keypair struct {
	secret solana.PrivateKey
}

// NewKeypair generates a fresh random keypair.
func NewKeypair() (*Keypair, error) {
	secret, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{secret: secret}, nil
}

// MustNewKeypair is NewKeypair for tests and demos.
func MustNewKeypair() *Keypair {
	kp, err := NewKeypair()
	if err != nil {
		panic(err)
	}
	return kp
}

// NewAddress returns the address of a fresh keypair whose secret is discarded.
// Used for mint and explicit account addresses that nobody needs to sign for.
func NewAddress() (domain.Address, error) {
	kp, err := NewKeypair()
	if err != nil {
		return domain.Address{}, err
	}
	return kp.Address(), nil
}

// FromSecretBytes builds a keypair from a 64-byte secret key (seed || public key).
// The public half must match the key derived from the seed.
func FromSecretBytes(b []byte) (*Keypair, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(b))
	}
	derived := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKey)
	}
	secret := make(solana.PrivateKey, len(b))
	copy(secret, b)
	return &Keypair{secret: secret}, nil
}

// FromJSONArray parses the "[12,34,...]" form written by solana-keygen and used
// in the PRIVATE_KEY environment variable.
func FromJSONArray(s string) (*Keypair, error) {
	var raw []int
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	b := make([]byte, len(raw))
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range: %d", ErrInvalidKey, i, v)
		}
		b[i] = byte(v)
	}
	return FromSecretBytes(b)
}

// FromBase58 parses a base58-encoded secret key (wallet export format).
func FromBase58(s string) (*Keypair, error) {
	secret, err := solana.PrivateKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return FromSecretBytes(secret)
}

// LoadFile reads a solana-keygen JSON keypair file.
func LoadFile(path string) (*Keypair, error) {
	secret, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return FromSecretBytes(secret)
}

// Parse accepts either a JSON byte array or a base58 secret.
func Parse(s string) (*Keypair, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(s, "[") {
		return FromJSONArray(s)
	}
	return FromBase58(s)
}

// Address returns the public key as a ledger address.
func (k *Keypair) Address() domain.Address {
	return domain.Address(k.secret.PublicKey())
}

// Secret returns a copy of the 64-byte secret key.
func (k *Keypair) Secret() []byte {
	b := make([]byte, len(k.secret))
	copy(b, k.secret)
	return b
}

// String returns the address, never the secret.
func (k *Keypair) String() string {
	return k.Address().String()
}
