package signer

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/mr-tron/base58/base58"
	"github.com/tyler-smith/go-bip39"
)

// Ed25519 is a software Ed25519 signer. Ed25519 signatures are
// deterministic, which makes it a safe default for local use.
type Ed25519 struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

var _ Signer = (*Ed25519)(nil)

// GenerateEd25519 creates a signer with a fresh random key.
func GenerateEd25519() (*Ed25519, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Ed25519{priv: priv, pub: pub}, nil
}

// NewEd25519 creates a signer from a 32-byte seed.
func NewEd25519(seed []byte) (*Ed25519, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes, got %d", ErrInvalidKey, ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected public key type", ErrInvalidKey)
	}
	return &Ed25519{priv: priv, pub: pub}, nil
}

// NewMnemonic returns a fresh 24-word BIP-39 phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// Ed25519FromMnemonic derives a signer from a BIP-39 phrase. The first 32
// bytes of the BIP-39 seed become the Ed25519 seed.
func Ed25519FromMnemonic(mnemonic, passphrase string) (*Ed25519, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	defer clear(seed)
	return NewEd25519(seed[:ed25519.SeedSize])
}

// Sign signs message. It never prompts, so ctx is only checked up front.
func (s *Ed25519) Sign(ctx context.Context, message string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ed25519.Sign(s.priv, []byte(message)), nil
}

// Identity returns the base58 public key.
func (s *Ed25519) Identity() string {
	return base58.Encode(s.pub)
}

// PublicKey returns a copy of the raw public key.
func (s *Ed25519) PublicKey() []byte {
	return append([]byte(nil), s.pub...)
}

// VerifyEd25519 checks sig over message against a base58 identity.
func VerifyEd25519(identity, message string, sig []byte) bool {
	pub, err := base58.Decode(identity)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig)
}
