package signer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcec_ecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Secp256k1 is a software ECDSA signer over secp256k1. Messages are hashed
// with SHA-256 and signed with an RFC 6979 nonce, so signatures are
// deterministic. Signatures are DER encoded.
type Secp256k1 struct {
	priv *btcec.PrivateKey
}

var _ Signer = (*Secp256k1)(nil)

// GenerateSecp256k1 creates a signer with a fresh random key.
func GenerateSecp256k1() (*Secp256k1, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	return &Secp256k1{priv: priv}, nil
}

// NewSecp256k1 creates a signer from a 32-byte private scalar.
func NewSecp256k1(key []byte) (*Secp256k1, error) {
	if len(key) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: secp256k1 key must be %d bytes, got %d", ErrInvalidKey, btcec.PrivKeyBytesLen, len(key))
	}
	priv, _ := btcec.PrivKeyFromBytes(key)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}
	return &Secp256k1{priv: priv}, nil
}

// Sign returns the DER signature over SHA-256(message).
func (s *Secp256k1) Sign(ctx context.Context, message string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256([]byte(message))
	return btcec_ecdsa.Sign(s.priv, digest[:]).Serialize(), nil
}

// Identity returns the hex compressed public key.
func (s *Secp256k1) Identity() string {
	return hex.EncodeToString(s.priv.PubKey().SerializeCompressed())
}

// VerifySecp256k1 checks a DER signature over SHA-256(message) against a
// hex compressed public key.
func VerifySecp256k1(identity, message string, sig []byte) bool {
	raw, err := hex.DecodeString(identity)
	if err != nil {
		return false
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return false
	}
	parsed, err := btcec_ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(message))
	return parsed.Verify(digest[:], pub)
}
