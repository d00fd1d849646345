package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"go.uber.org/zap/zapcore"
)

// KeyPair is a secp256k1 keypair derived from a wallet signature.
//
// The private half lives only inside the KeyPair and is never exported as a
// field. Call Wipe once the wrap or unwrap it was derived for is done.
type KeyPair struct {
	// PublicKey is the 33-byte compressed public key.
	PublicKey []byte
	// PublicKeyB64 is the public key encoded as standard base64.
	PublicKeyB64 string

	privateKey []byte
}

// SigningMessage builds the canonical message a signer is asked to sign
// for the given seed.
func SigningMessage(prefix, seed string) string {
	return prefix + seed
}

// DeriveKeyPair turns a signature into a deterministic keypair.
//
// The private scalar is SHA-256(signature) reduced modulo the curve order.
// The same signature always yields the same keypair.
func DeriveKeyPair(signature []byte) (*KeyPair, error) {
	if len(signature) < MinSignatureSize {
		return nil, fmt.Errorf("%w: got %d bytes, want at least %d", ErrInvalidSignature, len(signature), MinSignatureSize)
	}

	digest := sha256.Sum256(signature)
	defer zeroBytes(digest[:])

	priv := secp256k1.PrivKeyFromBytes(digest[:])
	defer priv.Zero()
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: signature hashes to a zero scalar", ErrInvalidSignature)
	}

	pub := priv.PubKey().SerializeCompressed()
	return &KeyPair{
		PublicKey:    pub,
		PublicKeyB64: ToBase64(pub),
		privateKey:   priv.Serialize(),
	}, nil
}

// PrivateKeyB64 returns the private scalar as standard base64.
// The result must stay in memory; it exists for wallets that want to hand
// the key to another local component for the rest of the current operation.
func (k *KeyPair) PrivateKeyB64() (string, error) {
	if k.privateKey == nil {
		return "", ErrKeyWiped
	}
	return ToBase64(k.privateKey), nil
}

// Wipe zeroes the private scalar. The public half stays usable.
func (k *KeyPair) Wipe() {
	if k.privateKey == nil {
		return
	}
	zeroBytes(k.privateKey)
	k.privateKey = nil
}

// Wiped reports whether the private half has been wiped.
func (k *KeyPair) Wiped() bool {
	return k.privateKey == nil
}

// String never includes the private half.
func (k *KeyPair) String() string {
	return fmt.Sprintf("KeyPair{public: %s}", k.PublicKeyB64)
}

// MarshalLogObject implements zapcore.ObjectMarshaler with the public key only.
func (k *KeyPair) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("publicKey", k.PublicKeyB64)
	enc.AddBool("wiped", k.Wiped())
	return nil
}

// ValidatePublicKey checks that pub is a 33-byte compressed point on secp256k1.
func ValidatePublicKey(pub []byte) error {
	if len(pub) != PublicKeySize {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidPublicKeySize, len(pub), PublicKeySize)
	}
	if pub[0] != 0x02 && pub[0] != 0x03 {
		return fmt.Errorf("%w: not a compressed point", ErrInvalidPublicKey)
	}
	if _, err := secp256k1.ParsePubKey(pub); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return nil
}

// ParsePublicKey decodes a base64 public key and validates it.
func ParsePublicKey(s string) ([]byte, error) {
	pub, err := FromBase64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if err := ValidatePublicKey(pub); err != nil {
		return nil, err
	}
	return pub, nil
}
