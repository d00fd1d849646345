package crypto

import (
	"fmt"
	"strings"
)

// Envelope is the AES-256-GCM output for one payload under one symmetric key.
type Envelope struct {
	// Nonce is the 12-byte GCM nonce.
	Nonce []byte
	// Ciphertext is the encrypted payload followed by the 16-byte tag.
	Ciphertext []byte
}

// SealEnvelope encrypts plaintext under key with a fresh random nonce.
func SealEnvelope(key, plaintext, aad []byte) (*Envelope, error) {
	nonce, err := RandomBytes(AESNonceSize)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext, err := encryptAESGCM(key, nonce, aad, plaintext)
	if err != nil {
		return nil, err
	}

	return &Envelope{Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Open authenticates and decrypts the envelope.
func (e *Envelope) Open(key, aad []byte) ([]byte, error) {
	return decryptAESGCM(key, e.Nonce, aad, e.Ciphertext)
}

// String returns the wire form: base64(nonce) ":" base64(ciphertext).
func (e *Envelope) String() string {
	return ToBase64(e.Nonce) + envelopeSeparator + ToBase64(e.Ciphertext)
}

// MarshalText implements encoding.TextMarshaler.
func (e *Envelope) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Envelope) UnmarshalText(text []byte) error {
	parsed, err := ParseEnvelope(string(text))
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}

// ParseEnvelope parses the wire form of an envelope. Exactly one colon
// separates the two base64 fields.
func ParseEnvelope(s string) (*Envelope, error) {
	parts := strings.Split(s, envelopeSeparator)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: want exactly one %q separator, got %d parts", ErrInvalidEnvelope, envelopeSeparator, len(parts))
	}

	nonce, err := FromBase64(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: decode nonce: %v", ErrInvalidEnvelope, err)
	}
	if len(nonce) != AESNonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes, want %d", ErrInvalidEnvelope, len(nonce), AESNonceSize)
	}

	ciphertext, err := FromBase64(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: decode ciphertext: %v", ErrInvalidEnvelope, err)
	}
	if len(ciphertext) < AESTagSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than tag", ErrInvalidEnvelope)
	}

	return &Envelope{Nonce: nonce, Ciphertext: ciphertext}, nil
}
