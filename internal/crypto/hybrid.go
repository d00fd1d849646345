package crypto

import (
	"fmt"
)

// Sealed holds everything produced by one Encrypt call. All of it is meant
// to be published together.
type Sealed struct {
	// Commitment is the SHA-256 digest of the plaintext.
	Commitment Commitment
	// Envelope is the AES-256-GCM encryption of the plaintext.
	Envelope *Envelope
	// WrappedKeys holds one ECIES blob per recipient, in recipient order.
	WrappedKeys [][]byte
}

// Encrypt seals payload for every recipient public key.
//
// The process:
//  1. Commitment = SHA-256(payload)
//  2. A fresh 32-byte symmetric key and 12-byte nonce
//  3. AES-256-GCM encryption of the payload with the given associated data
//  4. ECIES wrapping of the symmetric key once per recipient
//
// The symmetric key is wiped before Encrypt returns.
func Encrypt(payload []byte, recipients [][]byte, aad []byte) (*Sealed, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	for i, r := range recipients {
		if err := ValidatePublicKey(r); err != nil {
			return nil, fmt.Errorf("recipient %d: %w", i, err)
		}
	}

	commitment := Commit(payload)

	symKey, err := RandomBytes(AESKeySize)
	if err != nil {
		return nil, fmt.Errorf("generate symmetric key: %w", err)
	}
	defer zeroBytes(symKey)

	envelope, err := SealEnvelope(symKey, payload, aad)
	if err != nil {
		return nil, fmt.Errorf("seal envelope: %w", err)
	}

	wrapped := make([][]byte, len(recipients))
	for i, r := range recipients {
		wrapped[i], err = WrapKey(r, symKey)
		if err != nil {
			return nil, fmt.Errorf("recipient %d: %w", i, err)
		}
	}

	return &Sealed{
		Commitment:  commitment,
		Envelope:    envelope,
		WrappedKeys: wrapped,
	}, nil
}

// Decrypt unwraps the symmetric key with keypair and opens the envelope.
// Callers that hold the published commitment should use DecryptAndVerify.
func Decrypt(envelope *Envelope, wrappedKey []byte, keypair *KeyPair, aad []byte) ([]byte, error) {
	// 1. Key unwrap
	symKey, err := keypair.UnwrapKey(wrappedKey)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(symKey)

	// 2. AES-256-GCM decryption
	plaintext, err := envelope.Open(symKey, aad)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// DecryptAndVerify decrypts and then checks the plaintext against commitment.
// On mismatch no plaintext is returned.
func DecryptAndVerify(envelope *Envelope, wrappedKey []byte, keypair *KeyPair, aad []byte, commitment Commitment) ([]byte, error) {
	plaintext, err := Decrypt(envelope, wrappedKey, keypair, aad)
	if err != nil {
		return nil, err
	}

	// 3. Commitment check
	if err := commitment.Verify(plaintext); err != nil {
		zeroBytes(plaintext)
		return nil, err
	}
	return plaintext, nil
}
