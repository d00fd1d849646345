package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// encryptAESGCM encrypts data using AES-256-GCM.
// Returns ciphertext || tag (16 bytes); the nonce is not included.
func encryptAESGCM(key, nonce, aad, plaintext []byte) ([]byte, error) {
	aesGCM, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}
	return aesGCM.Seal(nil, nonce, plaintext, aad), nil
}

// decryptAESGCM decrypts data using AES-256-GCM.
// Nothing of the plaintext is returned when authentication fails.
func decryptAESGCM(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	aesGCM, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < AESTagSize {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

func newGCM(key, nonce []byte) (cipher.AEAD, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}

	if len(nonce) != AESNonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), AESNonceSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aesGCM, nil
}
