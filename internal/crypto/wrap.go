package crypto

import (
	"fmt"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// WrapKey encrypts a symmetric key for one recipient with ECIES over
// secp256k1. The blob carries the ephemeral public key, the ciphertext and
// the MAC, so it can be opened with nothing but the recipient's private key.
func WrapKey(recipient, symKey []byte) ([]byte, error) {
	if len(symKey) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(symKey), AESKeySize)
	}
	if err := ValidatePublicKey(recipient); err != nil {
		return nil, err
	}

	// ecies needs geth's own curve instance; keys parsed elsewhere are rejected
	// with "unsupported ECIES parameters".
	pub, err := gethcrypto.DecompressPubkey(recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	wrapped, err := ecies.Encrypt(random(), ecies.ImportECDSAPublic(pub), symKey, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}
	return wrapped, nil
}

// UnwrapKey opens a blob produced by WrapKey for this keypair's public key.
func (k *KeyPair) UnwrapKey(wrapped []byte) ([]byte, error) {
	if k.privateKey == nil {
		return nil, ErrKeyWiped
	}

	priv, err := gethcrypto.ToECDSA(k.privateKey)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	defer priv.D.SetInt64(0)

	symKey, err := ecies.ImportECDSA(priv).Decrypt(wrapped, nil, nil)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	if len(symKey) != AESKeySize {
		zeroBytes(symKey)
		return nil, ErrUnwrapFailed
	}
	return symKey, nil
}
