package crypto

import "errors"

var (
	// ErrInvalidSignature is returned when signature bytes are too short or
	// hash to an unusable scalar.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidPublicKey is returned when a public key is not a valid
	// compressed secp256k1 point.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidPublicKeySize is returned when the public key size is invalid.
	ErrInvalidPublicKeySize = errors.New("invalid public key size")

	// ErrKeyWiped is returned when a keypair is used after its private half
	// was wiped.
	ErrKeyWiped = errors.New("private key has been wiped")

	// ErrInvalidKeySize is returned when the AES key size is invalid.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when the nonce size is invalid.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrInvalidEnvelope is returned when the text form of an envelope
	// cannot be parsed.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrInvalidCommitment is returned when a commitment is not a base64
	// encoded 32-byte digest.
	ErrInvalidCommitment = errors.New("invalid commitment")

	// ErrNoRecipients is returned when a payload is encrypted for nobody.
	ErrNoRecipients = errors.New("no recipients")

	// ErrUnwrapFailed is returned when a wrapped key cannot be opened with
	// the given private key.
	ErrUnwrapFailed = errors.New("key unwrap failed")

	// ErrDecryptionFailed is returned when AEAD authentication fails.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrIntegrityMismatch is returned when a decrypted payload does not
	// hash to its published commitment.
	ErrIntegrityMismatch = errors.New("payload does not match commitment")
)
