package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
)

// Commitment is the SHA-256 digest of a plaintext payload, published next
// to its envelope.
type Commitment [CommitmentSize]byte

// Commit computes the commitment for payload.
func Commit(payload []byte) Commitment {
	return sha256.Sum256(payload)
}

// String returns the commitment as standard base64.
func (c Commitment) String() string {
	return ToBase64(c[:])
}

// Equal compares two commitments in constant time.
func (c Commitment) Equal(other Commitment) bool {
	return subtle.ConstantTimeCompare(c[:], other[:]) == 1
}

// Verify checks that plaintext hashes to c.
func (c Commitment) Verify(plaintext []byte) error {
	if !c.Equal(Commit(plaintext)) {
		return ErrIntegrityMismatch
	}
	return nil
}

// ParseCommitment decodes a base64 commitment.
func ParseCommitment(s string) (Commitment, error) {
	var c Commitment
	raw, err := FromBase64(s)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidCommitment, err)
	}
	if len(raw) != CommitmentSize {
		return c, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidCommitment, len(raw), CommitmentSize)
	}
	copy(c[:], raw)
	return c, nil
}
