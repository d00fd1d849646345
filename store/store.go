// Package store defines the public, append-only record store the payload
// flows publish to, together with its wire types and an in-memory
// implementation. Persistent and remote backends live in subpackages.
//
// Every (seed, slot) pair is written at most once. Backends reject a second
// write with different content using [ErrAlreadyPublished]; an identical
// rewrite, as produced by a retried request, succeeds without change.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// Store errors.
var (
	// ErrNotFound indicates the slot has not been published yet.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyPublished indicates the slot already holds a different record.
	ErrAlreadyPublished = errors.New("record already published")
	// ErrInvalidRecord indicates a record is structurally incomplete.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrInvalidSlot indicates a slot name outside the allowed alphabet.
	ErrInvalidSlot = errors.New("invalid slot")
	// ErrInvalidSeed indicates an empty order seed.
	ErrInvalidSeed = errors.New("invalid seed")
)

// Slot names a payload position within an order.
type Slot string

// Predefined slots.
const (
	SlotBuyer   Slot = "buyer"
	SlotSeller  Slot = "seller"
	SlotRefusal Slot = "refusal"
)

var slotPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// Validate checks the slot name. Custom slots are lowercase, start with a
// letter and are at most 32 characters long.
func (s Slot) Validate() error {
	if !slotPattern.MatchString(string(s)) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, string(s))
	}
	return nil
}

func (s Slot) String() string {
	return string(s)
}

// WrappedKey is the symmetric key wrapped for one recipient.
type WrappedKey struct {
	// Recipient is the base64 compressed public key the key is wrapped to.
	Recipient string `json:"recipient" cbor:"1,keyasint"`
	// Key is the base64 ECIES blob.
	Key string `json:"key" cbor:"2,keyasint"`
}

// Record is the published form of one payload.
type Record struct {
	// Commitment is the base64 SHA-256 digest of the plaintext.
	Commitment string `json:"commitment" cbor:"1,keyasint"`
	// Envelope is the "nonce:ciphertext" AES-256-GCM envelope.
	Envelope string `json:"envelope" cbor:"2,keyasint"`
	// WrappedKeys holds one entry per recipient.
	WrappedKeys []WrappedKey `json:"wrappedKeys" cbor:"3,keyasint"`
}

// Validate checks that every field is present and that no recipient is
// listed twice. It does not decode the base64 fields.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if r.Commitment == "" {
		return fmt.Errorf("%w: missing commitment", ErrInvalidRecord)
	}
	if r.Envelope == "" {
		return fmt.Errorf("%w: missing envelope", ErrInvalidRecord)
	}
	if len(r.WrappedKeys) == 0 {
		return fmt.Errorf("%w: no wrapped keys", ErrInvalidRecord)
	}
	seen := make(map[string]struct{}, len(r.WrappedKeys))
	for i, wk := range r.WrappedKeys {
		if wk.Recipient == "" || wk.Key == "" {
			return fmt.Errorf("%w: wrapped key %d incomplete", ErrInvalidRecord, i)
		}
		if _, dup := seen[wk.Recipient]; dup {
			return fmt.Errorf("%w: duplicate recipient %s", ErrInvalidRecord, wk.Recipient)
		}
		seen[wk.Recipient] = struct{}{}
	}
	return nil
}

// Recipients returns the recipient public keys in record order.
func (r *Record) Recipients() []string {
	out := make([]string, len(r.WrappedKeys))
	for i, wk := range r.WrappedKeys {
		out[i] = wk.Recipient
	}
	return out
}

// KeyFor returns the wrapped key addressed to recipient.
func (r *Record) KeyFor(recipient string) (WrappedKey, bool) {
	for _, wk := range r.WrappedKeys {
		if wk.Recipient == recipient {
			return wk, true
		}
	}
	return WrappedKey{}, false
}

// Equal reports whether two records carry identical content.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Commitment == other.Commitment &&
		r.Envelope == other.Envelope &&
		slices.Equal(r.WrappedKeys, other.WrappedKeys)
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.WrappedKeys = slices.Clone(r.WrappedKeys)
	return &cp
}

// Store is the public append-only record store.
type Store interface {
	// Write publishes rec under (seed, slot). The record is the atomic unit:
	// either all of it becomes visible or none of it does.
	Write(ctx context.Context, seed string, slot Slot, rec *Record) error
	// Read returns the record under (seed, slot) or ErrNotFound.
	Read(ctx context.Context, seed string, slot Slot) (*Record, error)
}

// CheckWrite validates the arguments of a Write call. Backends call it
// before touching storage.
func CheckWrite(seed string, slot Slot, rec *Record) error {
	if err := CheckKey(seed, slot); err != nil {
		return err
	}
	return rec.Validate()
}

// CheckKey validates a (seed, slot) pair.
func CheckKey(seed string, slot Slot) error {
	if seed == "" {
		return ErrInvalidSeed
	}
	return slot.Validate()
}
