package aptoosh

import (
	"context"
	"errors"
	"fmt"

	"github.com/landofcash/aptoosh-sub000/internal/api"
	"github.com/landofcash/aptoosh-sub000/internal/crypto"
	"github.com/landofcash/aptoosh-sub000/signer"
	"github.com/landofcash/aptoosh-sub000/store"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrUserCancelled is returned when the signing prompt was rejected,
	// closed, or the context ended while it was pending. Nothing was
	// published or decrypted.
	ErrUserCancelled = errors.New("signing cancelled")

	// ErrInvalidInput is returned for a malformed seed, slot, public key or
	// payload.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidSignature is returned when a signature cannot be turned
	// into a keypair.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrNotFound is returned when the slot has not been published yet.
	// Callers waiting on a counterparty should treat it as "not yet".
	ErrNotFound = errors.New("payload not published")

	// ErrAlreadyPublished is returned when the slot already holds a
	// different record.
	ErrAlreadyPublished = errors.New("payload already published")

	// ErrDecryptionFailed is returned when key unwrapping or AEAD
	// authentication fails.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrNotRecipient is returned when the derived key is not among the
	// record's recipients. It also matches ErrDecryptionFailed.
	ErrNotRecipient = errors.New("not a recipient of this payload")

	// ErrIntegrityMismatch is returned when a decrypted payload does not
	// match its published commitment.
	ErrIntegrityMismatch = errors.New("payload does not match commitment")

	// ErrClientClosed is returned when a watch is started on a closed client.
	ErrClientClosed = errors.New("client has been closed")
)

// AptooshError is implemented by all SDK errors.
type AptooshError interface {
	error
	AptooshError() // marker method
}

// SignError reports a failed signing step.
type SignError struct {
	Identity string
	Err      error
}

func (e *SignError) Error() string {
	return fmt.Sprintf("sign as %s: %v", e.Identity, e.Err)
}

// Unwrap returns the underlying error.
func (e *SignError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *SignError) Is(target error) bool {
	switch target {
	case ErrUserCancelled:
		return errors.Is(e.Err, signer.ErrUserRejected) ||
			errors.Is(e.Err, context.Canceled) ||
			errors.Is(e.Err, context.DeadlineExceeded)
	case ErrInvalidSignature:
		return errors.Is(e.Err, signer.ErrInvalidSignature)
	}
	return false
}

// AptooshError implements the AptooshError interface.
func (e *SignError) AptooshError() {}

// InputError describes a rejected argument.
type InputError struct {
	Field   string
	Message string
	Err     error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *InputError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// AptooshError implements the AptooshError interface.
func (e *InputError) AptooshError() {}

// DecryptionError represents a failure to open a published payload.
type DecryptionError struct {
	Stage string // "unwrap", "aead"
	Err   error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *DecryptionError) Is(target error) bool {
	return target == ErrDecryptionFailed
}

// AptooshError implements the AptooshError interface.
func (e *DecryptionError) AptooshError() {}

// NotRecipientError reports that a record carries no wrapped key for the
// derived public key. With a well-behaved counterparty this means the
// signer produced a different signature than the one the key was wrapped
// for.
type NotRecipientError struct {
	PublicKey  string
	Recipients int
}

func (e *NotRecipientError) Error() string {
	return fmt.Sprintf("public key %s is not among %d recipients", e.PublicKey, e.Recipients)
}

// Is implements errors.Is for sentinel error matching.
func (e *NotRecipientError) Is(target error) bool {
	return target == ErrNotRecipient || target == ErrDecryptionFailed
}

// AptooshError implements the AptooshError interface.
func (e *NotRecipientError) AptooshError() {}

// IntegrityError indicates the plaintext does not hash to the published
// commitment. It is tamper evidence and is never downgraded.
type IntegrityError struct {
	Seed string
	Slot Slot
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("payload %s/%s does not match its commitment", e.Seed, e.Slot)
}

// Is implements errors.Is for sentinel error matching.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityMismatch
}

// AptooshError implements the AptooshError interface.
func (e *IntegrityError) AptooshError() {}

// StoreError wraps a failure of the public store.
type StoreError struct {
	Op   string // "read", "write"
	Seed string
	Slot Slot
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s/%s: %v", e.Op, e.Seed, e.Slot, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return errors.Is(e.Err, store.ErrNotFound)
	case ErrAlreadyPublished:
		return errors.Is(e.Err, store.ErrAlreadyPublished)
	case ErrInvalidInput:
		return errors.Is(e.Err, store.ErrInvalidRecord) ||
			errors.Is(e.Err, store.ErrInvalidSlot) ||
			errors.Is(e.Err, store.ErrInvalidSeed)
	}
	return false
}

// AptooshError implements the AptooshError interface.
func (e *StoreError) AptooshError() {}

// APIError represents an HTTP error from a remote store or signing bridge.
// It is reachable with errors.As through a StoreError or SignError.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string // if returned by server
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("API error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
	}
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// AptooshError implements the AptooshError interface.
func (e *APIError) AptooshError() {}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case 404:
		return target == ErrNotFound
	case 409:
		return target == ErrAlreadyPublished
	case 400:
		return target == ErrInvalidInput
	}
	return false
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AptooshError implements the AptooshError interface.
func (e *NetworkError) AptooshError() {}

// wrapError converts internal errors to public errors so that errors.Is()
// checks work with the public sentinels.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var pub AptooshError
	if errors.As(err, &pub) {
		return err
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			RequestID:  apiErr.RequestID,
		}
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{
			Err:     netErr.Err,
			URL:     netErr.URL,
			Attempt: netErr.Attempt,
		}
	}

	switch {
	case errors.Is(err, crypto.ErrInvalidSignature):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, crypto.ErrInvalidPublicKey),
		errors.Is(err, crypto.ErrInvalidPublicKeySize),
		errors.Is(err, crypto.ErrInvalidEnvelope),
		errors.Is(err, crypto.ErrInvalidCommitment),
		errors.Is(err, crypto.ErrNoRecipients):
		return &InputError{Field: "record", Err: err}
	case errors.Is(err, crypto.ErrUnwrapFailed):
		return &DecryptionError{Stage: "unwrap", Err: err}
	case errors.Is(err, crypto.ErrDecryptionFailed):
		return &DecryptionError{Stage: "aead", Err: err}
	}
	return err
}
