// Package signer provides message signers that stand in for a wallet's
// signMessage capability.
//
// Payload keys are derived from the signature over a per-order message, so
// a signer must be deterministic: signing the same message twice has to
// return identical bytes. Every backend in this package is. Wallet bridges
// that randomize signatures will produce a different key each time and the
// owner will be unable to decrypt their own payloads; [CheckDeterministic]
// detects this before anything is published.
package signer

import (
	"bytes"
	"context"
	"errors"
)

// Signer signs UTF-8 messages on behalf of one identity.
type Signer interface {
	// Sign returns the signature over message. It blocks while a user
	// prompt is pending and returns ErrUserRejected if the user declines or
	// the context error if ctx ends first.
	Sign(ctx context.Context, message string) ([]byte, error)
	// Identity returns a printable account identifier, for logging.
	Identity() string
}

var (
	// ErrUserRejected indicates the key holder declined to sign.
	ErrUserRejected = errors.New("signing request rejected by user")
	// ErrNonDeterministic indicates two signatures over one message differ.
	ErrNonDeterministic = errors.New("signer is not deterministic")
	// ErrInvalidKey indicates malformed private key material.
	ErrInvalidKey = errors.New("invalid private key")
	// ErrInvalidMnemonic indicates a BIP-39 phrase failed validation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	// ErrInvalidSignature indicates a backend returned signature bytes that
	// could not be decoded.
	ErrInvalidSignature = errors.New("malformed signature")
)

// CheckDeterministic signs message twice and compares the results.
func CheckDeterministic(ctx context.Context, s Signer, message string) error {
	first, err := s.Sign(ctx, message)
	if err != nil {
		return err
	}
	second, err := s.Sign(ctx, message)
	if err != nil {
		return err
	}
	if !bytes.Equal(first, second) {
		return ErrNonDeterministic
	}
	return nil
}

// Func adapts a plain function to Signer.
type Func struct {
	ID     string
	SignFn func(ctx context.Context, message string) ([]byte, error)
}

// Sign calls SignFn.
func (f Func) Sign(ctx context.Context, message string) ([]byte, error) {
	return f.SignFn(ctx, message)
}

// Identity returns ID.
func (f Func) Identity() string {
	return f.ID
}
