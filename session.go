package aptoosh

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/landofcash/aptoosh-sub000/internal/crypto"
	"github.com/landofcash/aptoosh-sub000/signer"
)

// Session is one party acting on orders through its signer. Every
// operation derives the order key afresh from a new signature and wipes
// it before returning, so a Session caches nothing between calls.
type Session struct {
	client *Client
	signer signer.Signer
	logger *zap.Logger
}

// Identity returns the signer's identity.
func (s *Session) Identity() string {
	return s.signer.Identity()
}

// KeyPair is a scoped view of the keypair derived for one order. It is
// only valid inside the callback passed to Session.WithKeyPair.
type KeyPair struct {
	kp *crypto.KeyPair
}

// PublicKey returns the base64 compressed public key. This is the value
// handed to the counterparty.
func (k *KeyPair) PublicKey() string {
	return k.kp.PublicKeyB64
}

// PrivateKey returns the base64 private scalar. It must stay in memory
// and fails once the callback has returned.
func (k *KeyPair) PrivateKey() (string, error) {
	return k.kp.PrivateKeyB64()
}

// UnwrapKey opens a base64 wrapped key addressed to this keypair.
func (k *KeyPair) UnwrapKey(wrapped string) ([]byte, error) {
	blob, err := crypto.FromBase64(wrapped)
	if err != nil {
		return nil, &InputError{Field: "wrapped key", Err: err}
	}
	key, err := k.kp.UnwrapKey(blob)
	if err != nil {
		return nil, wrapError(err)
	}
	return key, nil
}

// String never includes the private half.
func (k *KeyPair) String() string {
	return k.kp.String()
}

// MarshalLogObject implements zapcore.ObjectMarshaler with the public key only.
func (k *KeyPair) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	return k.kp.MarshalLogObject(enc)
}

// derive asks the signer for the order signature and turns it into a
// keypair. The caller must Wipe the result.
func (s *Session) derive(ctx context.Context, seed OrderSeed) (*crypto.KeyPair, error) {
	if err := seed.Validate(); err != nil {
		return nil, err
	}

	msg := crypto.SigningMessage(s.client.cfg.domainPrefix, string(seed))
	start := time.Now()
	sig, err := s.signer.Sign(ctx, msg)
	s.client.metrics.observeSign(time.Since(start))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.logger.Debug("signing failed", zap.String("seed", string(seed)), zap.Error(err))
		return nil, &SignError{Identity: s.signer.Identity(), Err: wrapError(err)}
	}

	kp, err := crypto.DeriveKeyPair(sig)
	if err != nil {
		return nil, wrapError(err)
	}
	return kp, nil
}

// PublicKey derives the order keypair for seed and returns only its
// public half. It prompts the signer.
func (s *Session) PublicKey(ctx context.Context, seed OrderSeed) (string, error) {
	kp, err := s.derive(ctx, seed)
	s.client.metrics.observe("public_key", err)
	if err != nil {
		return "", err
	}
	kp.Wipe()
	return kp.PublicKeyB64, nil
}

// WithKeyPair derives the order keypair for seed, calls fn with it and
// wipes the private half when fn returns.
func (s *Session) WithKeyPair(ctx context.Context, seed OrderSeed, fn func(*KeyPair) error) error {
	kp, err := s.derive(ctx, seed)
	if err != nil {
		return err
	}
	defer kp.Wipe()
	return fn(&KeyPair{kp: kp})
}

// CheckDeterministic signs the order message for seed twice and fails if
// the signatures differ. A signer that fails this check cannot decrypt
// what it publishes.
func (s *Session) CheckDeterministic(ctx context.Context, seed OrderSeed) error {
	if err := seed.Validate(); err != nil {
		return err
	}
	msg := crypto.SigningMessage(s.client.cfg.domainPrefix, string(seed))
	err := signer.CheckDeterministic(ctx, s.signer, msg)
	if errors.Is(err, signer.ErrNonDeterministic) {
		s.logger.Warn("signer is not deterministic", zap.String("seed", string(seed)))
	}
	if err != nil {
		return &SignError{Identity: s.signer.Identity(), Err: wrapError(err)}
	}
	return nil
}
