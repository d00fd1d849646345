package aptoosh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/landofcash/aptoosh-sub000/internal/crypto"
	"github.com/landofcash/aptoosh-sub000/store"
)

// Published describes a record written by CreatePayload.
type Published struct {
	Seed   OrderSeed
	Slot   Slot
	Record *store.Record
}

// Commitment returns the base64 commitment of the published payload.
func (p *Published) Commitment() string {
	return p.Record.Commitment
}

// Recipients returns the base64 public keys the payload is readable by,
// the publisher's own key first.
func (p *Published) Recipients() []string {
	return p.Record.Recipients()
}

// CreatePayload encrypts payload for this session's own order key and the
// given counterparty public keys, then publishes it under (seed, slot).
//
// The signer is asked first. If signing is cancelled nothing is written,
// and the record is written in a single store call, so the store never
// holds a partial payload. A slot can be published once; a second call
// with a different payload fails with ErrAlreadyPublished.
func (s *Session) CreatePayload(ctx context.Context, seed OrderSeed, slot Slot, payload []byte, counterparties ...string) (*Published, error) {
	pub, err := s.createPayload(ctx, seed, slot, payload, counterparties)
	s.client.metrics.observe("create", err)
	return pub, err
}

func (s *Session) createPayload(ctx context.Context, seed OrderSeed, slot Slot, payload []byte, counterparties []string) (*Published, error) {
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, &InputError{Field: "payload", Message: "must not be empty"}
	}
	if limit := s.client.cfg.maxPayloadSize; len(payload) > limit {
		return nil, &InputError{Field: "payload", Message: fmt.Sprintf("%d bytes exceeds limit of %d", len(payload), limit)}
	}
	others := make([][]byte, len(counterparties))
	for i, cp := range counterparties {
		pub, err := crypto.ParsePublicKey(cp)
		if err != nil {
			return nil, &InputError{Field: fmt.Sprintf("recipient %d", i), Err: err}
		}
		others[i] = pub
	}

	kp, err := s.derive(ctx, seed)
	if err != nil {
		return nil, err
	}
	kp.Wipe()

	recipients, recipientKeys := dedupeRecipients(append([][]byte{kp.PublicKey}, others...))
	aad := crypto.BuildAAD(string(seed), string(slot), recipients)

	sealed, err := crypto.Encrypt(payload, recipientKeys, aad)
	if err != nil {
		return nil, wrapError(err)
	}

	rec := &store.Record{
		Commitment:  sealed.Commitment.String(),
		Envelope:    sealed.Envelope.String(),
		WrappedKeys: make([]store.WrappedKey, len(recipients)),
	}
	for i, r := range recipients {
		rec.WrappedKeys[i] = store.WrappedKey{Recipient: r, Key: crypto.ToBase64(sealed.WrappedKeys[i])}
	}

	if err := s.client.store.Write(ctx, string(seed), slot, rec); err != nil {
		return nil, storeError("write", seed, slot, err)
	}

	s.logger.Info("payload published",
		zap.String("seed", string(seed)),
		zap.Stringer("slot", slot),
		zap.Int("recipients", len(recipients)))

	return &Published{Seed: seed, Slot: slot, Record: rec}, nil
}

// dedupeRecipients drops repeated keys, keeping the first occurrence, and
// returns the base64 and raw forms in the same order.
func dedupeRecipients(keys [][]byte) ([]string, [][]byte) {
	seen := make(map[string]struct{}, len(keys))
	encoded := make([]string, 0, len(keys))
	raw := make([][]byte, 0, len(keys))
	for _, k := range keys {
		b64 := crypto.ToBase64(k)
		if _, dup := seen[b64]; dup {
			continue
		}
		seen[b64] = struct{}{}
		encoded = append(encoded, b64)
		raw = append(raw, k)
	}
	return encoded, raw
}

// DecryptPayload reads (seed, slot) from the store and decrypts it with
// this session's order key.
//
// A slot that has not been written yet returns ErrNotFound. Decryption
// failures return ErrDecryptionFailed (ErrNotRecipient when the derived
// key is not among the recipients) and a payload that does not match its
// commitment returns ErrIntegrityMismatch. No plaintext is returned on any
// failure.
func (s *Session) DecryptPayload(ctx context.Context, seed OrderSeed, slot Slot) ([]byte, error) {
	plaintext, err := s.decryptPayload(ctx, seed, slot)
	s.client.metrics.observe("decrypt", err)
	return plaintext, err
}

func (s *Session) decryptPayload(ctx context.Context, seed OrderSeed, slot Slot) ([]byte, error) {
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	rec, err := s.client.store.Read(ctx, string(seed), slot)
	if err != nil {
		return nil, storeError("read", seed, slot, err)
	}
	return s.openRecord(ctx, seed, slot, rec)
}

// OpenRecord decrypts a record obtained elsewhere, for example from Watch,
// as if it had been read from (seed, slot).
func (s *Session) OpenRecord(ctx context.Context, seed OrderSeed, slot Slot, rec *store.Record) ([]byte, error) {
	plaintext, err := s.openRecord(ctx, seed, slot, rec)
	s.client.metrics.observe("decrypt", err)
	return plaintext, err
}

func (s *Session) openRecord(ctx context.Context, seed OrderSeed, slot Slot, rec *store.Record) ([]byte, error) {
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, &InputError{Field: "record", Err: err}
	}
	envelope, err := crypto.ParseEnvelope(rec.Envelope)
	if err != nil {
		return nil, wrapError(err)
	}
	commitment, err := crypto.ParseCommitment(rec.Commitment)
	if err != nil {
		return nil, wrapError(err)
	}

	kp, err := s.derive(ctx, seed)
	if err != nil {
		return nil, err
	}
	defer kp.Wipe()

	wk, ok := rec.KeyFor(kp.PublicKeyB64)
	if !ok {
		s.logger.Warn("derived key is not a recipient",
			zap.String("seed", string(seed)),
			zap.Stringer("slot", slot),
			zap.Object("keypair", kp))
		return nil, &NotRecipientError{PublicKey: kp.PublicKeyB64, Recipients: len(rec.WrappedKeys)}
	}
	wrapped, err := crypto.FromBase64(wk.Key)
	if err != nil {
		return nil, &InputError{Field: "wrapped key", Err: err}
	}

	aad := crypto.BuildAAD(string(seed), string(slot), rec.Recipients())
	plaintext, err := crypto.DecryptAndVerify(envelope, wrapped, kp, aad, commitment)
	if errors.Is(err, crypto.ErrIntegrityMismatch) {
		s.logger.Error("payload does not match its commitment",
			zap.String("seed", string(seed)), zap.Stringer("slot", slot))
		return nil, &IntegrityError{Seed: string(seed), Slot: slot}
	}
	if err != nil {
		return nil, wrapError(err)
	}

	s.logger.Debug("payload decrypted", zap.String("seed", string(seed)), zap.Stringer("slot", slot))
	return plaintext, nil
}

// CreateJSONPayload marshals v as JSON and publishes it like CreatePayload.
func (s *Session) CreateJSONPayload(ctx context.Context, seed OrderSeed, slot Slot, v any, counterparties ...string) (*Published, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &InputError{Field: "payload", Err: err}
	}
	return s.CreatePayload(ctx, seed, slot, data, counterparties...)
}

// DecryptJSONPayload decrypts (seed, slot) and unmarshals the plaintext
// into v.
func (s *Session) DecryptJSONPayload(ctx context.Context, seed OrderSeed, slot Slot, v any) error {
	data, err := s.DecryptPayload(ctx, seed, slot)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload %s/%s: %w", seed, slot, err)
	}
	return nil
}

// VerifyReveal checks a plaintext revealed by either party against the
// commitment of a published record. It needs no keys, so any observer
// can run it.
func VerifyReveal(rec *store.Record, plaintext []byte) error {
	if rec == nil {
		return &InputError{Field: "record", Message: "nil record"}
	}
	commitment, err := crypto.ParseCommitment(rec.Commitment)
	if err != nil {
		return wrapError(err)
	}
	if err := commitment.Verify(plaintext); err != nil {
		return fmt.Errorf("%w: revealed plaintext", ErrIntegrityMismatch)
	}
	return nil
}
