package aptoosh

import (
	"fmt"

	"github.com/landofcash/aptoosh-sub000/internal/crypto"
	"github.com/landofcash/aptoosh-sub000/store"
)

// OrderSeed is the random per-order identifier. It is the lookup key in
// the public store and the suffix of the message each party signs.
type OrderSeed string

// NewOrderSeed draws 16 random bytes and encodes them as unpadded
// URL-safe base64 (22 characters).
func NewOrderSeed() (OrderSeed, error) {
	raw, err := crypto.RandomBytes(crypto.SeedSize)
	if err != nil {
		return "", fmt.Errorf("generate order seed: %w", err)
	}
	return OrderSeed(crypto.ToBase64URL(raw)), nil
}

// ParseOrderSeed accepts only the canonical encoding produced by
// NewOrderSeed.
func ParseOrderSeed(s string) (OrderSeed, error) {
	if len(s) != crypto.EncodedSeedSize {
		return "", &InputError{Field: "seed", Message: fmt.Sprintf("got %d characters, want %d", len(s), crypto.EncodedSeedSize)}
	}
	raw, err := crypto.FromBase64URL(s)
	if err != nil {
		return "", &InputError{Field: "seed", Err: err}
	}
	if len(raw) != crypto.SeedSize || crypto.ToBase64URL(raw) != s {
		return "", &InputError{Field: "seed", Message: "not in canonical form"}
	}
	return OrderSeed(s), nil
}

func (s OrderSeed) String() string {
	return string(s)
}

// Validate checks that s is canonical.
func (s OrderSeed) Validate() error {
	_, err := ParseOrderSeed(string(s))
	return err
}

// Slot names a payload position within an order.
type Slot = store.Slot

// Predefined slots.
const (
	// SlotBuyer holds the buyer's payload, written at order creation.
	SlotBuyer = store.SlotBuyer
	// SlotSeller holds the seller's payload, written at delivery.
	SlotSeller = store.SlotSeller
	// SlotRefusal holds a payload for a refused order.
	SlotRefusal = store.SlotRefusal
)

func validateSlot(slot Slot) error {
	if err := slot.Validate(); err != nil {
		return &InputError{Field: "slot", Err: err}
	}
	return nil
}
