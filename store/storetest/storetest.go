// Package storetest provides a conformance suite for store.Store
// implementations.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/landofcash/aptoosh-sub000/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// SampleRecord returns a structurally valid record whose fields are tagged
// with n so different calls produce different records.
func SampleRecord(n int) *store.Record {
	return &store.Record{
		Commitment: fmt.Sprintf("commitment-%d", n),
		Envelope:   fmt.Sprintf("nonce-%d:ciphertext-%d", n, n),
		WrappedKeys: []store.WrappedKey{
			{Recipient: fmt.Sprintf("buyer-%d", n), Key: fmt.Sprintf("key-a-%d", n)},
			{Recipient: fmt.Sprintf("seller-%d", n), Key: fmt.Sprintf("key-b-%d", n)},
		},
	}
}

// Run exercises the write-once contract shared by all backends.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("ReadMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Read(context.Background(), "seed", store.SlotBuyer)
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Read() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ReadCancelled", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Read(ctx, "seed", store.SlotBuyer)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Read() error = %v, want context.Canceled", err)
		}
	})

	t.Run("WriteThenRead", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := SampleRecord(1)

		if err := s.Write(ctx, "seed", store.SlotBuyer, rec); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		got, err := s.Read(ctx, "seed", store.SlotBuyer)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if !got.Equal(rec) {
			t.Errorf("Read() = %+v, want %+v", got, rec)
		}
	})

	t.Run("SlotsAreIndependent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Write(ctx, "seed", store.SlotBuyer, SampleRecord(1)); err != nil {
			t.Fatalf("Write(buyer) error = %v", err)
		}
		if _, err := s.Read(ctx, "seed", store.SlotSeller); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Read(seller) error = %v, want ErrNotFound", err)
		}
		if _, err := s.Read(ctx, "other", store.SlotBuyer); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Read(other seed) error = %v, want ErrNotFound", err)
		}
		if err := s.Write(ctx, "seed", store.SlotSeller, SampleRecord(2)); err != nil {
			t.Fatalf("Write(seller) error = %v", err)
		}
	})

	t.Run("IdenticalRewrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Write(ctx, "seed", store.SlotSeller, SampleRecord(1)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if err := s.Write(ctx, "seed", store.SlotSeller, SampleRecord(1)); err != nil {
			t.Fatalf("identical Write() error = %v, want nil", err)
		}
	})

	t.Run("DifferentRewrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Write(ctx, "seed", store.SlotSeller, SampleRecord(1)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		err := s.Write(ctx, "seed", store.SlotSeller, SampleRecord(2))
		if !errors.Is(err, store.ErrAlreadyPublished) {
			t.Fatalf("second Write() error = %v, want ErrAlreadyPublished", err)
		}

		got, err := s.Read(ctx, "seed", store.SlotSeller)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if !got.Equal(SampleRecord(1)) {
			t.Error("rejected rewrite modified the stored record")
		}
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Write(ctx, "seed", store.SlotBuyer, &store.Record{}); !errors.Is(err, store.ErrInvalidRecord) {
			t.Errorf("Write(empty record) error = %v, want ErrInvalidRecord", err)
		}
		if err := s.Write(ctx, "", store.SlotBuyer, SampleRecord(1)); !errors.Is(err, store.ErrInvalidSeed) {
			t.Errorf("Write(empty seed) error = %v, want ErrInvalidSeed", err)
		}
		if err := s.Write(ctx, "seed", store.Slot("Bad Slot"), SampleRecord(1)); !errors.Is(err, store.ErrInvalidSlot) {
			t.Errorf("Write(bad slot) error = %v, want ErrInvalidSlot", err)
		}
		if _, err := s.Read(ctx, "seed", store.SlotBuyer); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Read() after rejected writes error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ReturnedRecordIsACopy", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Write(ctx, "seed", store.SlotBuyer, SampleRecord(1)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		got, err := s.Read(ctx, "seed", store.SlotBuyer)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got.WrappedKeys[0].Key = "mutated"

		again, err := s.Read(ctx, "seed", store.SlotBuyer)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if !again.Equal(SampleRecord(1)) {
			t.Error("mutating a returned record changed the stored record")
		}
	})

	t.Run("ConcurrentWritersOneWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const writers = 8
		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i := range writers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.Write(ctx, "race", store.SlotBuyer, SampleRecord(100+i))
			}(i)
		}
		wg.Wait()

		winners := 0
		for i, err := range errs {
			switch {
			case err == nil:
				winners++
			case errors.Is(err, store.ErrAlreadyPublished):
			default:
				t.Errorf("writer %d error = %v", i, err)
			}
		}
		if winners != 1 {
			t.Errorf("winners = %d, want 1", winners)
		}
	})
}
