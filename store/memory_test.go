package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/landofcash/aptoosh-sub000/store"
	"github.com/landofcash/aptoosh-sub000/store/storetest"
)

func TestMemory_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return store.NewMemory()
	})
}

func TestMemory_CancelledContext(t *testing.T) {
	t.Parallel()

	m := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Write(ctx, "seed", store.SlotBuyer, storetest.SampleRecord(1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Write() error = %v, want context.Canceled", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
	if _, err := m.Read(ctx, "seed", store.SlotBuyer); !errors.Is(err, context.Canceled) {
		t.Errorf("Read() error = %v, want context.Canceled", err)
	}
}

func TestMemory_WriteKeepsCopy(t *testing.T) {
	t.Parallel()

	m := store.NewMemory()
	rec := storetest.SampleRecord(1)
	if err := m.Write(context.Background(), "seed", store.SlotBuyer, rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	rec.Envelope = "changed:after"

	got, err := m.Read(context.Background(), "seed", store.SlotBuyer)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !got.Equal(storetest.SampleRecord(1)) {
		t.Error("caller mutation after Write leaked into the store")
	}
}
