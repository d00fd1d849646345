package store

import (
	"context"
	"sync"
)

type key struct {
	seed string
	slot Slot
}

// Memory is an in-process Store. It is safe for concurrent use and is
// intended for tests, examples and single-process deployments.
type Memory struct {
	mu      sync.RWMutex
	records map[key]*Record
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[key]*Record)}
}

// Write stores a copy of rec.
func (m *Memory) Write(ctx context.Context, seed string, slot Slot, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckWrite(seed, slot, rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{seed, slot}
	if existing, ok := m.records[k]; ok {
		if existing.Equal(rec) {
			return nil
		}
		return ErrAlreadyPublished
	}
	m.records[k] = rec.Clone()
	return nil
}

// Read returns a copy of the stored record.
func (m *Memory) Read(ctx context.Context, seed string, slot Slot) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckKey(seed, slot); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key{seed, slot}]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Len returns the number of published records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
