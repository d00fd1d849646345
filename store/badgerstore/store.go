// Package badgerstore implements store.Store on an embedded BadgerDB.
//
// Records are CBOR encoded under keys of the form "aptoosh/<seed>/<slot>".
// The write-once check and the write itself run in one read-write
// transaction, so concurrent writers to the same slot resolve to a single
// winner.
package badgerstore

import (
	"context"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/landofcash/aptoosh-sub000/store"
)

const keyPrefix = "aptoosh/"

// maxConflictRetries bounds how often a write is retried after losing an
// optimistic transaction race.
const maxConflictRetries = 3

// Store is a BadgerDB-backed store.Store.
type Store struct {
	db     *badgerdb.DB
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

type options struct {
	logger      *zap.Logger
	syncWrites  bool
	inMemory    bool
	badgerTweak func(badgerdb.Options) badgerdb.Options
}

// Option configures Open.
type Option func(*options)

// WithLogger routes BadgerDB diagnostics to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSyncWrites makes every commit fsync before returning.
func WithSyncWrites(enabled bool) Option {
	return func(o *options) { o.syncWrites = enabled }
}

// WithBadgerOptions applies fn to the BadgerDB options before opening.
func WithBadgerOptions(fn func(badgerdb.Options) badgerdb.Options) Option {
	return func(o *options) { o.badgerTweak = fn }
}

// Open opens or creates a store in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("badgerstore: directory is required")
	}
	return open(dir, opts...)
}

// OpenInMemory opens a store that lives only in memory.
func OpenInMemory(opts ...Option) (*Store, error) {
	return open("", append(opts, func(o *options) { o.inMemory = true })...)
}

func open(dir string, opts ...Option) (*Store, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	bopts := badgerdb.DefaultOptions(dir).
		WithInMemory(o.inMemory).
		WithSyncWrites(o.syncWrites).
		WithLogger(&badgerLogger{sugar: o.logger.Sugar()})
	if o.badgerTweak != nil {
		bopts = o.badgerTweak(bopts)
	}

	db, err := badgerdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	o.logger.Debug("badger store opened", zap.String("dir", dir), zap.Bool("inMemory", o.inMemory))
	return &Store{db: db, logger: o.logger}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(seed string, slot store.Slot) []byte {
	return []byte(keyPrefix + seed + "/" + string(slot))
}

// Write publishes rec under (seed, slot).
func (s *Store) Write(ctx context.Context, seed string, slot store.Slot, rec *store.Record) error {
	if err := store.CheckWrite(seed, slot, rec); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("badgerstore: encode record: %w", err)
	}
	k := recordKey(seed, slot)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(func(txn *badgerdb.Txn) error {
			item, err := txn.Get(k)
			switch {
			case err == nil:
				existing, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				return compareExisting(existing, rec)
			case errors.Is(err, badgerdb.ErrKeyNotFound):
				return txn.Set(k, data)
			default:
				return err
			}
		})
		if errors.Is(err, badgerdb.ErrConflict) && attempt < maxConflictRetries {
			s.logger.Debug("badger write conflict, retrying",
				zap.String("seed", seed),
				zap.Stringer("slot", slot),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil && !errors.Is(err, store.ErrAlreadyPublished) {
			return fmt.Errorf("badgerstore: write: %w", err)
		}
		return err
	}
}

func compareExisting(existing []byte, rec *store.Record) error {
	prev, err := decodeRecord(existing)
	if err != nil {
		return fmt.Errorf("decode stored record: %w", err)
	}
	if prev.Equal(rec) {
		return nil
	}
	return store.ErrAlreadyPublished
}

// Read returns the record under (seed, slot).
func (s *Store) Read(ctx context.Context, seed string, slot store.Slot) (*store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.CheckKey(seed, slot); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(recordKey(seed, slot))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badgerstore: read: %w", err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: decode record: %w", err)
	}
	return rec, nil
}

// badgerLogger adapts zap to badger's Logger interface.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf("[badger] "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf("[badger] "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof("[badger] "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf("[badger] "+format, args...)
}
