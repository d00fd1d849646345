// Package redisstore implements store.Store on Redis.
//
// Each record is stored as JSON under "<prefix>:<seed>:<slot>" with SETNX,
// so the first writer wins and later writers observe the existing value.
// Keys carry no expiry.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/landofcash/aptoosh-sub000/store"
)

// DefaultKeyPrefix namespaces keys written by this package.
const DefaultKeyPrefix = "aptoosh"

// Config describes a Redis connection.
type Config struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store is a Redis-backed store.Store.
type Store struct {
	client redisClient
	prefix string
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redisstore: address is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if cfg.KeyPrefix != "" {
		opts = append([]Option{WithKeyPrefix(cfg.KeyPrefix)}, opts...)
	}

	s := newStore(&goRedisClient{client: rdb}, opts...)
	if err := s.client.Ping(ctx); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redisstore: connect %s: %w", cfg.Addr, err)
	}
	return s, nil
}

// NewFromClient wraps an existing go-redis client. Close closes it.
func NewFromClient(rdb redis.UniversalClient, opts ...Option) *Store {
	return newStore(&goRedisClient{client: rdb}, opts...)
}

func newStore(client redisClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultKeyPrefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(seed string, slot store.Slot) string {
	return s.prefix + ":" + seed + ":" + string(slot)
}

// Write publishes rec under (seed, slot).
func (s *Store) Write(ctx context.Context, seed string, slot store.Slot, rec *store.Record) error {
	if err := store.CheckWrite(seed, slot, rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redisstore: encode record: %w", err)
	}

	k := s.key(seed, slot)
	ok, err := s.client.SetNX(ctx, k, data)
	if err != nil {
		return fmt.Errorf("redisstore: setnx %s: %w", k, err)
	}
	if ok {
		return nil
	}

	existing, err := s.read(ctx, k)
	if err != nil {
		return err
	}
	if existing.Equal(rec) {
		s.logger.Debug("identical record already published",
			zap.String("seed", seed), zap.Stringer("slot", slot))
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
	return s.read(ctx, s.key(seed, slot))
}

func (s *Store) read(ctx context.Context, k string) (*store.Record, error) {
	data, err := s.client.Get(ctx, k)
	if errors.Is(err, errKeyMissing) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", k, err)
	}

	var rec store.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("redisstore: decode %s: %w", k, err)
	}
	return &rec, nil
}
