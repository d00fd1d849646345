// Package httpstore implements store.Store against a remote HTTP service
// and provides the matching server handler.
//
// Records live at {base}/orders/{seed}/{slot}: GET reads, PUT publishes.
// A 404 maps to store.ErrNotFound and a 409 to store.ErrAlreadyPublished.
// Published records are immutable, so successful reads and writes are kept
// in a bounded LRU cache.
package httpstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/landofcash/aptoosh-sub000/internal/api"
	"github.com/landofcash/aptoosh-sub000/store"
)

// DefaultCacheSize is the number of records cached when Config.CacheSize is zero.
const DefaultCacheSize = 256

// Config describes the remote store.
type Config struct {
	// BaseURL is the service root.
	BaseURL string
	// APIKey is sent in the X-API-Key header when non-empty.
	APIKey string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
	// Timeout applies to the default client.
	Timeout time.Duration
	// MaxRetries bounds retries of transient failures. Zero uses the client
	// default; a negative value disables retries.
	MaxRetries int
	// CacheSize bounds the record cache. Zero uses DefaultCacheSize; a
	// negative value disables caching.
	CacheSize int
	// Logger receives request diagnostics.
	Logger *zap.Logger
}

// Store is a store.Store backed by a remote HTTP service.
type Store struct {
	client *api.Client
	cache  *lru.Cache[string, *store.Record]
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New creates a remote store client.
func New(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	retry := api.DefaultRetryConfig()
	switch {
	case cfg.MaxRetries < 0:
		retry.MaxRetries = 0
	case cfg.MaxRetries > 0:
		retry.MaxRetries = cfg.MaxRetries
	}

	client, err := api.NewClient(api.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		HTTPClient: cfg.HTTPClient,
		Timeout:    cfg.Timeout,
		Retry:      retry,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("httpstore: %w", err)
	}

	s := &Store{client: client, logger: logger}
	if cfg.CacheSize >= 0 {
		size := cfg.CacheSize
		if size == 0 {
			size = DefaultCacheSize
		}
		s.cache, err = lru.New[string, *store.Record](size)
		if err != nil {
			return nil, fmt.Errorf("httpstore: creating record LRU: %w", err)
		}
	}
	return s, nil
}

func recordPath(seed string, slot store.Slot) string {
	return "/orders/" + url.PathEscape(seed) + "/" + url.PathEscape(string(slot))
}

// Write publishes rec with PUT. Transient failures are retried; the server
// accepts an identical rewrite, so a retry after a lost response succeeds.
func (s *Store) Write(ctx context.Context, seed string, slot store.Slot, rec *store.Record) error {
	if err := store.CheckWrite(seed, slot, rec); err != nil {
		return err
	}

	path := recordPath(seed, slot)
	err := s.client.Do(ctx, http.MethodPut, path, rec, nil)
	switch {
	case err == nil:
		s.remember(path, rec)
		return nil
	case errors.Is(err, api.ErrConflict):
		return store.ErrAlreadyPublished
	default:
		return s.mapError("write", path, err)
	}
}

// Read fetches the record with GET, serving repeated reads from the cache.
func (s *Store) Read(ctx context.Context, seed string, slot store.Slot) (*store.Record, error) {
	if err := store.CheckKey(seed, slot); err != nil {
		return nil, err
	}

	path := recordPath(seed, slot)
	if s.cache != nil {
		if rec, ok := s.cache.Get(path); ok {
			return rec.Clone(), nil
		}
	}

	var rec store.Record
	err := s.client.Do(ctx, http.MethodGet, path, nil, &rec)
	switch {
	case err == nil:
	case errors.Is(err, api.ErrNotFound):
		return nil, store.ErrNotFound
	default:
		return nil, s.mapError("read", path, err)
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("httpstore: read %s: %w", path, err)
	}
	s.remember(path, &rec)
	return &rec, nil
}

func (s *Store) remember(path string, rec *store.Record) {
	if s.cache != nil {
		s.cache.Add(path, rec.Clone())
	}
}

func (s *Store) mapError(op, path string, err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		return fmt.Errorf("httpstore: %s %s: %w: %s", op, path, store.ErrInvalidRecord, apiErr.Message)
	}
	s.logger.Debug("remote store request failed",
		zap.String("op", op), zap.String("path", path), zap.Error(err))
	return fmt.Errorf("httpstore: %s %s: %w", op, path, err)
}
