package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/landofcash/aptoosh-sub000/internal/config"
	"github.com/landofcash/aptoosh-sub000/signer"
	"github.com/landofcash/aptoosh-sub000/store"
	"github.com/landofcash/aptoosh-sub000/store/badgerstore"
	"github.com/landofcash/aptoosh-sub000/store/httpstore"
	"github.com/landofcash/aptoosh-sub000/store/redisstore"
)

// StoreOpener opens the configured store. The returned closer releases it.
type StoreOpener func(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.Store, io.Closer, error)

// SignerFactory builds the configured signer.
type SignerFactory func(cfg config.SignerConfig, logger *zap.Logger) (signer.Signer, error)

// Env holds the process dependencies of a command run.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	OpenStore StoreOpener
	NewSigner SignerFactory
	Listen    func(network, addr string) (net.Listener, error)
}

// DefaultEnv returns an Env bound to the process streams and real backends.
func DefaultEnv() Env {
	return Env{
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		OpenStore: openStore,
		NewSigner: newSigner,
		Listen:    net.Listen,
	}
}

func (e Env) withDefaults() Env {
	d := DefaultEnv()
	if e.Stdin == nil {
		e.Stdin = d.Stdin
	}
	if e.Stdout == nil {
		e.Stdout = d.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = d.Stderr
	}
	if e.OpenStore == nil {
		e.OpenStore = d.OpenStore
	}
	if e.NewSigner == nil {
		e.NewSigner = d.NewSigner
	}
	if e.Listen == nil {
		e.Listen = d.Listen
	}
	return e
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.Store, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemory(), nopCloser{}, nil

	case config.BackendBadger:
		st, err := badgerstore.Open(cfg.Path, badgerstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil

	case config.BackendRedis:
		st, err := redisstore.New(ctx, redisstore.Config{
			Addr:      cfg.Redis.Addr,
			Username:  cfg.Redis.Username,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, redisstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil

	case config.BackendHTTP:
		st, err := httpstore.New(httpstore.Config{
			BaseURL:   cfg.HTTP.BaseURL,
			APIKey:    cfg.HTTP.APIKey,
			Timeout:   cfg.HTTP.Timeout,
			CacheSize: cfg.HTTP.CacheSize,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalid, cfg.Backend)
	}
}

func newSigner(cfg config.SignerConfig, logger *zap.Logger) (signer.Signer, error) {
	switch cfg.Type {
	case config.SignerEd25519, config.SignerSecp256k1:
		key, err := decodeKey(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Type == config.SignerEd25519 {
			s, err := signer.NewEd25519(key)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
		s, err := signer.NewSecp256k1(key)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.SignerMnemonic:
		s, err := signer.Ed25519FromMnemonic(cfg.Mnemonic, cfg.Passphrase)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.SignerRemote:
		s, err := signer.NewRemote(signer.RemoteConfig{
			BaseURL:  cfg.Remote.BaseURL,
			APIKey:   cfg.Remote.APIKey,
			Identity: cfg.Remote.Identity,
			Timeout:  cfg.Remote.Timeout,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%w: unknown signer type %q", config.ErrInvalid, cfg.Type)
	}
}

func decodeKey(cfg config.SignerConfig) ([]byte, error) {
	raw, err := cfg.SignerKey()
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: %s signer needs signer.key or APTOOSH_SIGNER_KEY", config.ErrInvalid, cfg.Type)
	}
	key, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: signer key is not hex: %v", config.ErrInvalid, err)
	}
	return key, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %v", config.ErrInvalid, err)
	}

	var enc zapcore.Encoder
	if cfg.Development {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core), nil
}
