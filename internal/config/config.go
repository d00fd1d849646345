// Package config loads CLI configuration from a YAML file, an optional
// .env file and APTOOSH_* environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendHTTP   = "http"
)

// Signer kinds.
const (
	SignerEd25519   = "ed25519"
	SignerSecp256k1 = "secp256k1"
	SignerMnemonic  = "mnemonic"
	SignerRemote    = "remote"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved CLI configuration.
type Config struct {
	DomainPrefix   string `yaml:"domainPrefix"`
	MaxPayloadSize int    `yaml:"maxPayloadSize"`

	Store  StoreConfig  `yaml:"store"`
	Signer SignerConfig `yaml:"signer"`
	Poll   PollConfig   `yaml:"poll"`
	Log    LogConfig    `yaml:"log"`
	Serve  ServeConfig  `yaml:"serve"`
}

// StoreConfig selects and configures the public store.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
	HTTP    HTTPConfig  `yaml:"http"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// HTTPConfig configures the http backend.
type HTTPConfig struct {
	BaseURL   string        `yaml:"baseURL"`
	APIKey    string        `yaml:"apiKey"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cacheSize"`
}

// SignerConfig selects the signing backend.
type SignerConfig struct {
	Type string `yaml:"type"`
	// Key is a hex private key (32-byte ed25519 seed or secp256k1 scalar).
	Key        string       `yaml:"key"`
	KeyFile    string       `yaml:"keyFile"`
	Mnemonic   string       `yaml:"mnemonic"`
	Passphrase string       `yaml:"passphrase"`
	Remote     RemoteConfig `yaml:"remote"`
}

// RemoteConfig configures the HTTP signing bridge.
type RemoteConfig struct {
	BaseURL  string        `yaml:"baseURL"`
	APIKey   string        `yaml:"apiKey"`
	Identity string        `yaml:"identity"`
	Timeout  time.Duration `yaml:"timeout"`
}

// PollConfig tunes waiting for a counterparty.
type PollConfig struct {
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxBackoff      time.Duration `yaml:"maxBackoff"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ServeConfig configures the record server.
type ServeConfig struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"apiKey"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DomainPrefix:   "APTOOSH-ORDER-KEY-V1:",
		MaxPayloadSize: 64 << 10,
		Store: StoreConfig{
			Backend: BackendBadger,
			Path:    defaultDataDir(),
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Signer: SignerConfig{Type: SignerEd25519},
		Poll: PollConfig{
			InitialInterval: 2 * time.Second,
			MaxBackoff:      30 * time.Second,
		},
		Log:   LogConfig{Level: "info"},
		Serve: ServeConfig{Addr: ":8080"},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "aptoosh", "data")
	}
	return "aptoosh-data"
}

// Candidates lists the files tried when no path is given.
func Candidates() []string {
	paths := []string{"aptoosh.yaml", "configs/aptoosh.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "aptoosh", "config.yaml"))
	}
	return paths
}

// Load resolves configuration. An explicit configPath must exist; without
// one the first readable candidate is used, and none is required. A .env
// file in the working directory is loaded into the environment first
// without replacing variables that are already set.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	var candidates []string
	if configPath != "" {
		candidates = []string{configPath}
	} else {
		candidates = Candidates()
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath != "" {
				return cfg, fmt.Errorf("read config: %w", err)
			}
			continue
		}

		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		Merge(&cfg, parsed)
		break
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge copies every non-zero field of src into dst.
func Merge(dst *Config, src Config) {
	setString(&dst.DomainPrefix, src.DomainPrefix)
	if src.MaxPayloadSize != 0 {
		dst.MaxPayloadSize = src.MaxPayloadSize
	}

	setString(&dst.Store.Backend, src.Store.Backend)
	setString(&dst.Store.Path, src.Store.Path)
	setString(&dst.Store.Redis.Addr, src.Store.Redis.Addr)
	setString(&dst.Store.Redis.Username, src.Store.Redis.Username)
	setString(&dst.Store.Redis.Password, src.Store.Redis.Password)
	setString(&dst.Store.Redis.KeyPrefix, src.Store.Redis.KeyPrefix)
	if src.Store.Redis.DB != 0 {
		dst.Store.Redis.DB = src.Store.Redis.DB
	}
	setString(&dst.Store.HTTP.BaseURL, src.Store.HTTP.BaseURL)
	setString(&dst.Store.HTTP.APIKey, src.Store.HTTP.APIKey)
	if src.Store.HTTP.Timeout != 0 {
		dst.Store.HTTP.Timeout = src.Store.HTTP.Timeout
	}
	if src.Store.HTTP.CacheSize != 0 {
		dst.Store.HTTP.CacheSize = src.Store.HTTP.CacheSize
	}

	setString(&dst.Signer.Type, src.Signer.Type)
	setString(&dst.Signer.Key, src.Signer.Key)
	setString(&dst.Signer.KeyFile, src.Signer.KeyFile)
	setString(&dst.Signer.Mnemonic, src.Signer.Mnemonic)
	setString(&dst.Signer.Passphrase, src.Signer.Passphrase)
	setString(&dst.Signer.Remote.BaseURL, src.Signer.Remote.BaseURL)
	setString(&dst.Signer.Remote.APIKey, src.Signer.Remote.APIKey)
	setString(&dst.Signer.Remote.Identity, src.Signer.Remote.Identity)
	if src.Signer.Remote.Timeout != 0 {
		dst.Signer.Remote.Timeout = src.Signer.Remote.Timeout
	}

	if src.Poll.InitialInterval != 0 {
		dst.Poll.InitialInterval = src.Poll.InitialInterval
	}
	if src.Poll.MaxBackoff != 0 {
		dst.Poll.MaxBackoff = src.Poll.MaxBackoff
	}

	setString(&dst.Log.Level, src.Log.Level)
	if src.Log.Development {
		dst.Log.Development = true
	}

	setString(&dst.Serve.Addr, src.Serve.Addr)
	setString(&dst.Serve.APIKey, src.Serve.APIKey)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ApplyEnvOverrides applies APTOOSH_* variables.
func ApplyEnvOverrides(cfg *Config) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"APTOOSH_DOMAIN_PREFIX", &cfg.DomainPrefix},
		{"APTOOSH_STORE", &cfg.Store.Backend},
		{"APTOOSH_STORE_PATH", &cfg.Store.Path},
		{"APTOOSH_REDIS_ADDR", &cfg.Store.Redis.Addr},
		{"APTOOSH_REDIS_USERNAME", &cfg.Store.Redis.Username},
		{"APTOOSH_REDIS_PASSWORD", &cfg.Store.Redis.Password},
		{"APTOOSH_HTTP_URL", &cfg.Store.HTTP.BaseURL},
		{"APTOOSH_HTTP_API_KEY", &cfg.Store.HTTP.APIKey},
		{"APTOOSH_SIGNER", &cfg.Signer.Type},
		{"APTOOSH_SIGNER_KEY", &cfg.Signer.Key},
		{"APTOOSH_SIGNER_KEY_FILE", &cfg.Signer.KeyFile},
		{"APTOOSH_MNEMONIC", &cfg.Signer.Mnemonic},
		{"APTOOSH_MNEMONIC_PASSPHRASE", &cfg.Signer.Passphrase},
		{"APTOOSH_REMOTE_URL", &cfg.Signer.Remote.BaseURL},
		{"APTOOSH_REMOTE_API_KEY", &cfg.Signer.Remote.APIKey},
		{"APTOOSH_REMOTE_IDENTITY", &cfg.Signer.Remote.Identity},
		{"APTOOSH_LOG_LEVEL", &cfg.Log.Level},
		{"APTOOSH_LISTEN_ADDR", &cfg.Serve.Addr},
		{"APTOOSH_SERVE_API_KEY", &cfg.Serve.APIKey},
	}
	for _, s := range strs {
		if v := strings.TrimSpace(os.Getenv(s.name)); v != "" {
			*s.dst = v
		}
	}

	if raw := strings.TrimSpace(os.Getenv("APTOOSH_REDIS_DB")); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("APTOOSH_REDIS_DB: %w", err)
		}
		cfg.Store.Redis.DB = db
	}
	if raw := strings.TrimSpace(os.Getenv("APTOOSH_POLL_INTERVAL")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("APTOOSH_POLL_INTERVAL: %w", err)
		}
		cfg.Poll.InitialInterval = d
	}
	return nil
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	if c.DomainPrefix == "" {
		return fmt.Errorf("%w: domainPrefix is empty", ErrInvalid)
	}
	if c.MaxPayloadSize <= 0 {
		return fmt.Errorf("%w: maxPayloadSize must be positive", ErrInvalid)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for badger", ErrInvalid)
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("%w: store.redis.addr is required", ErrInvalid)
		}
	case BackendHTTP:
		if c.Store.HTTP.BaseURL == "" {
			return fmt.Errorf("%w: store.http.baseURL is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalid, c.Store.Backend)
	}

	switch c.Signer.Type {
	case SignerEd25519, SignerSecp256k1:
	case SignerMnemonic:
		if c.Signer.Mnemonic == "" {
			return fmt.Errorf("%w: signer.mnemonic is required", ErrInvalid)
		}
	case SignerRemote:
		if c.Signer.Remote.BaseURL == "" || c.Signer.Remote.Identity == "" {
			return fmt.Errorf("%w: signer.remote needs baseURL and identity", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown signer type %q", ErrInvalid, c.Signer.Type)
	}
	return nil
}

// SignerKey returns the hex private key from Key or KeyFile.
func (s SignerConfig) SignerKey() (string, error) {
	if s.Key != "" {
		return strings.TrimSpace(s.Key), nil
	}
	if s.KeyFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(s.KeyFile)
	if err != nil {
		return "", fmt.Errorf("read signer key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
