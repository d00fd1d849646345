package aptoosh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/landofcash/aptoosh-sub000/internal/crypto"
)

const (
	// DefaultDomainPrefix is prepended to every order seed before signing.
	DefaultDomainPrefix = crypto.DefaultDomainPrefix

	// DefaultMaxPayloadSize is the largest plaintext CreatePayload accepts.
	DefaultMaxPayloadSize = 64 << 10
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	domainPrefix   string
	maxPayloadSize int
	logger         *zap.Logger
	registerer     prometheus.Registerer

	// Polling configuration
	pollingInitialInterval   time.Duration
	pollingMaxBackoff        time.Duration
	pollingBackoffMultiplier float64
	pollingJitterFactor      float64
}

// waitConfig holds configuration for waiting on a payload.
type waitConfig struct {
	timeout      time.Duration
	pollInterval time.Duration
}

// Option configures the client.
type Option func(*clientConfig)

// WaitOption configures payload waiting.
type WaitOption func(*waitConfig)

// WithDomainPrefix sets the domain-separation prefix signed in front of
// every seed. Both parties of an order must use the same prefix.
// Default: "APTOOSH-ORDER-KEY-V1:"
func WithDomainPrefix(prefix string) Option {
	return func(c *clientConfig) {
		c.domainPrefix = prefix
	}
}

// WithMaxPayloadSize sets the largest plaintext accepted by CreatePayload.
// Default: 64 KiB
func WithMaxPayloadSize(n int) Option {
	return func(c *clientConfig) {
		c.maxPayloadSize = n
	}
}

// WithLogger sets the logger. Keys, signatures and plaintext are never
// logged. Default: a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithMetricsRegisterer registers the client's Prometheus collectors with
// reg. Without it no metrics are collected.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.registerer = reg
	}
}

// WithPollingInitialInterval sets the initial polling interval used while
// waiting for a slot to be published.
// Default: 2 seconds
func WithPollingInitialInterval(interval time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingInitialInterval = interval
	}
}

// WithPollingMaxBackoff sets the maximum polling backoff interval.
// While a slot stays empty the interval increases up to this maximum.
// Default: 30 seconds
func WithPollingMaxBackoff(maxBackoff time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingMaxBackoff = maxBackoff
	}
}

// WithPollingBackoffMultiplier sets the backoff multiplier for polling.
// After each poll that finds nothing, the interval is multiplied by this factor.
// Values below 1 are treated as 1. Default: 1.5
func WithPollingBackoffMultiplier(multiplier float64) Option {
	return func(c *clientConfig) {
		c.pollingBackoffMultiplier = multiplier
	}
}

// WithPollingJitterFactor sets the jitter factor for polling intervals.
// Random jitter up to this fraction of the interval is added to prevent
// synchronized polling across multiple clients. A negative value disables
// jitter.
// Default: 0.3 (30%)
func WithPollingJitterFactor(factor float64) Option {
	return func(c *clientConfig) {
		c.pollingJitterFactor = factor
	}
}

// WithWaitTimeout bounds the wait. Without it only the context does.
func WithWaitTimeout(timeout time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.timeout = timeout
	}
}

// WithPollInterval sets the initial polling interval for this wait.
func WithPollInterval(interval time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.pollInterval = interval
	}
}
