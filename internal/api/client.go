package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Default client settings.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
	DefaultUserAgent  = "aptoosh-go"
)

// Config holds the struct-based client configuration.
type Config struct {
	// BaseURL is the service root, for example https://orders.example.com.
	BaseURL string
	// APIKey is sent in the X-API-Key header when non-empty.
	APIKey string
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
	// Timeout applies to the default HTTP client.
	Timeout time.Duration
	// Retry configures retries. Nil uses DefaultRetryConfig.
	Retry *RetryConfig
	// UserAgent overrides DefaultUserAgent.
	UserAgent string
	// Logger receives retry diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// Client is a JSON-over-HTTP client with retries. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	retry      *RetryConfig
	logger     *zap.Logger
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		httpClient: cfg.HTTPClient,
		retry:      cfg.Retry,
		logger:     cfg.Logger,
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.retry == nil {
		c.retry = DefaultRetryConfig()
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// Option configures a client created with New.
type Option func(*Config)

// WithAPIKey sets the X-API-Key header value.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithRetry sets the retry policy.
func WithRetry(retry *RetryConfig) Option {
	return func(c *Config) { c.Retry = retry }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// New creates a client for baseURL using functional options.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := Config{BaseURL: baseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewClient(cfg)
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Do sends a request with body encoded as JSON and decodes the response into
// result. Either may be nil. Retryable statuses and transport failures are
// retried according to the retry policy; error statuses are returned as
// *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = data
	}

	url := c.baseURL + path
	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, url, payload)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if attempt < c.retry.MaxRetries {
				c.logger.Debug("retrying request after transport error",
					zap.String("method", method),
					zap.String("url", url),
					zap.Int("attempt", attempt+1),
					zap.Error(err))
				if werr := c.retry.Wait(ctx, attempt); werr != nil {
					return werr
				}
				continue
			}
			return &NetworkError{Err: err, URL: url, Attempt: attempt + 1}
		}

		if c.retry.ShouldRetry(attempt, resp.StatusCode) {
			delay := c.retry.Delay(attempt)
			if ra := retryAfter(resp.Header); ra > delay {
				delay = ra
			}
			drain(resp)
			c.logger.Debug("retrying request",
				zap.String("method", method),
				zap.String("url", url),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			if werr := sleep(ctx, delay); werr != nil {
				return werr
			}
			continue
		}

		return c.handle(resp, result)
	}
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	return c.httpClient.Do(req)
}

func (c *Client) handle(resp *http.Response, result any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
