package signer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/landofcash/aptoosh-sub000/internal/api"
	"github.com/landofcash/aptoosh-sub000/internal/crypto"
)

// DefaultRemotePath is the signing endpoint on a bridge.
const DefaultRemotePath = "/sign"

// RemoteConfig describes a signing bridge: an HTTP service that relays
// signMessage requests to the key holder and blocks until they answer.
type RemoteConfig struct {
	BaseURL    string
	APIKey     string
	Identity   string
	Path       string
	HTTPClient *http.Client
	// Timeout bounds the whole request including the user's decision.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Remote signs by calling a signing bridge.
type Remote struct {
	client   *api.Client
	identity string
	path     string
	logger   *zap.Logger
}

var _ Signer = (*Remote)(nil)

type remoteRequest struct {
	Identity string `json:"identity"`
	Message  string `json:"message"`
}

type remoteResponse struct {
	Signature string `json:"signature"`
}

// NewRemote creates a bridge signer. Requests are never retried: a retry
// would prompt the user a second time.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.Identity == "" {
		return nil, errors.New("signer: remote identity is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	client, err := api.NewClient(api.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		HTTPClient: cfg.HTTPClient,
		Timeout:    timeout,
		Retry:      api.NoRetry(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}

	path := cfg.Path
	if path == "" {
		path = DefaultRemotePath
	}
	return &Remote{client: client, identity: cfg.Identity, path: path, logger: logger}, nil
}

// Sign posts message to the bridge and waits for the signature.
func (r *Remote) Sign(ctx context.Context, message string) ([]byte, error) {
	var resp remoteResponse
	err := r.client.Do(ctx, http.MethodPost, r.path, remoteRequest{Identity: r.identity, Message: message}, &resp)
	if err != nil {
		if isRejection(err) {
			r.logger.Info("signing request rejected", zap.String("identity", r.identity))
			return nil, ErrUserRejected
		}
		return nil, fmt.Errorf("signer: remote sign: %w", err)
	}

	sig, err := crypto.DecodeBase64(resp.Signature)
	if err != nil {
		return nil, fmt.Errorf("signer: remote returned %w: %v", ErrInvalidSignature, err)
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("signer: remote returned %w: empty", ErrInvalidSignature)
	}
	return sig, nil
}

// Identity returns the configured identity.
func (r *Remote) Identity() string {
	return r.identity
}

func isRejection(err error) bool {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode != http.StatusForbidden && apiErr.StatusCode != http.StatusConflict {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "rejected")
}
