package signer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/mr-tron/base58/base58"
	"go.uber.org/zap"
	"golang.org/x/crypto/nacl/box"
)

// Deep link query parameters.
const (
	ParamPublicKey = "dapp_encryption_public_key"
	ParamPayload   = "payload"
	ParamRedirect  = "redirect_link"
)

const nonceSize = 24

var (
	// ErrUnknownRequest indicates a callback for no pending request.
	ErrUnknownRequest = errors.New("deep link callback for unknown request")
	// ErrMalformedCallback indicates a callback that does not authenticate
	// or decode.
	ErrMalformedCallback = errors.New("malformed deep link callback")
)

// Opener hands a deep link to the wallet, typically by opening it in the
// platform's URL handler or rendering it as a QR code.
type Opener func(ctx context.Context, link string) error

// DeepLinkConfig describes a wallet reachable through deep links.
type DeepLinkConfig struct {
	// WalletURL is the wallet's signMessage endpoint, such as
	// "wallet://v1/signMessage".
	WalletURL string
	// WalletPublicKey is the wallet's x25519 session key.
	WalletPublicKey [32]byte
	// RedirectURL is where the wallet sends its reply.
	RedirectURL string
	// Identity is the wallet account being asked to sign.
	Identity string
	// Open delivers a link to the wallet.
	Open Opener
	// Rand overrides crypto/rand for key and nonce generation.
	Rand   io.Reader
	Logger *zap.Logger
}

// DeepLink signs through an out-of-process wallet. Requests and replies are
// sealed with NaCl box between a per-signer x25519 key and the wallet's
// session key; the box MAC authenticates replies. Replies arrive through
// HandleCallback, which may be called from any goroutine.
type DeepLink struct {
	cfg    DeepLinkConfig
	pub    *[32]byte
	priv   *[32]byte
	rand   io.Reader
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]chan deepLinkReply
}

var _ Signer = (*DeepLink)(nil)

// DeepLinkRequest is the sealed body of an outgoing link.
type DeepLinkRequest struct {
	ID       string `json:"id"`
	Identity string `json:"identity"`
	Message  string `json:"message"`
}

// DeepLinkReply is the sealed body of a callback.
type DeepLinkReply struct {
	ID        string `json:"id"`
	Signature []byte `json:"signature,omitempty"`
	Rejected  bool   `json:"rejected,omitempty"`
}

type deepLinkReply struct {
	signature []byte
	rejected  bool
}

// NewDeepLink creates a deep link signer with a fresh x25519 key.
func NewDeepLink(cfg DeepLinkConfig) (*DeepLink, error) {
	if cfg.WalletURL == "" {
		return nil, errors.New("signer: wallet URL is required")
	}
	if cfg.Open == nil {
		return nil, errors.New("signer: opener is required")
	}
	r := cfg.Rand
	if r == nil {
		r = rand.Reader
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pub, priv, err := box.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("signer: generate session key: %w", err)
	}
	return &DeepLink{
		cfg:     cfg,
		pub:     pub,
		priv:    priv,
		rand:    r,
		logger:  logger,
		pending: make(map[string]chan deepLinkReply),
	}, nil
}

// PublicKey returns the signer's x25519 session key.
func (d *DeepLink) PublicKey() [32]byte {
	return *d.pub
}

// Identity returns the wallet account.
func (d *DeepLink) Identity() string {
	return d.cfg.Identity
}

// Sign opens a deep link asking the wallet to sign message and waits for
// the matching callback.
func (d *DeepLink) Sign(ctx context.Context, message string) ([]byte, error) {
	id, err := d.newID()
	if err != nil {
		return nil, err
	}
	sealed, err := d.seal(DeepLinkRequest{ID: id, Identity: d.cfg.Identity, Message: message})
	if err != nil {
		return nil, err
	}
	link, err := d.link(sealed)
	if err != nil {
		return nil, err
	}

	ch := make(chan deepLinkReply, 1)
	d.mu.Lock()
	d.pending[id] = ch
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
	}()

	if err := d.cfg.Open(ctx, link); err != nil {
		return nil, fmt.Errorf("signer: open deep link: %w", err)
	}
	d.logger.Debug("deep link opened", zap.String("identity", d.cfg.Identity), zap.String("request", id))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply := <-ch:
		if reply.rejected {
			return nil, ErrUserRejected
		}
		return reply.signature, nil
	}
}

// HandleCallback delivers a wallet reply. callback is the full redirect URL
// or just its query string.
func (d *DeepLink) HandleCallback(callback string) error {
	u, err := url.Parse(callback)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	query := u.Query()
	if u.RawQuery == "" && u.Scheme == "" {
		query, err = url.ParseQuery(callback)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedCallback, err)
		}
	}

	raw, err := base58.Decode(query.Get(ParamPayload))
	if err != nil {
		return fmt.Errorf("%w: payload encoding: %v", ErrMalformedCallback, err)
	}
	var reply DeepLinkReply
	if err := OpenBox(raw, &d.cfg.WalletPublicKey, d.priv, &reply); err != nil {
		return err
	}
	if !reply.Rejected && len(reply.Signature) == 0 {
		return fmt.Errorf("%w: empty signature", ErrMalformedCallback)
	}

	d.mu.Lock()
	ch, ok := d.pending[reply.ID]
	if ok {
		delete(d.pending, reply.ID)
	}
	d.mu.Unlock()
	if !ok {
		return ErrUnknownRequest
	}

	ch <- deepLinkReply{signature: reply.Signature, rejected: reply.Rejected}
	return nil
}

func (d *DeepLink) newID() (string, error) {
	var b [16]byte
	if _, err := io.ReadFull(d.rand, b[:]); err != nil {
		return "", fmt.Errorf("signer: request id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

func (d *DeepLink) seal(v any) ([]byte, error) {
	return SealBox(d.rand, v, &d.cfg.WalletPublicKey, d.priv)
}

func (d *DeepLink) link(sealed []byte) (string, error) {
	u, err := url.Parse(d.cfg.WalletURL)
	if err != nil {
		return "", fmt.Errorf("signer: wallet URL: %w", err)
	}
	q := u.Query()
	q.Set(ParamPublicKey, base58.Encode(d.pub[:]))
	q.Set(ParamPayload, base58.Encode(sealed))
	if d.cfg.RedirectURL != "" {
		q.Set(ParamRedirect, d.cfg.RedirectURL)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SealBox JSON-encodes v and seals it for peer. The 24-byte nonce is
// prepended to the box.
func SealBox(r io.Reader, v any, peer, priv *[32]byte) ([]byte, error) {
	msg, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("signer: encode box: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(r, nonce[:]); err != nil {
		return nil, fmt.Errorf("signer: box nonce: %w", err)
	}
	return box.Seal(nonce[:], msg, &nonce, peer, priv), nil
}

// OpenBox authenticates and decodes a box produced by SealBox.
func OpenBox(sealed []byte, peer, priv *[32]byte, v any) error {
	if len(sealed) < nonceSize+box.Overhead {
		return fmt.Errorf("%w: box too short", ErrMalformedCallback)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	msg, ok := box.Open(nil, sealed[nonceSize:], &nonce, peer, priv)
	if !ok {
		return fmt.Errorf("%w: authentication failed", ErrMalformedCallback)
	}
	if err := json.Unmarshal(msg, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	return nil
}
