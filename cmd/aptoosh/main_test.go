package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	aptoosh "github.com/landofcash/aptoosh-sub000"
	"github.com/landofcash/aptoosh-sub000/internal/config"
	"github.com/landofcash/aptoosh-sub000/store"
)

const testSeed = "AbCdEfGhIjKlMnOpQrStUg"

var (
	buyerKey  = strings.Repeat("01", 32)
	sellerKey = strings.Repeat("02", 32)
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// harness runs commands against one shared memory store.
type harness struct {
	t  *testing.T
	st *store.Memory
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, st: store.NewMemory()}
}

func (h *harness) env(stdin string, stdout, stderr io.Writer) Env {
	return Env{
		Stdin:  strings.NewReader(stdin),
		Stdout: stdout,
		Stderr: stderr,
		OpenStore: func(context.Context, config.StoreConfig, *zap.Logger) (store.Store, io.Closer, error) {
			return h.st, nopCloser{}, nil
		},
	}
}

// run executes one command as the party whose config file is cfgPath.
func (h *harness) run(cfgPath, stdin string, args ...string) (string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"aptoosh", "--config", cfgPath}, args...)
	err := run(context.Background(), full, h.env(stdin, &stdout, &stderr))
	return stdout.String(), err
}

func writeConfig(t *testing.T, signerType, key string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aptoosh.yaml")
	data := fmt.Sprintf(`store:
  backend: memory
signer:
  type: %s
  key: %q
poll:
  initialInterval: 10ms
  maxBackoff: 50ms
`, signerType, key)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultEnv(t *testing.T) {
	env := DefaultEnv()

	if env.Stdin != os.Stdin {
		t.Error("DefaultEnv().Stdin should be os.Stdin")
	}
	if env.Stdout != os.Stdout {
		t.Error("DefaultEnv().Stdout should be os.Stdout")
	}
	if env.Stderr != os.Stderr {
		t.Error("DefaultEnv().Stderr should be os.Stderr")
	}
	if env.OpenStore == nil || env.NewSigner == nil || env.Listen == nil {
		t.Error("DefaultEnv() should set every factory")
	}
}

func TestRun_NoArgs(t *testing.T) {
	var stderr bytes.Buffer
	err := run(context.Background(), []string{"aptoosh"}, Env{Stderr: &stderr})
	if !errors.Is(err, errUsage) {
		t.Errorf("run() error = %v, want errUsage", err)
	}
	if !strings.Contains(stderr.String(), "Commands:") {
		t.Errorf("stderr = %q, want usage", stderr.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"aptoosh", "refund"}, Env{Stderr: io.Discard})
	if !errors.Is(err, errUsage) {
		t.Errorf("run() error = %v, want errUsage", err)
	}
}

func TestRun_Help(t *testing.T) {
	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"aptoosh", "help"}, Env{Stdout: &stdout}); err != nil {
		t.Fatalf("run(help) error = %v", err)
	}
	for _, name := range []string{"publish", "decrypt", "serve"} {
		if !strings.Contains(stdout.String(), name) {
			t.Errorf("usage missing %q", name)
		}
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := writeConfig(t, config.SignerEd25519, buyerKey)
	err := run(context.Background(), []string{"aptoosh", "--config", cfg, "--store", "s3", "seed"}, Env{Stderr: io.Discard})
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("run() error = %v, want config.ErrInvalid", err)
	}

	err = run(context.Background(), []string{"aptoosh", "--config", cfg, "--log-level", "chatty", "seed"}, Env{Stderr: io.Discard})
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("run() with bad log level error = %v, want config.ErrInvalid", err)
	}
}

func TestSeed(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(writeConfig(t, config.SignerEd25519, buyerKey), "", "seed", "-n", "3")
	if err != nil {
		t.Fatalf("seed error = %v", err)
	}
	lines := strings.Fields(out)
	if len(lines) != 3 {
		t.Fatalf("seed printed %d lines, want 3", len(lines))
	}
	for _, line := range lines {
		if _, err := aptoosh.ParseOrderSeed(line); err != nil {
			t.Errorf("ParseOrderSeed(%q) error = %v", line, err)
		}
	}
}

func TestKeygen(t *testing.T) {
	h := newHarness(t)
	cfg := writeConfig(t, config.SignerEd25519, buyerKey)

	for _, kind := range []string{config.SignerEd25519, config.SignerSecp256k1, config.SignerMnemonic} {
		t.Run(kind, func(t *testing.T) {
			out, err := h.run(cfg, "", "keygen", "--type", kind)
			if err != nil {
				t.Fatalf("keygen error = %v", err)
			}
			var key KeyOutput
			if err := json.Unmarshal([]byte(out), &key); err != nil {
				t.Fatalf("parse output: %v", err)
			}
			if key.Type != kind || key.Identity == "" {
				t.Errorf("keygen output = %+v", key)
			}
			if kind == config.SignerMnemonic {
				if n := len(strings.Fields(key.Mnemonic)); n != 24 {
					t.Errorf("mnemonic has %d words, want 24", n)
				}
			} else if len(key.Key) != 64 {
				t.Errorf("key = %q, want 64 hex characters", key.Key)
			}
		})
	}

	if _, err := h.run(cfg, "", "keygen", "--type", "rsa"); !errors.Is(err, errUsage) {
		t.Errorf("keygen --type rsa error = %v, want errUsage", err)
	}
}

func TestPubkey_Deterministic(t *testing.T) {
	h := newHarness(t)
	cfg := writeConfig(t, config.SignerSecp256k1, sellerKey)

	first, err := h.run(cfg, "", "pubkey", "--seed", testSeed)
	if err != nil {
		t.Fatalf("pubkey error = %v", err)
	}
	second, _ := h.run(cfg, "", "pubkey", "--seed", testSeed)
	if first != second {
		t.Errorf("pubkey not deterministic: %q vs %q", first, second)
	}
	if len(strings.TrimSpace(first)) != 44 {
		t.Errorf("pubkey = %q, want base64 of a 33-byte compressed key", first)
	}
	if h.st.Len() != 0 {
		t.Error("pubkey should not touch the store")
	}
}

func TestPublishDecryptVerify(t *testing.T) {
	h := newHarness(t)
	buyer := writeConfig(t, config.SignerEd25519, buyerKey)
	seller := writeConfig(t, config.SignerSecp256k1, sellerKey)
	payload := `{"fullName":"John Doe","address":"123 Main St"}`

	sellerPub, err := h.run(seller, "", "pubkey", "--seed", testSeed)
	if err != nil {
		t.Fatalf("pubkey error = %v", err)
	}

	out, err := h.run(buyer, payload, "publish", "--seed", testSeed, "--slot", "buyer", "--to", strings.TrimSpace(sellerPub))
	if err != nil {
		t.Fatalf("publish error = %v", err)
	}
	var published RecordOutput
	if err := json.Unmarshal([]byte(out), &published); err != nil {
		t.Fatalf("parse publish output: %v", err)
	}
	if published.Seed != testSeed || published.Slot != "buyer" || len(published.Recipients) != 2 {
		t.Errorf("publish output = %+v", published)
	}

	plaintext, err := h.run(seller, "", "decrypt", "--seed", testSeed, "--slot", "buyer")
	if err != nil {
		t.Fatalf("decrypt error = %v", err)
	}
	if plaintext != payload {
		t.Errorf("decrypt = %q, want %q", plaintext, payload)
	}

	ok, err := h.run(seller, payload, "verify", "--seed", testSeed, "--slot", "buyer")
	if err != nil || strings.TrimSpace(ok) != "ok" {
		t.Errorf("verify = %q, %v", ok, err)
	}
	if _, err := h.run(seller, "forged", "verify", "--seed", testSeed, "--slot", "buyer"); !errors.Is(err, aptoosh.ErrIntegrityMismatch) {
		t.Errorf("verify forged error = %v, want ErrIntegrityMismatch", err)
	}

	if _, err := h.run(buyer, "again", "publish", "--seed", testSeed, "--slot", "buyer"); !errors.Is(err, aptoosh.ErrAlreadyPublished) {
		t.Errorf("second publish error = %v, want ErrAlreadyPublished", err)
	}
}

func TestPublish_FromFile(t *testing.T) {
	h := newHarness(t)
	cfg := writeConfig(t, config.SignerEd25519, buyerKey)
	path := filepath.Join(t.TempDir(), "payload.txt")
	os.WriteFile(path, []byte("from file"), 0o600)

	if _, err := h.run(cfg, "", "publish", "--seed", testSeed, "-f", path); err != nil {
		t.Fatalf("publish error = %v", err)
	}
	out, err := h.run(cfg, "", "decrypt", "--seed", testSeed)
	if err != nil || out != "from file" {
		t.Errorf("decrypt = %q, %v", out, err)
	}
}

func TestCommands_Errors(t *testing.T) {
	h := newHarness(t)
	cfg := writeConfig(t, config.SignerEd25519, buyerKey)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"publish missing seed", []string{"publish"}, errUsage},
		{"publish bad seed", []string{"publish", "--seed", "short"}, aptoosh.ErrInvalidInput},
		{"publish stray argument", []string{"publish", "--seed", testSeed, "extra"}, errUsage},
		{"publish bad recipient", []string{"publish", "--seed", testSeed, "--to", "zz"}, aptoosh.ErrInvalidInput},
		{"decrypt not found", []string{"decrypt", "--seed", testSeed, "--slot", "seller"}, aptoosh.ErrNotFound},
		{"verify not found", []string{"verify", "--seed", testSeed, "--slot", "seller"}, aptoosh.ErrNotFound},
		{"unknown flag", []string{"decrypt", "--bogus"}, errUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(cfg, "payload", tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCommand_Help(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(writeConfig(t, config.SignerEd25519, buyerKey), "", "publish", "--help"); err != nil {
		t.Errorf("publish --help error = %v, want nil", err)
	}
}

func TestWait(t *testing.T) {
	h := newHarness(t)
	cfg := writeConfig(t, config.SignerEd25519, buyerKey)

	_, err := h.run(cfg, "", "wait", "--seed", testSeed, "--timeout", "50ms", "--interval", "5ms")
	var timeoutErr *aptoosh.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("wait error = %v, want TimeoutError", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		h.run(cfg, "late", "publish", "--seed", testSeed)
	}()
	out, err := h.run(cfg, "", "wait", "--seed", testSeed, "--timeout", "5s")
	if err != nil || out != "late" {
		t.Errorf("wait = %q, %v", out, err)
	}
}

func TestWatch(t *testing.T) {
	h := newHarness(t)
	buyer := writeConfig(t, config.SignerEd25519, buyerKey)

	for _, slot := range []string{"buyer", "seller"} {
		if _, err := h.run(buyer, "x", "publish", "--seed", testSeed, "--slot", slot); err != nil {
			t.Fatalf("publish %s error = %v", slot, err)
		}
	}

	out, err := h.run(buyer, "", "watch", "--seed", testSeed)
	if err != nil {
		t.Fatalf("watch error = %v", err)
	}
	dec := json.NewDecoder(strings.NewReader(out))
	seen := make(map[string]bool)
	for dec.More() {
		var rec RecordOutput
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		seen[rec.Slot] = true
	}
	if !seen["buyer"] || !seen["seller"] {
		t.Errorf("watch reported %v, want buyer and seller", seen)
	}
}

func TestServe(t *testing.T) {
	cfg := writeConfig(t, config.SignerEd25519, buyerKey)
	addrs := make(chan string, 1)
	env := Env{
		Stdout: io.Discard,
		Stderr: io.Discard,
		Listen: func(network, _ string) (net.Listener, error) {
			ln, err := net.Listen(network, "127.0.0.1:0")
			if err == nil {
				addrs <- ln.Addr().String()
			}
			return ln, err
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, []string{"aptoosh", "--config", cfg, "serve"}, env) }()

	var addr string
	select {
	case addr = <-addrs:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not listen")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get("http://" + addr + "/orders/" + testSeed + "/buyer")
	if err != nil {
		t.Fatalf("GET record error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET missing record status = %d, want 404", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestNewSigner(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key")
	os.WriteFile(keyFile, []byte(sellerKey+"\n"), 0o600)

	tests := []struct {
		name    string
		cfg     config.SignerConfig
		wantErr bool
	}{
		{"ed25519", config.SignerConfig{Type: config.SignerEd25519, Key: buyerKey}, false},
		{"ed25519 0x prefix", config.SignerConfig{Type: config.SignerEd25519, Key: "0x" + buyerKey}, false},
		{"secp256k1 key file", config.SignerConfig{Type: config.SignerSecp256k1, KeyFile: keyFile}, false},
		{"missing key", config.SignerConfig{Type: config.SignerEd25519}, true},
		{"bad hex", config.SignerConfig{Type: config.SignerEd25519, Key: "not-hex"}, true},
		{"short key", config.SignerConfig{Type: config.SignerSecp256k1, Key: "0102"}, true},
		{"mnemonic", config.SignerConfig{Type: config.SignerMnemonic, Mnemonic: "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"}, false},
		{"bad mnemonic", config.SignerConfig{Type: config.SignerMnemonic, Mnemonic: "not a phrase"}, true},
		{"remote", config.SignerConfig{Type: config.SignerRemote, Remote: config.RemoteConfig{BaseURL: "http://bridge", Identity: "wallet"}}, false},
		{"remote without identity", config.SignerConfig{Type: config.SignerRemote, Remote: config.RemoteConfig{BaseURL: "http://bridge"}}, true},
		{"unknown", config.SignerConfig{Type: "ledger"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newSigner(tt.cfg, zap.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Error("newSigner() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newSigner() error = %v", err)
			}
			if s.Identity() == "" {
				t.Error("Identity() is empty")
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	cases := []config.StoreConfig{
		{Backend: config.BackendMemory},
		{Backend: config.BackendBadger, Path: t.TempDir()},
		{Backend: config.BackendHTTP, HTTP: config.HTTPConfig{BaseURL: "http://127.0.0.1:1"}},
	}
	for _, cfg := range cases {
		t.Run(cfg.Backend, func(t *testing.T) {
			st, closer, err := openStore(ctx, cfg, logger)
			if err != nil {
				t.Fatalf("openStore() error = %v", err)
			}
			if st == nil {
				t.Fatal("openStore() returned nil store")
			}
			if err := closer.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}

	if _, _, err := openStore(ctx, config.StoreConfig{Backend: "s3"}, logger); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("openStore(s3) error = %v, want config.ErrInvalid", err)
	}
	if _, _, err := openStore(ctx, config.StoreConfig{Backend: config.BackendHTTP}, logger); err == nil {
		t.Error("openStore(http) without URL expected error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("log output = %q", buf.String())
	}

	if _, err := newLogger(config.LogConfig{Level: "chatty"}, &buf); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("newLogger(chatty) error = %v, want config.ErrInvalid", err)
	}
	if _, err := newLogger(config.LogConfig{Level: "debug", Development: true}, &buf); err != nil {
		t.Errorf("newLogger(development) error = %v", err)
	}
}
