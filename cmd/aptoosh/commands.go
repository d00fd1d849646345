package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	aptoosh "github.com/landofcash/aptoosh-sub000"
	"github.com/landofcash/aptoosh-sub000/internal/config"
	"github.com/landofcash/aptoosh-sub000/signer"
	"github.com/landofcash/aptoosh-sub000/store/httpstore"
)

// RecordOutput describes a published slot.
type RecordOutput struct {
	Seed       string   `json:"seed"`
	Slot       string   `json:"slot"`
	Commitment string   `json:"commitment"`
	Recipients []string `json:"recipients"`
}

// KeyOutput is printed by keygen.
type KeyOutput struct {
	Type     string `json:"type"`
	Key      string `json:"key,omitempty"`
	Mnemonic string `json:"mnemonic,omitempty"`
	Identity string `json:"identity"`
}

func newFlags(a *app, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.env.Stderr)
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	return nil
}

// orderFlags registers --seed and --slot.
func orderFlags(fs *pflag.FlagSet) (seed, slot *string) {
	seed = fs.String("seed", "", "order seed (22-character base64url)")
	slot = fs.String("slot", string(aptoosh.SlotBuyer), "payload slot")
	return seed, slot
}

func parseOrder(seed, slot string) (aptoosh.OrderSeed, aptoosh.Slot, error) {
	if seed == "" {
		return "", "", fmt.Errorf("%w: --seed is required", errUsage)
	}
	s, err := aptoosh.ParseOrderSeed(seed)
	if err != nil {
		return "", "", err
	}
	return s, aptoosh.Slot(slot), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func readInput(a *app, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(a.env.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func runSeed(_ context.Context, a *app, args []string) error {
	fs := newFlags(a, "seed")
	count := fs.IntP("count", "n", 1, "number of seeds to print")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	for i := 0; i < *count; i++ {
		seed, err := aptoosh.NewOrderSeed()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.env.Stdout, seed)
	}
	return nil
}

func runKeygen(_ context.Context, a *app, args []string) error {
	fs := newFlags(a, "keygen")
	kind := fs.String("type", config.SignerEd25519, "key type: ed25519, secp256k1 or mnemonic")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	out := KeyOutput{Type: *kind}
	var s signer.Signer
	switch *kind {
	case config.SignerMnemonic:
		mnemonic, err := signer.NewMnemonic()
		if err != nil {
			return err
		}
		ed, err := signer.Ed25519FromMnemonic(mnemonic, "")
		if err != nil {
			return err
		}
		out.Mnemonic, s = mnemonic, ed
	case config.SignerEd25519, config.SignerSecp256k1:
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return err
		}
		built, err := newSigner(config.SignerConfig{Type: *kind, Key: hex.EncodeToString(key)}, a.logger)
		if err != nil {
			return err
		}
		out.Key, s = hex.EncodeToString(key), built
	default:
		return fmt.Errorf("%w: unknown key type %q", errUsage, *kind)
	}
	out.Identity = s.Identity()
	return writeJSON(a.env.Stdout, out)
}

func runPubkey(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "pubkey")
	seedFlag := fs.String("seed", "", "order seed (22-character base64url)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	seed, _, err := parseOrder(*seedFlag, string(aptoosh.SlotBuyer))
	if err != nil {
		return err
	}

	session, err := a.offlineSession()
	if err != nil {
		return err
	}
	pub, err := session.PublicKey(ctx, seed)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.env.Stdout, pub)
	return nil
}

func runPublish(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "publish")
	seedFlag, slotFlag := orderFlags(fs)
	to := fs.StringSlice("to", nil, "counterparty public key (repeatable)")
	file := fs.StringP("file", "f", "-", "payload file, - for stdin")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	seed, slot, err := parseOrder(*seedFlag, *slotFlag)
	if err != nil {
		return err
	}
	payload, err := readInput(a, *file)
	if err != nil {
		return err
	}

	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	pub, err := session.CreatePayload(ctx, seed, slot, payload, *to...)
	if err != nil {
		return err
	}
	return writeJSON(a.env.Stdout, RecordOutput{
		Seed:       seed.String(),
		Slot:       slot.String(),
		Commitment: pub.Commitment(),
		Recipients: pub.Recipients(),
	})
}

func runDecrypt(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "decrypt")
	seedFlag, slotFlag := orderFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	seed, slot, err := parseOrder(*seedFlag, *slotFlag)
	if err != nil {
		return err
	}

	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	plaintext, err := session.DecryptPayload(ctx, seed, slot)
	if err != nil {
		return err
	}
	_, err = a.env.Stdout.Write(plaintext)
	return err
}

func runWait(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "wait")
	seedFlag, slotFlag := orderFlags(fs)
	timeout := fs.Duration("timeout", 0, "give up after this long (0 waits until interrupted)")
	interval := fs.Duration("interval", 0, "initial poll interval (default from config)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	seed, slot, err := parseOrder(*seedFlag, *slotFlag)
	if err != nil {
		return err
	}

	session, err := a.session(ctx)
	if err != nil {
		return err
	}
	var opts []aptoosh.WaitOption
	if *timeout > 0 {
		opts = append(opts, aptoosh.WithWaitTimeout(*timeout))
	}
	if *interval > 0 {
		opts = append(opts, aptoosh.WithPollInterval(*interval))
	}
	plaintext, err := session.WaitForPayload(ctx, seed, slot, opts...)
	if err != nil {
		return err
	}
	_, err = a.env.Stdout.Write(plaintext)
	return err
}

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "watch")
	seedFlag := fs.String("seed", "", "order seed (22-character base64url)")
	slots := fs.StringSlice("slot", []string{string(aptoosh.SlotBuyer), string(aptoosh.SlotSeller)}, "slots to watch (repeatable)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	seed, _, err := parseOrder(*seedFlag, string(aptoosh.SlotBuyer))
	if err != nil {
		return err
	}

	client, err := a.open(ctx)
	if err != nil {
		return err
	}
	targets := make([]aptoosh.Target, 0, len(*slots))
	for _, slot := range *slots {
		targets = append(targets, aptoosh.Target{Seed: seed, Slot: aptoosh.Slot(slot)})
	}
	events, err := client.Watch(ctx, targets...)
	if err != nil {
		return err
	}

	var failed error
	for ev := range events {
		if ev.Err != nil {
			a.logger.Warn("watch failed", zap.String("slot", ev.Target.Slot.String()), zap.Error(ev.Err))
			failed = errors.Join(failed, ev.Err)
			continue
		}
		out := RecordOutput{
			Seed:       ev.Target.Seed.String(),
			Slot:       ev.Target.Slot.String(),
			Commitment: ev.Record.Commitment,
			Recipients: ev.Record.Recipients(),
		}
		if err := json.NewEncoder(a.env.Stdout).Encode(out); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
	}
	return failed
}

func runVerify(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "verify")
	seedFlag, slotFlag := orderFlags(fs)
	file := fs.StringP("file", "f", "-", "revealed plaintext file, - for stdin")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	seed, slot, err := parseOrder(*seedFlag, *slotFlag)
	if err != nil {
		return err
	}
	plaintext, err := readInput(a, *file)
	if err != nil {
		return err
	}

	client, err := a.open(ctx)
	if err != nil {
		return err
	}
	rec, err := client.Store().Read(ctx, seed.String(), slot)
	if err != nil {
		return &aptoosh.StoreError{Op: "read", Seed: seed.String(), Slot: slot, Err: err}
	}
	if err := aptoosh.VerifyReveal(rec, plaintext); err != nil {
		return err
	}
	fmt.Fprintln(a.env.Stdout, "ok")
	return nil
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "serve")
	addr := fs.String("addr", a.cfg.Serve.Addr, "listen address")
	apiKey := fs.String("api-key", a.cfg.Serve.APIKey, "require this X-API-Key on record requests")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	st, closer, err := a.env.OpenStore(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", a.cfg.Store.Backend, err)
	}
	a.closer = closer

	ln, err := a.env.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler: httpstore.NewHandler(st,
			httpstore.WithHandlerLogger(a.logger),
			httpstore.WithAPIKey(*apiKey)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	a.logger.Info("serving records",
		zap.String("addr", ln.Addr().String()),
		zap.String("backend", a.cfg.Store.Backend))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}
