package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	aptoosh "github.com/landofcash/aptoosh-sub000"
	"github.com/landofcash/aptoosh-sub000/internal/config"
	"github.com/landofcash/aptoosh-sub000/store"
)

var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"seed":    {"print a fresh order seed", runSeed},
	"keygen":  {"generate a signer key or mnemonic", runKeygen},
	"pubkey":  {"print the public key derived for an order", runPubkey},
	"publish": {"encrypt a payload and publish it into a slot", runPublish},
	"decrypt": {"read and decrypt a published slot", runDecrypt},
	"wait":    {"wait for a slot to be published, then decrypt it", runWait},
	"watch":   {"report slots as they are published", runWatch},
	"verify":  {"check a revealed plaintext against a slot's commitment", runVerify},
	"serve":   {"serve the configured store over HTTP", runServe},
}

// app carries the resolved configuration shared by every command. The store
// and client are opened on first use.
type app struct {
	env    Env
	cfg    config.Config
	logger *zap.Logger

	client *aptoosh.Client
	closer io.Closer
}

func run(ctx context.Context, args []string, env Env) error {
	env = env.withDefaults()

	var configPath, backend, logLevel string
	flags := pflag.NewFlagSet("aptoosh", pflag.ContinueOnError)
	flags.SetOutput(env.Stderr)
	flags.SetInterspersed(false)
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&backend, "store", "", "store backend: memory, badger, redis or http")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.Usage = func() { printUsage(env.Stderr, flags) }

	if len(args) > 0 {
		args = args[1:]
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(env.Stderr, flags)
		return fmt.Errorf("%w: missing command", errUsage)
	}
	if rest[0] == "help" {
		printUsage(env.Stdout, flags)
		return nil
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, rest[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if backend != "" {
		cfg.Store.Backend = backend
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, env.Stderr)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a := &app{env: env, cfg: cfg, logger: logger.With(zap.String("command", rest[0]))}
	defer a.close()

	err = cmd.run(ctx, a, rest[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

func printUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "usage: aptoosh [flags] <command> [command flags]")
	fmt.Fprintln(w, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s  %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nFlags:")
	fmt.Fprint(w, flags.FlagUsages())
}

func (a *app) clientOptions() []aptoosh.Option {
	return []aptoosh.Option{
		aptoosh.WithDomainPrefix(a.cfg.DomainPrefix),
		aptoosh.WithMaxPayloadSize(a.cfg.MaxPayloadSize),
		aptoosh.WithLogger(a.logger),
		aptoosh.WithPollingInitialInterval(a.cfg.Poll.InitialInterval),
		aptoosh.WithPollingMaxBackoff(a.cfg.Poll.MaxBackoff),
	}
}

// open returns a client over the configured store.
func (a *app) open(ctx context.Context) (*aptoosh.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	st, closer, err := a.env.OpenStore(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Store.Backend, err)
	}
	client, err := aptoosh.New(st, a.clientOptions()...)
	if err != nil {
		closer.Close()
		return nil, err
	}
	a.client, a.closer = client, closer
	return client, nil
}

// session opens the client and binds the configured signer to it.
func (a *app) session(ctx context.Context) (*aptoosh.Session, error) {
	client, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	s, err := a.env.NewSigner(a.cfg.Signer, a.logger)
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	return client.NewSession(s), nil
}

// offlineSession binds the signer to a throwaway memory store, for commands
// that only derive keys.
func (a *app) offlineSession() (*aptoosh.Session, error) {
	s, err := a.env.NewSigner(a.cfg.Signer, a.logger)
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	client, err := aptoosh.New(store.NewMemory(), a.clientOptions()...)
	if err != nil {
		return nil, err
	}
	return client.NewSession(s), nil
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
}
