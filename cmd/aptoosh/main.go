// Command aptoosh publishes and reads end-to-end encrypted order payloads.
//
// Usage:
//
//	aptoosh [--config file] [--store backend] [--log-level level] <command> [flags]
//
// Commands:
//
//	seed      print a fresh order seed
//	keygen    generate a signer key or mnemonic
//	pubkey    print the public key derived for an order
//	publish   encrypt a payload and publish it into a slot
//	decrypt   read and decrypt a published slot
//	wait      wait for a slot to be published, then decrypt it
//	watch     report slots as they are published
//	verify    check a revealed plaintext against a slot's commitment
//	serve     serve the configured store over HTTP
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args, DefaultEnv())
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "aptoosh: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
