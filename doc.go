// Package aptoosh exchanges confidential order data between a buyer and a
// seller through a public, append-only store that anyone can read.
//
// Neither party keeps a secret. Each derives an order key by signing
// "APTOOSH-ORDER-KEY-V1:" followed by the order seed with their wallet and
// hashing the signature into a secp256k1 scalar. Payloads are encrypted
// with a fresh AES-256-GCM key that is wrapped with ECIES once per
// recipient, and published with a SHA-256 commitment of the plaintext.
// Either party can later re-derive their key from a new signature and
// decrypt.
//
// # Quick Start
//
//	client, err := aptoosh.New(store.NewMemory())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	buyer := client.NewSession(buyerSigner)
//	seller := client.NewSession(sellerSigner)
//
//	seed, _ := aptoosh.NewOrderSeed()
//	sellerPub, _ := seller.PublicKey(ctx, seed)
//
//	_, err = buyer.CreatePayload(ctx, seed, aptoosh.SlotBuyer, []byte(`{"address":"123 Main St"}`), sellerPub)
//
//	plaintext, err := seller.DecryptPayload(ctx, seed, aptoosh.SlotBuyer)
//
// # Signers
//
// A signer must be deterministic: signing the same message twice has to
// produce the same bytes, otherwise the owner can never decrypt their own
// payload. The signer package provides ed25519 and secp256k1 software keys,
// a BIP-39 mnemonic loader, an HTTP signing bridge and a deep-link wallet
// flow. Session.CheckDeterministic verifies a signer before use.
//
// # Slots
//
// Each order has independent slots (SlotBuyer, SlotSeller, SlotRefusal or
// custom names). A slot is written at most once. Payloads are bound to
// their seed, slot and recipient list through AEAD associated data, so a
// record copied to another slot does not decrypt.
//
// # Waiting
//
// Session.WaitForPayload polls until the counterparty has published, with
// an interval that backs off from 2s to 30s. Client.Watch does the same for
// several slots at once and delivers records over a channel.
//
// # Error Handling
//
// All errors can be checked with errors.Is against the sentinels in this
// package:
//
//	plaintext, err := seller.DecryptPayload(ctx, seed, aptoosh.SlotBuyer)
//	switch {
//	case errors.Is(err, aptoosh.ErrNotFound):
//	    // not published yet
//	case errors.Is(err, aptoosh.ErrUserCancelled):
//	    // wallet prompt declined; safe to retry
//	case errors.Is(err, aptoosh.ErrIntegrityMismatch):
//	    // tamper evidence
//	case errors.Is(err, aptoosh.ErrDecryptionFailed):
//	    // wrong key or corrupted data
//	}
package aptoosh
