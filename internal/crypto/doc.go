// Package crypto provides the cryptographic primitives of the order payload
// protocol: signature-derived keypairs, hybrid encryption for several
// recipients, and plaintext commitments.
//
// # Algorithm Suite
//
//   - Key derivation: the private scalar is SHA-256 of a wallet signature over
//     DefaultDomainPrefix || seed, reduced modulo the secp256k1 group order.
//     The public key is the 33-byte compressed point.
//
//   - AES-256-GCM: authenticated encryption of the payload under a random
//     single-use key and a random 12-byte nonce.
//
//   - ECIES over secp256k1 (AES-128-CTR + HMAC-SHA-256): wraps the symmetric
//     key once per recipient. Every blob embeds its own ephemeral public key.
//
//   - SHA-256: the commitment published next to the envelope.
//
// # Key Management
//
// Nothing in this package stores keys. [DeriveKeyPair] recomputes the keypair
// from a fresh signature every time, and [KeyPair.Wipe] clears the private
// scalar once the single wrap or unwrap it was needed for is complete.
// Symmetric keys never leave [Encrypt] or [Decrypt].
//
// # Wire Forms
//
//   - Envelope: base64(nonce) ":" base64(ciphertext || tag), see [ParseEnvelope].
//   - Public key, commitment, wrapped key: standard base64 with padding.
//   - Order seed: 16 bytes as unpadded URL-safe base64 (22 characters).
package crypto
