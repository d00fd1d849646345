package crypto

const (
	// DefaultDomainPrefix is prepended to every order seed before it is
	// handed to a signer, so the signature cannot be reused for any other
	// purpose.
	DefaultDomainPrefix = "APTOOSH-ORDER-KEY-V1:"

	// AADContext is the context string that opens every associated-data
	// block bound into an envelope.
	AADContext = "aptoosh/aad/v1"

	// SeedSize is the size of a raw order seed in bytes.
	SeedSize = 16
	// EncodedSeedSize is the length of an order seed in unpadded base64url.
	EncodedSeedSize = 22

	// MinSignatureSize is the shortest signature accepted for key derivation.
	MinSignatureSize = 64

	// PublicKeySize is the size of a compressed secp256k1 public key in bytes.
	PublicKeySize = 33
	// PrivateKeySize is the size of a secp256k1 private scalar in bytes.
	PrivateKeySize = 32

	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32
	// AESNonceSize is the size of an AES-GCM nonce in bytes.
	AESNonceSize = 12
	// AESTagSize is the size of an AES-GCM authentication tag in bytes.
	AESTagSize = 16

	// CommitmentSize is the size of a SHA-256 payload commitment in bytes.
	CommitmentSize = 32

	// envelopeSeparator joins the nonce and ciphertext in the text form
	// of an envelope.
	envelopeSeparator = ":"
)

// AlgsCiphersuite is the canonical string representation of the algorithm suite.
var AlgsCiphersuite = "SECP256K1-SHA-256:ECIES-AES-128-SHA-256:AES-256-GCM:SHA-256"
