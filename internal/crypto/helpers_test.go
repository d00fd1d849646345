package crypto

import (
	"crypto/rand"
	"testing"
)

func randomSignature(t testing.TB) []byte {
	t.Helper()
	sig := make([]byte, 64)
	if _, err := rand.Read(sig); err != nil {
		t.Fatal(err)
	}
	return sig
}

func testKeyPair(t testing.TB) *KeyPair {
	t.Helper()
	kp, err := DeriveKeyPair(randomSignature(t))
	if err != nil {
		t.Fatalf("DeriveKeyPair() error = %v", err)
	}
	return kp
}

func randomKey(t testing.TB) []byte {
	t.Helper()
	key := make([]byte, AESKeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return key
}
