package crypto

import (
	"crypto/rand"
	"io"
)

// randReader is the random source used for symmetric keys, nonces and seeds.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func random() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

// RandomBytes returns n bytes read from the package random source.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(random(), b); err != nil {
		return nil, err
	}
	return b, nil
}

// zeroBytes overwrites b in place.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
