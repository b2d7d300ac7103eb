package certutil

import (
	"crypto/rand"
	"encoding/base64"
)

// Random returns random bytes of the requested size
func Random(size int) []byte {
	b := make([]byte, size)
	_, _ = rand.Read(b)
	return b
}

// RandomString returns base64url encoded random string
func RandomString(size int) string {
	return base64.RawURLEncoding.EncodeToString(Random(size))
}
