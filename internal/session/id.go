package session

import (
	"crypto/rand"
	"encoding/base64"
)

// NewID generates a cryptographically random URL-safe session identifier.
// 32 bytes = 256 bits of entropy, 43 characters once encoded.
func NewID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
