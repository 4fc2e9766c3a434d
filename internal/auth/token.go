package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// NewToken returns a cryptographically random, URL-safe value with
// 256 bits of entropy. Used for OAuth state, nonce and session ids.
func NewToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process cannot mint any
		// unguessable value; serving requests would be unsafe.
		panic("auth: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
