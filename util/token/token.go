package token

import (
	"crypto/rand"
	"encoding/base64"
)

// New returns a URL-safe random string with n bytes of entropy.
// Access tokens are opaque: unguessability is their entire security
// property, so this must stay on crypto/rand.
func New(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("token: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
