package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// NewVerifier returns a PKCE code verifier of 43 URL-safe characters.
func NewVerifier() (string, error) {
	return randomToken(32)
}

// NewState returns an opaque value binding a login redirect to its callback.
func NewState() (string, error) {
	return randomToken(24)
}

// Challenge derives the S256 code challenge of verifier.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
