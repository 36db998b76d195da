package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// NewConfirmationToken returns an unguessable, URL-safe single-use token
// for witness confirmation links. 32 random bytes, base64url encoded.
func NewConfirmationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
