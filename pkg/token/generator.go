// Package token provides token generation and hashing utilities.
package token

import (
	"crypto/rand"
	"encoding/base64"
)

// DefaultLength is the default entropy length in bytes. 32 bytes of
// CSPRNG output encode to the 43-character body of a session token.
const DefaultLength = 32

// Generate returns a random token body with DefaultLength bytes of
// entropy, Base64 RawURL encoded so it is safe in URLs and headers.
// Callers add their own prefix (session tokens use cgtk_).
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength returns a random token body with the given number
// of entropy bytes.
func GenerateWithLength(length int) (string, error) {
	raw, err := GenerateBytes(length)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// GenerateBytes returns length bytes from the CSPRNG.
func GenerateBytes(length int) ([]byte, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	return raw, nil
}
