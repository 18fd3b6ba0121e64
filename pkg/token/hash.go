// Package token provides token generation and hashing utilities.
package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Hash returns the hex-encoded SHA-256 of a token. Only hashes are
// persisted; the plaintext token exists solely in the login response.
func Hash(token string) string {
	return HashBytes([]byte(token))
}

// HashBytes returns the hex-encoded SHA-256 of raw bytes.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Verify compares a token against its stored hash in constant time.
func Verify(token, expectedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(token)), []byte(expectedHash)) == 1
}

// VerifyBytes compares raw bytes against a stored hash in constant time.
func VerifyBytes(data []byte, expectedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashBytes(data)), []byte(expectedHash)) == 1
}
