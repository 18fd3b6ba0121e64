// Package passhash provides Argon2id password hashing and verification.
//
// Hashes are encoded in the PHC string format:
//
//	$argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
//
// Verification parses the parameters from the stored hash, so hashes
// created with older parameters keep verifying after a parameter bump.
package passhash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrMalformedHash is returned when the encoded hash cannot be parsed.
	ErrMalformedHash = errors.New("passhash: malformed hash")

	// ErrUnsupportedAlgorithm is returned for non-argon2id hashes.
	ErrUnsupportedAlgorithm = errors.New("passhash: unsupported algorithm")

	// ErrIncompatibleVersion is returned when the argon2 version differs.
	ErrIncompatibleVersion = errors.New("passhash: incompatible argon2 version")
)

// Params holds the Argon2id cost parameters.
type Params struct {
	// Memory is the memory cost in KiB.
	Memory uint32

	// Time is the iteration count.
	Time uint32

	// Parallelism is the number of lanes.
	Parallelism uint8

	// SaltLength is the salt length in bytes.
	SaltLength uint32

	// KeyLength is the derived key length in bytes.
	KeyLength uint32
}

// DefaultParams are the standard hashing parameters (16 MiB, 2 passes, 2 lanes).
var DefaultParams = Params{
	Memory:      16384,
	Time:        2,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Hash computes an Argon2id hash of the password using DefaultParams.
func Hash(password string) (string, error) {
	return HashWithParams(password, DefaultParams)
}

// HashWithParams computes an Argon2id hash using explicit parameters.
func HashWithParams(password string, p Params) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)

	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	keyB64 := base64.RawStdEncoding.EncodeToString(key)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Parallelism, saltB64, keyB64), nil
}

// Verify checks a password against an encoded hash.
//
// Uses constant-time comparison on the derived key. Parse failures are
// returned as errors so callers can distinguish a wrong password from a
// corrupt stored hash.
func Verify(password, encoded string) (bool, error) {
	p, salt, key, err := decode(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

// NeedsRehash reports whether the hash was created with parameters weaker
// than DefaultParams and should be regenerated on next successful login.
func NeedsRehash(encoded string) (bool, error) {
	p, _, _, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return p.Memory < DefaultParams.Memory ||
		p.Time < DefaultParams.Time ||
		p.Parallelism < DefaultParams.Parallelism ||
		p.KeyLength < DefaultParams.KeyLength, nil
}

// decode parses a PHC-encoded Argon2id hash into its components.
func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Params{}, nil, nil, ErrMalformedHash
	}

	if parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrUnsupportedAlgorithm
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return Params{}, nil, nil, ErrIncompatibleVersion
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return Params{}, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}
	if len(key) == 0 {
		return Params{}, nil, nil, ErrMalformedHash
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}
