// Package passhash derives and verifies password hashes. The encoded form
// carries the algorithm name, iteration count and salt alongside the derived
// key, so stored hashes stay verifiable if the defaults ever change.
package passhash

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	algorithm  = "pbkdf2_sha512"
	iterations = 100_000
	saltSize   = 32
	keySize    = 32
)

var (
	ErrEmptyPassword = errors.New("password is empty")
	ErrMalformedHash = errors.New("malformed password hash")
)

// Hash derives a key from password with a fresh random salt and returns
// "pbkdf2_sha512$<iterations>$<salt>$<key>" with base64-encoded parts.
func Hash(password string) (string, error) {
	const op = "passhash.Hash"

	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := pbkdf2.Key([]byte(password), salt, iterations, keySize, sha512.New)

	return strings.Join([]string{
		algorithm,
		strconv.Itoa(iterations),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$"), nil
}

// Verify re-derives the key with the parameters embedded in encoded and
// compares in constant time.
func Verify(password, encoded string) (bool, error) {
	if password == "" {
		return false, ErrEmptyPassword
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != algorithm {
		return false, ErrMalformedHash
	}

	iter, err := strconv.Atoi(parts[1])
	if err != nil || iter <= 0 {
		return false, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return false, ErrMalformedHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(key) == 0 {
		return false, ErrMalformedHash
	}

	derived := pbkdf2.Key([]byte(password), salt, iter, len(key), sha512.New)

	return subtle.ConstantTimeCompare(derived, key) == 1, nil
}
