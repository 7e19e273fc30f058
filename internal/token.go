// Package internal holds the opaque-token codec shared by the refresh and
// single-use token flows. Tokens never leave this layout:
//
//	base64url( 16-byte uuid || 32-byte random secret ), no padding
//
// Only sha256(secret) is ever persisted, so a leaked store row cannot be
// replayed as a token.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	// SecretSize is the byte length of the random half of an opaque token.
	SecretSize = 32

	tokenRawSize = 16 + SecretSize
)

// ErrTokenMalformed is returned by DecodeToken for input that is not a
// well-formed opaque token. Callers fold it into their unauthorized path.
var ErrTokenMalformed = errors.New("malformed opaque token")

// NewSecret returns a fresh cryptographically random token secret.
func NewSecret() ([SecretSize]byte, error) {
	var secret [SecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashSecret maps a token secret to the digest stored server-side.
func HashSecret(secret [SecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeToken packs a token id and its secret into the wire form handed to
// clients.
func EncodeToken(id uuid.UUID, secret [SecretSize]byte) string {
	var raw [tokenRawSize]byte
	copy(raw[:16], id[:])
	copy(raw[16:], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// DecodeToken splits a wire token back into its id and secret. It performs
// no store lookups; a successful decode proves nothing about validity.
func DecodeToken(token string) (uuid.UUID, [SecretSize]byte, error) {
	var secret [SecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return uuid.Nil, secret, ErrTokenMalformed
	}
	if len(raw) != tokenRawSize {
		return uuid.Nil, secret, ErrTokenMalformed
	}

	var id uuid.UUID
	copy(id[:], raw[:16])
	copy(secret[:], raw[16:])
	return id, secret, nil
}
