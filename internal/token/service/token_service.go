// Package service implements secret generation and keyed hashing for single-use
// handoff tokens.
//
// Stored hashes are HMAC-SHA256 under a key derived from the server token key
// with HKDF-SHA256. A keyed hash (rather than a plain unsalted hash) resists
// offline guessing of raw secrets even if the token table leaks.
package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"

	apperrors "github.com/allisson/handoff/internal/errors"
)

// hashKeyInfo versions the key derivation so the construction can change later
// without reusing derived keys.
const hashKeyInfo = "token-hash-v1"

// Issuer generates raw token secrets and computes their stored keyed hash.
type Issuer interface {
	// Generate creates a new cryptographically secure random secret (256 bits).
	// Returns the raw secret (shown once to the caller) and its keyed hash
	// (the only form ever persisted).
	Generate() (plainToken string, tokenHash string, err error)

	// Hash computes the keyed hash of a presented raw secret for lookup.
	Hash(plainToken string) string
}

// hmacIssuer implements Issuer with HKDF-derived HMAC-SHA256 hashing.
type hmacIssuer struct {
	hashKey []byte
}

// NewIssuer creates an Issuer from the server-held token key. The key must be
// non-empty; the hashing key is derived from it, never used directly.
func NewIssuer(serverKey []byte) (Issuer, error) {
	if len(serverKey) == 0 {
		return nil, apperrors.New("token hash key must not be empty")
	}

	reader := hkdf.New(sha256.New, serverKey, nil, []byte(hashKeyInfo))
	hashKey := make([]byte, 32)
	if _, err := io.ReadFull(reader, hashKey); err != nil {
		return nil, apperrors.Wrap(err, "failed to derive token hash key")
	}

	return &hmacIssuer{hashKey: hashKey}, nil
}

// Generate creates a new 32-byte random secret, base64 URL-encoded for
// transmission, and returns it together with its keyed hash.
func (i *hmacIssuer) Generate() (string, string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate random token")
	}

	plainToken := base64.URLEncoding.EncodeToString(randomBytes)
	return plainToken, i.Hash(plainToken), nil
}

// Hash computes HMAC-SHA256 of the raw secret under the derived key, returned
// as a hexadecimal string.
func (i *hmacIssuer) Hash(plainToken string) string {
	mac := hmac.New(sha256.New, i.hashKey)
	mac.Write([]byte(plainToken))
	return hex.EncodeToString(mac.Sum(nil))
}
