// Package domain defines the single-use handoff token model.
//
// A token is a high-entropy bearer secret valid for exactly one successful
// validation within a bounded time window. Only a keyed one-way hash of the
// secret is ever persisted; the raw value is returned once at issuance and is
// never retrievable again.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/handoff/internal/errors"
)

// Purpose identifies what a consumed token authorizes.
type Purpose string

const (
	// CredentialFetchPurpose authorizes fetching one credential payload.
	CredentialFetchPurpose Purpose = "credential-fetch"
	// ProductFetchPurpose authorizes fetching one product payload.
	ProductFetchPurpose Purpose = "product-fetch"
)

// Token domain errors.
var (
	// ErrTokenNotFound indicates no token matches the presented hash. Internal
	// only: the boundary folds it into the opaque errors.ErrInvalidToken.
	ErrTokenNotFound = apperrors.Wrap(apperrors.ErrNotFound, "token")
)

// Token is the persisted record of a single-use bearer secret. TokenHash is the
// keyed HMAC of the raw secret, never the secret itself.
type Token struct {
	ID         uuid.UUID
	TokenHash  string
	Subject    uuid.UUID
	Purpose    Purpose
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	ReapedAt   *time.Time
	CreatedAt  time.Time
}

// IsExpired reports whether the token's validity window has lapsed at now.
// Expiry is checked on every validation path, so a token is inert the moment it
// expires even before the reaper formalizes it.
func (t *Token) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// IsConsumed reports whether the token has already been used. Once consumed, a
// token is permanently invalid regardless of remaining time-to-live.
func (t *Token) IsConsumed() bool {
	return t.ConsumedAt != nil
}

// ValidPurpose reports whether p is a known token purpose.
func ValidPurpose(p Purpose) bool {
	switch p {
	case CredentialFetchPurpose, ProductFetchPurpose:
		return true
	}
	return false
}
