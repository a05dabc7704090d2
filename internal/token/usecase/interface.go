// Package usecase implements business logic for single-use handoff tokens.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	tokenDomain "github.com/allisson/handoff/internal/token/domain"
)

// TokenRepository defines token persistence operations. Mutating operations are
// expected to run inside a transaction opened by the caller (the allocation
// coordinator or the reaper); the repository picks it up from the context.
type TokenRepository interface {
	// Create inserts a new token record (keyed hash only, never the raw secret).
	Create(ctx context.Context, token *tokenDomain.Token) error

	// GetByHashForUpdate retrieves a token by its keyed hash under a row lock.
	// Returns tokenDomain.ErrTokenNotFound if no token matches.
	GetByHashForUpdate(ctx context.Context, tokenHash string) (*tokenDomain.Token, error)

	// MarkConsumed flips the consumed flag exactly once for a row the caller
	// already holds locked.
	MarkConsumed(ctx context.Context, tokenID uuid.UUID, consumedAt time.Time) error

	// ReapExpired marks expired unconsumed tokens as reaped, skipping locked
	// rows, and returns how many were reaped.
	ReapExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// TokenUseCase defines the Token Issuer operations.
type TokenUseCase interface {
	// Issue mints a new single-use token bound to subject and purpose. The raw
	// secret in the output is returned exactly once and never stored.
	Issue(
		ctx context.Context,
		subject uuid.UUID,
		purpose tokenDomain.Purpose,
		ttl time.Duration,
	) (*IssueOutput, error)

	// ValidateAndConsume atomically checks and consumes a presented raw secret.
	// At most one call per token ever succeeds; every failure (not found,
	// expired, already consumed) surfaces as the opaque errors.ErrInvalidToken
	// while the specific reason is logged for operators.
	ValidateAndConsume(ctx context.Context, plainToken string) (*tokenDomain.Token, error)

	// ReapExpired formalizes expired tokens as reaped. Called by the reaper.
	ReapExpired(ctx context.Context, limit int) (int64, error)
}

// IssueOutput carries a freshly minted token. PlainToken must be handed to the
// caller immediately; it is not retrievable afterward.
type IssueOutput struct {
	PlainToken string
	Token      *tokenDomain.Token
}
