package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/handoff/internal/errors"
	tokenDomain "github.com/allisson/handoff/internal/token/domain"
	tokenService "github.com/allisson/handoff/internal/token/service"
)

// tokenUseCase implements TokenUseCase.
type tokenUseCase struct {
	tokenRepo TokenRepository
	issuer    tokenService.Issuer
	logger    *slog.Logger
}

// NewTokenUseCase creates a new TokenUseCase with the provided dependencies.
func NewTokenUseCase(
	tokenRepo TokenRepository,
	issuer tokenService.Issuer,
	logger *slog.Logger,
) TokenUseCase {
	return &tokenUseCase{
		tokenRepo: tokenRepo,
		issuer:    issuer,
		logger:    logger,
	}
}

// Issue mints a new single-use token. Persists only the keyed hash plus expiry
// and returns the raw secret exactly once.
func (t *tokenUseCase) Issue(
	ctx context.Context,
	subject uuid.UUID,
	purpose tokenDomain.Purpose,
	ttl time.Duration,
) (*IssueOutput, error) {
	if subject == uuid.Nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "subject must not be empty")
	}
	if !tokenDomain.ValidPurpose(purpose) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown token purpose %q", purpose)
	}
	if ttl <= 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "ttl must be positive")
	}

	plainToken, tokenHash, err := t.issuer.Generate()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	token := &tokenDomain.Token{
		ID:        uuid.Must(uuid.NewV7()),
		TokenHash: tokenHash,
		Subject:   subject,
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := t.tokenRepo.Create(ctx, token); err != nil {
		return nil, err
	}

	return &IssueOutput{
		PlainToken: plainToken,
		Token:      token,
	}, nil
}

// ValidateAndConsume performs the atomic check-and-set on a presented raw
// secret. The row lock taken by GetByHashForUpdate guarantees that two
// simultaneous presentations of the same secret can never both succeed: the
// second transaction observes the consumed flag set by the first.
func (t *tokenUseCase) ValidateAndConsume(
	ctx context.Context,
	plainToken string,
) (*tokenDomain.Token, error) {
	tokenHash := t.issuer.Hash(plainToken)

	token, err := t.tokenRepo.GetByHashForUpdate(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, tokenDomain.ErrTokenNotFound) {
			return nil, t.reject(ctx, uuid.Nil, "not_found")
		}
		return nil, err
	}

	now := time.Now().UTC()

	if token.IsConsumed() {
		return nil, t.reject(ctx, token.ID, "already_consumed")
	}
	if token.IsExpired(now) {
		return nil, t.reject(ctx, token.ID, "expired")
	}

	if err := t.tokenRepo.MarkConsumed(ctx, token.ID, now); err != nil {
		return nil, err
	}

	token.ConsumedAt = &now
	return token, nil
}

// ReapExpired marks expired, unconsumed tokens as reaped. Expired tokens are
// already inert on every validation path; this only formalizes their state.
func (t *tokenUseCase) ReapExpired(ctx context.Context, limit int) (int64, error) {
	return t.tokenRepo.ReapExpired(ctx, time.Now().UTC(), limit)
}

// reject logs the specific rejection reason for operators and returns the
// opaque boundary error, so callers cannot distinguish why a token failed.
func (t *tokenUseCase) reject(ctx context.Context, tokenID uuid.UUID, reason string) error {
	if t.logger != nil {
		t.logger.WarnContext(ctx, "token rejected",
			slog.String("token_id", tokenID.String()),
			slog.String("reason", reason),
		)
	}
	return apperrors.ErrInvalidToken
}
