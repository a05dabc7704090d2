// Package repository provides data persistence implementations for handoff tokens.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/handoff/internal/database"
	apperrors "github.com/allisson/handoff/internal/errors"
	tokenDomain "github.com/allisson/handoff/internal/token/domain"
)

// PostgreSQLTokenRepository implements Token persistence for PostgreSQL.
// Uses native UUID types with transaction support via database.GetTx().
type PostgreSQLTokenRepository struct {
	db *sql.DB
}

// NewPostgreSQLTokenRepository creates a new PostgreSQL Token repository.
func NewPostgreSQLTokenRepository(db *sql.DB) *PostgreSQLTokenRepository {
	return &PostgreSQLTokenRepository{db: db}
}

// Create inserts a new Token. Only the keyed hash is persisted, never the raw secret.
func (p *PostgreSQLTokenRepository) Create(ctx context.Context, token *tokenDomain.Token) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO tokens (id, token_hash, subject, purpose, expires_at, consumed_at, reaped_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(
		ctx,
		query,
		token.ID,
		token.TokenHash,
		token.Subject,
		token.Purpose,
		token.ExpiresAt,
		token.ConsumedAt,
		token.ReapedAt,
		token.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create token")
	}
	return nil
}

// GetByHashForUpdate retrieves a Token by its keyed hash under a row lock, so a
// concurrent presentation of the same raw secret serializes behind this
// transaction instead of racing the consumed flag. Returns ErrTokenNotFound if
// no token matches the hash.
func (p *PostgreSQLTokenRepository) GetByHashForUpdate(
	ctx context.Context,
	tokenHash string,
) (*tokenDomain.Token, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, token_hash, subject, purpose, expires_at, consumed_at, reaped_at, created_at
			  FROM tokens WHERE token_hash = $1
			  FOR UPDATE`

	var token tokenDomain.Token

	err := querier.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.TokenHash,
		&token.Subject,
		&token.Purpose,
		&token.ExpiresAt,
		&token.ConsumedAt,
		&token.ReapedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tokenDomain.ErrTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get token by hash")
	}

	return &token, nil
}

// MarkConsumed flips the consumed flag exactly once. The caller must hold the
// row lock from GetByHashForUpdate in the same transaction.
func (p *PostgreSQLTokenRepository) MarkConsumed(
	ctx context.Context,
	tokenID uuid.UUID,
	consumedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE tokens SET consumed_at = $1 WHERE id = $2 AND consumed_at IS NULL`

	result, err := querier.ExecContext(ctx, query, consumedAt, tokenID)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark token consumed")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check token consume result")
	}
	if rows == 0 {
		return apperrors.Wrap(apperrors.ErrConflict, "token already consumed")
	}

	return nil
}

// ReapExpired marks expired, unconsumed tokens as reaped, skipping rows locked
// by in-flight validations so reaping never blocks foreground traffic. Returns
// the number of tokens reaped.
func (p *PostgreSQLTokenRepository) ReapExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE tokens SET reaped_at = $1
			  WHERE id IN (
			  	SELECT id FROM tokens
			  	WHERE consumed_at IS NULL AND reaped_at IS NULL AND expires_at < $1
			  	ORDER BY expires_at ASC
			  	LIMIT $2
			  	FOR UPDATE SKIP LOCKED
			  )`

	result, err := querier.ExecContext(ctx, query, now, limit)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to reap expired tokens")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count reaped tokens")
	}

	return rows, nil
}
