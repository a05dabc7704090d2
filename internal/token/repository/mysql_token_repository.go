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

// MySQLTokenRepository implements Token persistence for MySQL.
// Uses BINARY(16) for UUIDs with transaction support via database.GetTx().
type MySQLTokenRepository struct {
	db *sql.DB
}

// NewMySQLTokenRepository creates a new MySQL Token repository.
func NewMySQLTokenRepository(db *sql.DB) *MySQLTokenRepository {
	return &MySQLTokenRepository{db: db}
}

// Create inserts a new Token using BINARY(16) for UUIDs. Only the keyed hash is
// persisted, never the raw secret.
func (m *MySQLTokenRepository) Create(ctx context.Context, token *tokenDomain.Token) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO tokens (id, token_hash, subject, purpose, expires_at, consumed_at, reaped_at, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := token.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token id")
	}

	subject, err := token.Subject.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal subject id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		token.TokenHash,
		subject,
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
// transaction. Returns ErrTokenNotFound if no token matches the hash.
func (m *MySQLTokenRepository) GetByHashForUpdate(
	ctx context.Context,
	tokenHash string,
) (*tokenDomain.Token, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, token_hash, subject, purpose, expires_at, consumed_at, reaped_at, created_at
			  FROM tokens WHERE token_hash = ?
			  FOR UPDATE`

	var token tokenDomain.Token
	var idBytes, subjBytes []byte

	err := querier.QueryRowContext(ctx, query, tokenHash).Scan(
		&idBytes,
		&token.TokenHash,
		&subjBytes,
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

	if token.ID, err = uuid.FromBytes(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal token id")
	}
	if token.Subject, err = uuid.FromBytes(subjBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal subject id")
	}

	return &token, nil
}

// MarkConsumed flips the consumed flag exactly once. The caller must hold the
// row lock from GetByHashForUpdate in the same transaction.
func (m *MySQLTokenRepository) MarkConsumed(
	ctx context.Context,
	tokenID uuid.UUID,
	consumedAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE tokens SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`

	id, err := tokenID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token id")
	}

	result, err := querier.ExecContext(ctx, query, consumedAt, id)
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

// ReapExpired marks expired, unconsumed tokens as reaped. MySQL cannot update a
// table it selects from in a subquery, so the expired rows are locked with SKIP
// LOCKED first and updated by id in a second statement within the same
// transaction. Returns the number of tokens reaped.
func (m *MySQLTokenRepository) ReapExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	selectQuery := `SELECT id FROM tokens
					WHERE consumed_at IS NULL AND reaped_at IS NULL AND expires_at < ?
					ORDER BY expires_at ASC
					LIMIT ?
					FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, selectQuery, now, limit)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to select expired tokens")
	}
	defer rows.Close() //nolint:errcheck

	var ids [][]byte
	for rows.Next() {
		var id []byte
		if err := rows.Scan(&id); err != nil {
			return 0, apperrors.Wrap(err, "failed to scan expired token id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, apperrors.Wrap(err, "failed to iterate expired tokens")
	}

	var reaped int64
	for _, id := range ids {
		result, err := querier.ExecContext(ctx, `UPDATE tokens SET reaped_at = ? WHERE id = ?`, now, id)
		if err != nil {
			return reaped, apperrors.Wrap(err, "failed to reap expired token")
		}
		count, err := result.RowsAffected()
		if err != nil {
			return reaped, apperrors.Wrap(err, "failed to count reaped token")
		}
		reaped += count
	}

	return reaped, nil
}
