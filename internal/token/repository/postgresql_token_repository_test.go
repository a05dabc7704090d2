package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/handoff/internal/errors"
	tokenDomain "github.com/allisson/handoff/internal/token/domain"
)

func newToken() *tokenDomain.Token {
	now := time.Now().UTC()
	return &tokenDomain.Token{
		ID:        uuid.Must(uuid.NewV7()),
		TokenHash: "aabbcc",
		Subject:   uuid.Must(uuid.NewV7()),
		Purpose:   tokenDomain.CredentialFetchPurpose,
		ExpiresAt: now.Add(30 * time.Minute),
		CreatedAt: now,
	}
}

func TestPostgreSQLTokenRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	token := newToken()
	mock.ExpectExec(`INSERT INTO tokens`).
		WithArgs(
			token.ID, token.TokenHash, token.Subject, token.Purpose,
			token.ExpiresAt, nil, nil, token.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgreSQLTokenRepository(db)
	err = repo.Create(context.Background(), token)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLTokenRepository_GetByHashForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	token := newToken()
	columns := []string{
		"id", "token_hash", "subject", "purpose",
		"expires_at", "consumed_at", "reaped_at", "created_at",
	}

	// Lookup must take a row lock so concurrent consumes serialize
	mock.ExpectQuery(`SELECT .+ FROM tokens WHERE token_hash = \$1\s+FOR UPDATE`).
		WithArgs(token.TokenHash).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			token.ID, token.TokenHash, token.Subject, token.Purpose,
			token.ExpiresAt, nil, nil, token.CreatedAt,
		))

	repo := NewPostgreSQLTokenRepository(db)
	got, err := repo.GetByHashForUpdate(context.Background(), token.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, token.ID, got.ID)
	assert.Equal(t, token.Subject, got.Subject)
	assert.False(t, got.IsConsumed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLTokenRepository_GetByHashForUpdate_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM tokens`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewPostgreSQLTokenRepository(db)
	got, err := repo.GetByHashForUpdate(context.Background(), "missing")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, tokenDomain.ErrTokenNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLTokenRepository_MarkConsumed(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	tokenID := uuid.Must(uuid.NewV7())
	consumedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE tokens SET consumed_at = \$1 WHERE id = \$2 AND consumed_at IS NULL`).
		WithArgs(consumedAt, tokenID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgreSQLTokenRepository(db)
	err = repo.MarkConsumed(context.Background(), tokenID, consumedAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLTokenRepository_MarkConsumed_AlreadyConsumed(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	tokenID := uuid.Must(uuid.NewV7())
	consumedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE tokens SET consumed_at`).
		WithArgs(consumedAt, tokenID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgreSQLTokenRepository(db)
	err = repo.MarkConsumed(context.Background(), tokenID, consumedAt)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLTokenRepository_ReapExpired(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()

	// Reap skips rows locked by in-flight validations
	mock.ExpectExec(`UPDATE tokens SET reaped_at = \$1\s+WHERE id IN \([\s\S]+FOR UPDATE SKIP LOCKED`).
		WithArgs(now, 100).
		WillReturnResult(sqlmock.NewResult(0, 7))

	repo := NewPostgreSQLTokenRepository(db)
	reaped, err := repo.ReapExpired(context.Background(), now, 100)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), reaped)
	assert.NoError(t, mock.ExpectationsWereMet())
}
