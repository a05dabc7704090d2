// Package repository provides data persistence implementations for pool credentials.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/handoff/internal/database"
	apperrors "github.com/allisson/handoff/internal/errors"
	poolDomain "github.com/allisson/handoff/internal/pool/domain"
)

// PostgreSQLCredentialRepository implements Credential persistence for PostgreSQL.
// Uses native UUID types with transaction support via database.GetTx().
type PostgreSQLCredentialRepository struct {
	db *sql.DB
}

// NewPostgreSQLCredentialRepository creates a new PostgreSQL Credential repository.
func NewPostgreSQLCredentialRepository(db *sql.DB) *PostgreSQLCredentialRepository {
	return &PostgreSQLCredentialRepository{db: db}
}

// Create inserts a new unassigned Credential.
func (p *PostgreSQLCredentialRepository) Create(
	ctx context.Context,
	credential *poolDomain.Credential,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO credentials (id, partition, encrypted_payload, assigned_to, assigned_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		credential.ID,
		credential.Partition,
		credential.EncryptedPayload,
		credential.AssignedTo,
		credential.AssignedAt,
		credential.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create credential")
	}
	return nil
}

// Get retrieves a Credential by ID. Returns ErrCredentialNotFound if missing.
func (p *PostgreSQLCredentialRepository) Get(
	ctx context.Context,
	credentialID uuid.UUID,
) (*poolDomain.Credential, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, partition, encrypted_payload, assigned_to, assigned_at, created_at
			  FROM credentials WHERE id = $1`

	var credential poolDomain.Credential

	err := querier.QueryRowContext(ctx, query, credentialID).Scan(
		&credential.ID,
		&credential.Partition,
		&credential.EncryptedPayload,
		&credential.AssignedTo,
		&credential.AssignedAt,
		&credential.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, poolDomain.ErrCredentialNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get credential")
	}

	return &credential, nil
}

// ClaimUnassigned atomically selects and assigns up to `count` unassigned
// credentials in the given partition. Rows locked by concurrent claims are
// skipped rather than waited on, so contending callers make forward progress
// against the remaining pool. Selection is oldest-created first to avoid
// starvation. Returns the claimed credentials; the caller enforces
// all-or-nothing by aborting the transaction if fewer than `count` came back.
func (p *PostgreSQLCredentialRepository) ClaimUnassigned(
	ctx context.Context,
	partition poolDomain.Partition,
	count int,
	subject uuid.UUID,
	assignedAt time.Time,
) ([]*poolDomain.Credential, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE credentials SET assigned_to = $1, assigned_at = $2
			  WHERE id IN (
			  	SELECT id FROM credentials
			  	WHERE partition = $3 AND assigned_to IS NULL
			  	ORDER BY created_at ASC
			  	LIMIT $4
			  	FOR UPDATE SKIP LOCKED
			  )
			  RETURNING id, partition, encrypted_payload, assigned_to, assigned_at, created_at`

	rows, err := querier.QueryContext(ctx, query, subject, assignedAt, partition, count)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim credentials")
	}
	defer rows.Close() //nolint:errcheck

	var credentials []*poolDomain.Credential
	for rows.Next() {
		var credential poolDomain.Credential
		err := rows.Scan(
			&credential.ID,
			&credential.Partition,
			&credential.EncryptedPayload,
			&credential.AssignedTo,
			&credential.AssignedAt,
			&credential.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan claimed credential")
		}
		credentials = append(credentials, &credential)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate claimed credentials")
	}

	return credentials, nil
}

// Release clears the assignment atomically and idempotently. Returns
// ErrAlreadyReleased if the credential exists but is not assigned, or
// ErrCredentialNotFound if it does not exist.
func (p *PostgreSQLCredentialRepository) Release(
	ctx context.Context,
	credentialID uuid.UUID,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE credentials SET assigned_to = NULL, assigned_at = NULL
			  WHERE id = $1 AND assigned_to IS NOT NULL`

	result, err := querier.ExecContext(ctx, query, credentialID)
	if err != nil {
		return apperrors.Wrap(err, "failed to release credential")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check credential release result")
	}
	if rows == 0 {
		if _, err := p.Get(ctx, credentialID); err != nil {
			return err
		}
		return apperrors.ErrAlreadyReleased
	}

	return nil
}

// ReleaseAllForSubject clears every assignment held by the subject and returns
// how many credentials were released. Only invoked when the subject-delete
// release policy is explicitly enabled.
func (p *PostgreSQLCredentialRepository) ReleaseAllForSubject(
	ctx context.Context,
	subject uuid.UUID,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE credentials SET assigned_to = NULL, assigned_at = NULL
			  WHERE assigned_to = $1`

	result, err := querier.ExecContext(ctx, query, subject)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to release credentials for subject")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count released credentials")
	}

	return rows, nil
}

// UpdatePartition retags an unassigned credential. Returns
// ErrCredentialAssigned if the credential is currently assigned (partition may
// only change while unassigned), or ErrCredentialNotFound if it does not exist.
func (p *PostgreSQLCredentialRepository) UpdatePartition(
	ctx context.Context,
	credentialID uuid.UUID,
	partition poolDomain.Partition,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE credentials SET partition = $1
			  WHERE id = $2 AND assigned_to IS NULL`

	result, err := querier.ExecContext(ctx, query, partition, credentialID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update credential partition")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check partition update result")
	}
	if rows == 0 {
		credential, err := p.Get(ctx, credentialID)
		if err != nil {
			return err
		}
		if credential.IsAssigned() {
			return poolDomain.ErrCredentialAssigned
		}
	}

	return nil
}

// List retrieves credentials in a partition ordered by created_at ascending
// with pagination. Returns an empty slice if none found.
func (p *PostgreSQLCredentialRepository) List(
	ctx context.Context,
	partition poolDomain.Partition,
	offset, limit int,
) ([]*poolDomain.Credential, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, partition, encrypted_payload, assigned_to, assigned_at, created_at
			  FROM credentials
			  WHERE partition = $1
			  ORDER BY created_at ASC
			  OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, partition, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials")
	}
	defer rows.Close() //nolint:errcheck

	credentials := []*poolDomain.Credential{}
	for rows.Next() {
		var credential poolDomain.Credential
		err := rows.Scan(
			&credential.ID,
			&credential.Partition,
			&credential.EncryptedPayload,
			&credential.AssignedTo,
			&credential.AssignedAt,
			&credential.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan credential")
		}
		credentials = append(credentials, &credential)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate credentials")
	}

	return credentials, nil
}

// CountUnassigned returns how many credentials in the partition are currently
// unassigned.
func (p *PostgreSQLCredentialRepository) CountUnassigned(
	ctx context.Context,
	partition poolDomain.Partition,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM credentials WHERE partition = $1 AND assigned_to IS NULL`

	var count int64
	if err := querier.QueryRowContext(ctx, query, partition).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count unassigned credentials")
	}

	return count, nil
}
