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

// MySQLCredentialRepository implements Credential persistence for MySQL.
// Uses BINARY(16) for UUIDs with transaction support via database.GetTx().
// The partition column is backtick-quoted because PARTITION is a reserved word
// in MySQL.
type MySQLCredentialRepository struct {
	db *sql.DB
}

// NewMySQLCredentialRepository creates a new MySQL Credential repository.
func NewMySQLCredentialRepository(db *sql.DB) *MySQLCredentialRepository {
	return &MySQLCredentialRepository{db: db}
}

// scanCredential converts a scanned MySQL row into a domain Credential.
func scanMySQLCredential(
	idBytes []byte,
	partition string,
	payload []byte,
	assignedTo []byte,
	assignedAt *time.Time,
	createdAt time.Time,
) (*poolDomain.Credential, error) {
	credential := &poolDomain.Credential{
		Partition:        poolDomain.Partition(partition),
		EncryptedPayload: payload,
		AssignedAt:       assignedAt,
		CreatedAt:        createdAt,
	}

	id, err := uuid.FromBytes(idBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal credential id")
	}
	credential.ID = id

	if assignedTo != nil {
		subject, err := uuid.FromBytes(assignedTo)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal subject id")
		}
		credential.AssignedTo = &subject
	}

	return credential, nil
}

// Create inserts a new unassigned Credential using BINARY(16) for UUIDs.
func (m *MySQLCredentialRepository) Create(
	ctx context.Context,
	credential *poolDomain.Credential,
) error {
	querier := database.GetTx(ctx, m.db)

	query := "INSERT INTO credentials (id, `partition`, encrypted_payload, assigned_to, assigned_at, created_at) " +
		"VALUES (?, ?, ?, ?, ?, ?)"

	id, err := credential.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	var assignedTo []byte
	if credential.AssignedTo != nil {
		if assignedTo, err = credential.AssignedTo.MarshalBinary(); err != nil {
			return apperrors.Wrap(err, "failed to marshal subject id")
		}
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		credential.Partition,
		credential.EncryptedPayload,
		assignedTo,
		credential.AssignedAt,
		credential.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create credential")
	}
	return nil
}

// Get retrieves a Credential by ID. Returns ErrCredentialNotFound if missing.
func (m *MySQLCredentialRepository) Get(
	ctx context.Context,
	credentialID uuid.UUID,
) (*poolDomain.Credential, error) {
	querier := database.GetTx(ctx, m.db)

	query := "SELECT id, `partition`, encrypted_payload, assigned_to, assigned_at, created_at " +
		"FROM credentials WHERE id = ?"

	id, err := credentialID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal credential id")
	}

	var idBytes, assignedTo, payload []byte
	var partition string
	var assignedAt *time.Time
	var createdAt time.Time

	err = querier.QueryRowContext(ctx, query, id).Scan(
		&idBytes, &partition, &payload, &assignedTo, &assignedAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, poolDomain.ErrCredentialNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get credential")
	}

	return scanMySQLCredential(idBytes, partition, payload, assignedTo, assignedAt, createdAt)
}

// ClaimUnassigned atomically selects and assigns up to `count` unassigned
// credentials in the given partition. Rows locked by concurrent claims are
// skipped via SKIP LOCKED; selection is oldest-created first. MySQL cannot
// update rows selected from the same table in a subquery, so the rows are
// locked first and updated by id within the same transaction.
func (m *MySQLCredentialRepository) ClaimUnassigned(
	ctx context.Context,
	partition poolDomain.Partition,
	count int,
	subject uuid.UUID,
	assignedAt time.Time,
) ([]*poolDomain.Credential, error) {
	querier := database.GetTx(ctx, m.db)

	selectQuery := "SELECT id, `partition`, encrypted_payload, created_at FROM credentials " +
		"WHERE `partition` = ? AND assigned_to IS NULL " +
		"ORDER BY created_at ASC LIMIT ? " +
		"FOR UPDATE SKIP LOCKED"

	rows, err := querier.QueryContext(ctx, selectQuery, partition, count)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to select claimable credentials")
	}
	defer rows.Close() //nolint:errcheck

	var credentials []*poolDomain.Credential
	for rows.Next() {
		var idBytes, payload []byte
		var partitionCol string
		var createdAt time.Time
		if err := rows.Scan(&idBytes, &partitionCol, &payload, &createdAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan claimable credential")
		}
		credential, err := scanMySQLCredential(idBytes, partitionCol, payload, nil, nil, createdAt)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate claimable credentials")
	}

	subjectBytes, err := subject.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal subject id")
	}

	for _, credential := range credentials {
		id, err := credential.ID.MarshalBinary()
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to marshal credential id")
		}

		updateQuery := `UPDATE credentials SET assigned_to = ?, assigned_at = ? WHERE id = ?`
		if _, err := querier.ExecContext(ctx, updateQuery, subjectBytes, assignedAt, id); err != nil {
			return nil, apperrors.Wrap(err, "failed to assign claimed credential")
		}

		subjectCopy := subject
		assignedAtCopy := assignedAt
		credential.AssignedTo = &subjectCopy
		credential.AssignedAt = &assignedAtCopy
	}

	return credentials, nil
}

// Release clears the assignment atomically and idempotently. Returns
// ErrAlreadyReleased if the credential exists but is not assigned, or
// ErrCredentialNotFound if it does not exist.
func (m *MySQLCredentialRepository) Release(
	ctx context.Context,
	credentialID uuid.UUID,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE credentials SET assigned_to = NULL, assigned_at = NULL
			  WHERE id = ? AND assigned_to IS NOT NULL`

	id, err := credentialID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	result, err := querier.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to release credential")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check credential release result")
	}
	if rows == 0 {
		if _, err := m.Get(ctx, credentialID); err != nil {
			return err
		}
		return apperrors.ErrAlreadyReleased
	}

	return nil
}

// ReleaseAllForSubject clears every assignment held by the subject and returns
// how many credentials were released.
func (m *MySQLCredentialRepository) ReleaseAllForSubject(
	ctx context.Context,
	subject uuid.UUID,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE credentials SET assigned_to = NULL, assigned_at = NULL
			  WHERE assigned_to = ?`

	subjectBytes, err := subject.MarshalBinary()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to marshal subject id")
	}

	result, err := querier.ExecContext(ctx, query, subjectBytes)
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
// ErrCredentialAssigned if the credential is currently assigned, or
// ErrCredentialNotFound if it does not exist.
func (m *MySQLCredentialRepository) UpdatePartition(
	ctx context.Context,
	credentialID uuid.UUID,
	partition poolDomain.Partition,
) error {
	querier := database.GetTx(ctx, m.db)

	query := "UPDATE credentials SET `partition` = ? WHERE id = ? AND assigned_to IS NULL"

	id, err := credentialID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal credential id")
	}

	result, err := querier.ExecContext(ctx, query, partition, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update credential partition")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check partition update result")
	}
	if rows == 0 {
		credential, err := m.Get(ctx, credentialID)
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
func (m *MySQLCredentialRepository) List(
	ctx context.Context,
	partition poolDomain.Partition,
	offset, limit int,
) ([]*poolDomain.Credential, error) {
	querier := database.GetTx(ctx, m.db)

	query := "SELECT id, `partition`, encrypted_payload, assigned_to, assigned_at, created_at " +
		"FROM credentials WHERE `partition` = ? " +
		"ORDER BY created_at ASC LIMIT ? OFFSET ?"

	rows, err := querier.QueryContext(ctx, query, partition, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list credentials")
	}
	defer rows.Close() //nolint:errcheck

	credentials := []*poolDomain.Credential{}
	for rows.Next() {
		var idBytes, assignedTo, payload []byte
		var partitionCol string
		var assignedAt *time.Time
		var createdAt time.Time

		err := rows.Scan(&idBytes, &partitionCol, &payload, &assignedTo, &assignedAt, &createdAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan credential")
		}

		credential, err := scanMySQLCredential(idBytes, partitionCol, payload, assignedTo, assignedAt, createdAt)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate credentials")
	}

	return credentials, nil
}

// CountUnassigned returns how many credentials in the partition are currently
// unassigned.
func (m *MySQLCredentialRepository) CountUnassigned(
	ctx context.Context,
	partition poolDomain.Partition,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := "SELECT COUNT(*) FROM credentials WHERE `partition` = ? AND assigned_to IS NULL"

	var count int64
	if err := querier.QueryRowContext(ctx, query, partition).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count unassigned credentials")
	}

	return count, nil
}
