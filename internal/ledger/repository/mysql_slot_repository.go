package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/handoff/internal/database"
	apperrors "github.com/allisson/handoff/internal/errors"
	ledgerDomain "github.com/allisson/handoff/internal/ledger/domain"
)

// MySQLSlotRepository implements Slot persistence for MySQL.
// Uses BINARY(16) for UUIDs with transaction support via database.GetTx().
type MySQLSlotRepository struct {
	db *sql.DB
}

// NewMySQLSlotRepository creates a new MySQL Slot repository.
func NewMySQLSlotRepository(db *sql.DB) *MySQLSlotRepository {
	return &MySQLSlotRepository{db: db}
}

func scanMySQLSlot(
	idBytes, productBytes, subjectBytes []byte,
	status string,
	expiresAt time.Time,
	releasedAt *time.Time,
	createdAt time.Time,
) (*ledgerDomain.Slot, error) {
	slot := &ledgerDomain.Slot{
		Status:     ledgerDomain.Status(status),
		ExpiresAt:  expiresAt,
		ReleasedAt: releasedAt,
		CreatedAt:  createdAt,
	}

	var err error
	if slot.ID, err = uuid.FromBytes(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal slot id")
	}
	if slot.ProductID, err = uuid.FromBytes(productBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal product id")
	}
	if slot.Subject, err = uuid.FromBytes(subjectBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal subject id")
	}

	return slot, nil
}

// Create inserts a new Slot using BINARY(16) for UUIDs. The caller holds the
// product row lock.
func (m *MySQLSlotRepository) Create(
	ctx context.Context,
	slot *ledgerDomain.Slot,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO slots (id, product_id, subject, status, expires_at, released_at, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	id, err := slot.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal slot id")
	}
	productID, err := slot.ProductID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal product id")
	}
	subject, err := slot.Subject.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal subject id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		productID,
		subject,
		slot.Status,
		slot.ExpiresAt,
		slot.ReleasedAt,
		slot.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create slot")
	}
	return nil
}

// Get retrieves a Slot by ID. Returns ErrSlotNotFound if missing.
func (m *MySQLSlotRepository) Get(
	ctx context.Context,
	slotID uuid.UUID,
) (*ledgerDomain.Slot, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, product_id, subject, status, expires_at, released_at, created_at
			  FROM slots WHERE id = ?`

	id, err := slotID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal slot id")
	}

	var idBytes, productBytes, subjectBytes []byte
	var status string
	var expiresAt, createdAt time.Time
	var releasedAt *time.Time

	err = querier.QueryRowContext(ctx, query, id).Scan(
		&idBytes, &productBytes, &subjectBytes, &status, &expiresAt, &releasedAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledgerDomain.ErrSlotNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get slot")
	}

	return scanMySQLSlot(idBytes, productBytes, subjectBytes, status, expiresAt, releasedAt, createdAt)
}

// CountGranted counts the slots currently holding the product. Valid only
// while the caller holds the product row lock.
func (m *MySQLSlotRepository) CountGranted(
	ctx context.Context,
	productID uuid.UUID,
) (int, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*) FROM slots WHERE product_id = ? AND status = ?`

	id, err := productID.MarshalBinary()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to marshal product id")
	}

	var count int
	err = querier.QueryRowContext(ctx, query, id, ledgerDomain.GrantedStatus).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count granted slots")
	}

	return count, nil
}

// Finish moves a granted slot to a terminal status exactly once. Returns
// ErrAlreadyReleased when the slot is already terminal, ErrSlotNotFound when
// it does not exist.
func (m *MySQLSlotRepository) Finish(
	ctx context.Context,
	slotID uuid.UUID,
	status ledgerDomain.Status,
	releasedAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE slots SET status = ?, released_at = ?
			  WHERE id = ? AND status = ?`

	id, err := slotID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal slot id")
	}

	result, err := querier.ExecContext(ctx, query, status, releasedAt, id, ledgerDomain.GrantedStatus)
	if err != nil {
		return apperrors.Wrap(err, "failed to finish slot")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check slot finish result")
	}
	if rows == 0 {
		if _, err := m.Get(ctx, slotID); err != nil {
			return err
		}
		return apperrors.Wrap(apperrors.ErrAlreadyReleased, "slot is not granted")
	}

	return nil
}

// ListBySubject retrieves a subject's slots, newest first, with pagination.
func (m *MySQLSlotRepository) ListBySubject(
	ctx context.Context,
	subject uuid.UUID,
	offset, limit int,
) ([]*ledgerDomain.Slot, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, product_id, subject, status, expires_at, released_at, created_at
			  FROM slots
			  WHERE subject = ?
			  ORDER BY created_at DESC
			  LIMIT ? OFFSET ?`

	subjectBytes, err := subject.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal subject id")
	}

	rows, err := querier.QueryContext(ctx, query, subjectBytes, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list slots")
	}
	defer rows.Close() //nolint:errcheck

	slots := []*ledgerDomain.Slot{}
	for rows.Next() {
		var idBytes, productBytes, subjBytes []byte
		var status string
		var expiresAt, createdAt time.Time
		var releasedAt *time.Time

		err := rows.Scan(&idBytes, &productBytes, &subjBytes, &status, &expiresAt, &releasedAt, &createdAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan slot")
		}

		slot, err := scanMySQLSlot(idBytes, productBytes, subjBytes, status, expiresAt, releasedAt, createdAt)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate slots")
	}

	return slots, nil
}

// ReapExpired moves granted slots whose lease ended at or before now into the
// reaped-expired state and returns how many were reaped. MySQL cannot update
// rows selected from the same table in a subquery, so the rows are locked
// first and updated by id within the same transaction.
func (m *MySQLSlotRepository) ReapExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	selectQuery := `SELECT id FROM slots
					WHERE status = ? AND expires_at <= ?
					LIMIT ?
					FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, selectQuery, ledgerDomain.GrantedStatus, now, limit)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to select expired slots")
	}
	defer rows.Close() //nolint:errcheck

	var ids [][]byte
	for rows.Next() {
		var id []byte
		if err := rows.Scan(&id); err != nil {
			return 0, apperrors.Wrap(err, "failed to scan expired slot id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, apperrors.Wrap(err, "failed to iterate expired slot ids")
	}

	var reaped int64
	for _, id := range ids {
		updateQuery := `UPDATE slots SET status = ?, released_at = ? WHERE id = ?`
		result, err := querier.ExecContext(ctx, updateQuery, ledgerDomain.ReapedExpiredStatus, now, id)
		if err != nil {
			return reaped, apperrors.Wrap(err, "failed to reap expired slot")
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return reaped, apperrors.Wrap(err, "failed to count reaped slot")
		}
		reaped += affected
	}

	return reaped, nil
}
