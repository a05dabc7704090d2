// Package repository provides data persistence implementations for the slot
// ledger.
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

// PostgreSQLSlotRepository implements Slot persistence for PostgreSQL.
// Uses native UUID types with transaction support via database.GetTx().
type PostgreSQLSlotRepository struct {
	db *sql.DB
}

// NewPostgreSQLSlotRepository creates a new PostgreSQL Slot repository.
func NewPostgreSQLSlotRepository(db *sql.DB) *PostgreSQLSlotRepository {
	return &PostgreSQLSlotRepository{db: db}
}

// Create inserts a new Slot. The caller holds the product row lock, so the
// insert cannot race another admission for the same product.
func (p *PostgreSQLSlotRepository) Create(
	ctx context.Context,
	slot *ledgerDomain.Slot,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO slots (id, product_id, subject, status, expires_at, released_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		slot.ID,
		slot.ProductID,
		slot.Subject,
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
func (p *PostgreSQLSlotRepository) Get(
	ctx context.Context,
	slotID uuid.UUID,
) (*ledgerDomain.Slot, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, product_id, subject, status, expires_at, released_at, created_at
			  FROM slots WHERE id = $1`

	var slot ledgerDomain.Slot

	err := querier.QueryRowContext(ctx, query, slotID).Scan(
		&slot.ID,
		&slot.ProductID,
		&slot.Subject,
		&slot.Status,
		&slot.ExpiresAt,
		&slot.ReleasedAt,
		&slot.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledgerDomain.ErrSlotNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get slot")
	}

	return &slot, nil
}

// CountGranted counts the slots currently holding the product. Valid only
// while the caller holds the product row lock; otherwise the count can be
// stale by the time it is used.
func (p *PostgreSQLSlotRepository) CountGranted(
	ctx context.Context,
	productID uuid.UUID,
) (int, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM slots WHERE product_id = $1 AND status = $2`

	var count int
	err := querier.QueryRowContext(ctx, query, productID, ledgerDomain.GrantedStatus).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count granted slots")
	}

	return count, nil
}

// Finish moves a granted slot to a terminal status exactly once. The status
// guard means a second release finds zero rows. Returns ErrAlreadyReleased when
// the slot is already terminal, ErrSlotNotFound when it does not exist.
func (p *PostgreSQLSlotRepository) Finish(
	ctx context.Context,
	slotID uuid.UUID,
	status ledgerDomain.Status,
	releasedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE slots SET status = $1, released_at = $2
			  WHERE id = $3 AND status = $4`

	result, err := querier.ExecContext(ctx, query, status, releasedAt, slotID, ledgerDomain.GrantedStatus)
	if err != nil {
		return apperrors.Wrap(err, "failed to finish slot")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check slot finish result")
	}
	if rows == 0 {
		if _, err := p.Get(ctx, slotID); err != nil {
			return err
		}
		return apperrors.Wrap(apperrors.ErrAlreadyReleased, "slot is not granted")
	}

	return nil
}

// ListBySubject retrieves a subject's slots, newest first, with pagination.
func (p *PostgreSQLSlotRepository) ListBySubject(
	ctx context.Context,
	subject uuid.UUID,
	offset, limit int,
) ([]*ledgerDomain.Slot, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, product_id, subject, status, expires_at, released_at, created_at
			  FROM slots
			  WHERE subject = $1
			  ORDER BY created_at DESC
			  OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, subject, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list slots")
	}
	defer rows.Close() //nolint:errcheck

	slots := []*ledgerDomain.Slot{}
	for rows.Next() {
		var slot ledgerDomain.Slot
		err := rows.Scan(
			&slot.ID,
			&slot.ProductID,
			&slot.Subject,
			&slot.Status,
			&slot.ExpiresAt,
			&slot.ReleasedAt,
			&slot.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan slot")
		}
		slots = append(slots, &slot)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate slots")
	}

	return slots, nil
}

// ReapExpired moves granted slots whose lease ended at or before now into the
// reaped-expired state, skipping rows locked by in-flight releases, and
// returns how many were reaped.
func (p *PostgreSQLSlotRepository) ReapExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE slots SET status = $1, released_at = $2
			  WHERE id IN (
			  	SELECT id FROM slots
			  	WHERE status = $3 AND expires_at <= $4
			  	LIMIT $5
			  	FOR UPDATE SKIP LOCKED
			  )`

	result, err := querier.ExecContext(
		ctx,
		query,
		ledgerDomain.ReapedExpiredStatus,
		now,
		ledgerDomain.GrantedStatus,
		now,
		limit,
	)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to reap expired slots")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count reaped slots")
	}

	return rows, nil
}
