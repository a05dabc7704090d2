// Package repository provides data persistence implementations for the product
// catalog.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	catalogDomain "github.com/allisson/handoff/internal/catalog/domain"
	"github.com/allisson/handoff/internal/database"
	apperrors "github.com/allisson/handoff/internal/errors"
)

// PostgreSQLProductRepository implements Product persistence for PostgreSQL.
// Uses native UUID types with transaction support via database.GetTx().
type PostgreSQLProductRepository struct {
	db *sql.DB
}

// NewPostgreSQLProductRepository creates a new PostgreSQL Product repository.
func NewPostgreSQLProductRepository(db *sql.DB) *PostgreSQLProductRepository {
	return &PostgreSQLProductRepository{db: db}
}

// Create inserts a new Product.
func (p *PostgreSQLProductRepository) Create(
	ctx context.Context,
	product *catalogDomain.Product,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO products (id, name, max_concurrent_slots, encrypted_payload, created_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.MaxConcurrentSlots,
		product.EncryptedPayload,
		product.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create product")
	}
	return nil
}

// Get retrieves a Product by ID. Returns ErrProductNotFound if missing.
func (p *PostgreSQLProductRepository) Get(
	ctx context.Context,
	productID uuid.UUID,
) (*catalogDomain.Product, error) {
	return p.get(ctx, productID, false)
}

// GetForUpdate retrieves a Product by ID under a row lock. The product row is
// the serialization point for slot admission: locking it makes the
// count-then-insert in the ledger race-free.
func (p *PostgreSQLProductRepository) GetForUpdate(
	ctx context.Context,
	productID uuid.UUID,
) (*catalogDomain.Product, error) {
	return p.get(ctx, productID, true)
}

func (p *PostgreSQLProductRepository) get(
	ctx context.Context,
	productID uuid.UUID,
	forUpdate bool,
) (*catalogDomain.Product, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, max_concurrent_slots, encrypted_payload, created_at
			  FROM products WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var product catalogDomain.Product

	err := querier.QueryRowContext(ctx, query, productID).Scan(
		&product.ID,
		&product.Name,
		&product.MaxConcurrentSlots,
		&product.EncryptedPayload,
		&product.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalogDomain.ErrProductNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get product")
	}

	return &product, nil
}

// List retrieves products ordered by created_at ascending with pagination.
// Returns an empty slice if none found.
func (p *PostgreSQLProductRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*catalogDomain.Product, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, max_concurrent_slots, encrypted_payload, created_at
			  FROM products
			  ORDER BY created_at ASC
			  OFFSET $1 LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list products")
	}
	defer rows.Close() //nolint:errcheck

	products := []*catalogDomain.Product{}
	for rows.Next() {
		var product catalogDomain.Product
		err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.MaxConcurrentSlots,
			&product.EncryptedPayload,
			&product.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan product")
		}
		products = append(products, &product)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate products")
	}

	return products, nil
}
