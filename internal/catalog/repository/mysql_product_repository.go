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

// MySQLProductRepository implements Product persistence for MySQL.
// Uses BINARY(16) for UUIDs with transaction support via database.GetTx().
type MySQLProductRepository struct {
	db *sql.DB
}

// NewMySQLProductRepository creates a new MySQL Product repository.
func NewMySQLProductRepository(db *sql.DB) *MySQLProductRepository {
	return &MySQLProductRepository{db: db}
}

// Create inserts a new Product using BINARY(16) for UUIDs.
func (m *MySQLProductRepository) Create(
	ctx context.Context,
	product *catalogDomain.Product,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO products (id, name, max_concurrent_slots, encrypted_payload, created_at)
			  VALUES (?, ?, ?, ?, ?)`

	id, err := product.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal product id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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
func (m *MySQLProductRepository) Get(
	ctx context.Context,
	productID uuid.UUID,
) (*catalogDomain.Product, error) {
	return m.get(ctx, productID, false)
}

// GetForUpdate retrieves a Product by ID under a row lock, serializing slot
// admission for the product.
func (m *MySQLProductRepository) GetForUpdate(
	ctx context.Context,
	productID uuid.UUID,
) (*catalogDomain.Product, error) {
	return m.get(ctx, productID, true)
}

func (m *MySQLProductRepository) get(
	ctx context.Context,
	productID uuid.UUID,
	forUpdate bool,
) (*catalogDomain.Product, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, name, max_concurrent_slots, encrypted_payload, created_at
			  FROM products WHERE id = ?`
	if forUpdate {
		query += " FOR UPDATE"
	}

	id, err := productID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal product id")
	}

	var product catalogDomain.Product
	var idBytes []byte

	err = querier.QueryRowContext(ctx, query, id).Scan(
		&idBytes,
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

	if product.ID, err = uuid.FromBytes(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal product id")
	}

	return &product, nil
}

// List retrieves products ordered by created_at ascending with pagination.
// Returns an empty slice if none found.
func (m *MySQLProductRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*catalogDomain.Product, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, name, max_concurrent_slots, encrypted_payload, created_at
			  FROM products
			  ORDER BY created_at ASC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list products")
	}
	defer rows.Close() //nolint:errcheck

	products := []*catalogDomain.Product{}
	for rows.Next() {
		var product catalogDomain.Product
		var idBytes []byte

		err := rows.Scan(
			&idBytes,
			&product.Name,
			&product.MaxConcurrentSlots,
			&product.EncryptedPayload,
			&product.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan product")
		}

		if product.ID, err = uuid.FromBytes(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal product id")
		}
		products = append(products, &product)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate products")
	}

	return products, nil
}
