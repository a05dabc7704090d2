// Package usecase implements business logic for the product catalog.
package usecase

import (
	"context"

	"github.com/google/uuid"

	catalogDomain "github.com/allisson/handoff/internal/catalog/domain"
)

// ProductRepository defines product persistence operations.
type ProductRepository interface {
	// Create inserts a new product.
	Create(ctx context.Context, product *catalogDomain.Product) error

	// Get retrieves a product by ID. Returns
	// catalogDomain.ErrProductNotFound if no product matches.
	Get(ctx context.Context, productID uuid.UUID) (*catalogDomain.Product, error)

	// GetForUpdate retrieves a product by ID under a row lock. The ledger
	// acquires this lock to serialize slot admission per product.
	GetForUpdate(ctx context.Context, productID uuid.UUID) (*catalogDomain.Product, error)

	// List retrieves products, oldest first, with pagination.
	List(ctx context.Context, offset, limit int) ([]*catalogDomain.Product, error)
}

// CatalogUseCase defines the product catalog operations.
type CatalogUseCase interface {
	// CreateProduct encrypts the plaintext payload and stores a new product
	// with the given concurrency ceiling.
	CreateProduct(
		ctx context.Context,
		name string,
		maxConcurrentSlots int,
		payload []byte,
	) (*catalogDomain.Product, error)

	// Get retrieves a product by ID.
	Get(ctx context.Context, productID uuid.UUID) (*catalogDomain.Product, error)

	// List retrieves products with pagination.
	List(ctx context.Context, offset, limit int) ([]*catalogDomain.Product, error)
}
