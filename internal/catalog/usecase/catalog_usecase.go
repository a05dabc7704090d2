package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	catalogDomain "github.com/allisson/handoff/internal/catalog/domain"
	cryptoService "github.com/allisson/handoff/internal/crypto/service"
	apperrors "github.com/allisson/handoff/internal/errors"
)

// catalogUseCase implements CatalogUseCase.
type catalogUseCase struct {
	productRepo   ProductRepository
	payloadCipher cryptoService.PayloadCipher
}

// NewCatalogUseCase creates a new CatalogUseCase with the provided dependencies.
func NewCatalogUseCase(
	productRepo ProductRepository,
	payloadCipher cryptoService.PayloadCipher,
) CatalogUseCase {
	return &catalogUseCase{
		productRepo:   productRepo,
		payloadCipher: payloadCipher,
	}
}

// CreateProduct encrypts the payload and stores a new product.
func (c *catalogUseCase) CreateProduct(
	ctx context.Context,
	name string,
	maxConcurrentSlots int,
	payload []byte,
) (*catalogDomain.Product, error) {
	if name == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "name must not be empty")
	}
	if maxConcurrentSlots < 1 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "max concurrent slots must be at least 1")
	}
	if len(payload) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "payload must not be empty")
	}

	encrypted, err := c.payloadCipher.Encrypt(ctx, payload)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt product payload")
	}

	product := &catalogDomain.Product{
		ID:                 uuid.Must(uuid.NewV7()),
		Name:               name,
		MaxConcurrentSlots: maxConcurrentSlots,
		EncryptedPayload:   encrypted,
		CreatedAt:          time.Now().UTC(),
	}

	if err := c.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// Get retrieves a product by ID.
func (c *catalogUseCase) Get(
	ctx context.Context,
	productID uuid.UUID,
) (*catalogDomain.Product, error) {
	return c.productRepo.Get(ctx, productID)
}

// List retrieves products with pagination.
func (c *catalogUseCase) List(
	ctx context.Context,
	offset, limit int,
) ([]*catalogDomain.Product, error) {
	return c.productRepo.List(ctx, offset, limit)
}
