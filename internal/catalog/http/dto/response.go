package dto

import (
	"time"

	catalogDomain "github.com/allisson/handoff/internal/catalog/domain"
)

// ProductResponse represents a product in API responses. The payload is never
// included; it is only delivered through a consumed handoff token.
type ProductResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	MaxConcurrentSlots int       `json:"max_concurrent_slots"`
	CreatedAt          time.Time `json:"created_at"`
}

// ProductListResponse represents a paginated product list.
type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
}

// MapProductToResponse converts a domain product to an API response.
func MapProductToResponse(product *catalogDomain.Product) ProductResponse {
	return ProductResponse{
		ID:                 product.ID.String(),
		Name:               product.Name,
		MaxConcurrentSlots: product.MaxConcurrentSlots,
		CreatedAt:          product.CreatedAt,
	}
}

// MapProductsToListResponse converts domain products to a list response.
func MapProductsToListResponse(products []*catalogDomain.Product) ProductListResponse {
	items := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		items = append(items, MapProductToResponse(product))
	}
	return ProductListResponse{Products: items}
}
