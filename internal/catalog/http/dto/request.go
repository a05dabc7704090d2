// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"
)

// CreateProductRequest contains the parameters for creating a product.
// Payload is base64 in transit and encrypted before it reaches the store.
type CreateProductRequest struct {
	Name               string `json:"name" binding:"required"`
	MaxConcurrentSlots int    `json:"max_concurrent_slots" binding:"required"`
	Payload            []byte `json:"payload" binding:"required"`
}

// Validate checks if the create product request is valid.
func (r *CreateProductRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			validation.Length(1, 255),
		),
		validation.Field(&r.MaxConcurrentSlots,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&r.Payload,
			validation.Required,
			validation.Length(1, 0), // At least 1 byte
		),
	)
}
