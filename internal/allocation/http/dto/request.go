// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/handoff/internal/validation"
)

// ClaimCredentialsRequest contains the parameters for an all-or-nothing
// credential claim. The subject comes from the identity header, not the body.
type ClaimCredentialsRequest struct {
	Partition string `json:"partition" binding:"required"`
	Count     int    `json:"count" binding:"required"`
}

// Validate checks if the claim request is valid.
func (r *ClaimCredentialsRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Partition,
			validation.Required,
			customValidation.Partition,
		),
		validation.Field(&r.Count,
			validation.Required,
			validation.Min(1),
			validation.Max(100),
		),
	)
}

// ChangePartitionRequest contains the target partition for an unassigned
// credential. The credential ID is extracted from the URL parameter.
type ChangePartitionRequest struct {
	Partition string `json:"partition" binding:"required"`
}

// Validate checks if the change partition request is valid.
func (r *ChangePartitionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Partition,
			validation.Required,
			customValidation.Partition,
		),
	)
}

// AcquireSlotRequest contains the product a subject asks admission to.
type AcquireSlotRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

// Validate checks if the acquire slot request is valid.
func (r *AcquireSlotRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProductID,
			validation.Required,
			customValidation.UUIDString,
		),
	)
}

// ReleaseSlotRequest contains the outcome of a voluntary slot release.
// The slot ID is extracted from the URL parameter.
type ReleaseSlotRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

// Validate checks if the release slot request is valid.
func (r *ReleaseSlotRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Outcome,
			validation.Required,
			customValidation.ReleaseOutcome,
		),
	)
}
