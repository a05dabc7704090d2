// Package http provides HTTP handlers for the allocation operations: claims,
// slot admission, releases, and single-use token redemption.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/handoff/internal/allocation/http/dto"
	allocationUseCase "github.com/allisson/handoff/internal/allocation/usecase"
	apperrors "github.com/allisson/handoff/internal/errors"
	"github.com/allisson/handoff/internal/httputil"
	ledgerDomain "github.com/allisson/handoff/internal/ledger/domain"
	poolDomain "github.com/allisson/handoff/internal/pool/domain"
	customValidation "github.com/allisson/handoff/internal/validation"
)

// AllocationHandler handles HTTP requests for allocation operations.
type AllocationHandler struct {
	allocationUseCase allocationUseCase.AllocationUseCase
	logger            *slog.Logger
}

// NewAllocationHandler creates a new allocation handler with required dependencies.
func NewAllocationHandler(
	useCase allocationUseCase.AllocationUseCase,
	logger *slog.Logger,
) *AllocationHandler {
	return &AllocationHandler{
		allocationUseCase: useCase,
		logger:            logger,
	}
}

// ClaimHandler claims credentials from a partition for the calling subject.
// POST /v1/credentials/claim - Requires X-Subject-Id.
// Returns 201 Created with one single-use token per claimed credential, or
// 409 Conflict when the partition cannot satisfy the full count.
func (h *AllocationHandler) ClaimHandler(c *gin.Context) {
	subject, ok := GetSubject(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.ClaimCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	output, err := h.allocationUseCase.ClaimCredentials(
		c.Request.Context(),
		subject,
		poolDomain.Partition(req.Partition),
		req.Count,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapClaimOutputToResponse(output))
}

// ReleaseCredentialHandler returns a credential to its partition's unassigned set.
// POST /v1/credentials/:id/release - Requires X-Subject-Id.
// Returns 204 No Content, or 409 Conflict when the credential is already released.
func (h *AllocationHandler) ReleaseCredentialHandler(c *gin.Context) {
	credentialID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	if err := h.allocationUseCase.ReleaseCredential(c.Request.Context(), credentialID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// ChangePartitionHandler moves an unassigned credential to another partition.
// PATCH /v1/credentials/:id/partition - Requires X-Subject-Id.
// Returns 204 No Content, or 422 when the credential is currently assigned.
func (h *AllocationHandler) ChangePartitionHandler(c *gin.Context) {
	credentialID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	var req dto.ChangePartitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	err := h.allocationUseCase.ChangeCredentialPartition(
		c.Request.Context(),
		credentialID,
		poolDomain.Partition(req.Partition),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// ReleaseAllForSubjectHandler releases every credential held by a subject.
// DELETE /v1/subjects/:id/credentials - Requires X-Subject-Id.
// Refused unless the release-on-subject-delete policy is enabled; with the
// policy off the response reports zero released credentials.
func (h *AllocationHandler) ReleaseAllForSubjectHandler(c *gin.Context) {
	subject, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	released, err := h.allocationUseCase.ReleaseAllForSubject(c.Request.Context(), subject)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ReleaseAllResponse{Released: released})
}

// AcquireSlotHandler asks admission to a product for the calling subject.
// POST /v1/slots/acquire - Requires X-Subject-Id.
// Returns 201 Created on grant with a single-use payload token, or 200 OK with
// status "wait" when the product is at its concurrency ceiling.
func (h *AllocationHandler) AcquireSlotHandler(c *gin.Context) {
	subject, ok := GetSubject(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.AcquireSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid product_id: %w", err), h.logger)
		return
	}

	output, err := h.allocationUseCase.AcquireSlot(c.Request.Context(), subject, productID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	status := http.StatusCreated
	if !output.Granted {
		status = http.StatusOK
	}
	c.JSON(status, dto.MapAcquireSlotOutputToResponse(output))
}

// ReleaseSlotHandler releases a granted slot with the reported outcome.
// POST /v1/slots/:id/release - Requires X-Subject-Id.
// Returns 204 No Content, or 409 Conflict when the slot already left granted.
func (h *AllocationHandler) ReleaseSlotHandler(c *gin.Context) {
	slotID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	var req dto.ReleaseSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	err := h.allocationUseCase.ReleaseSlot(
		c.Request.Context(),
		slotID,
		ledgerDomain.Outcome(req.Outcome),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// CredentialHandoffHandler redeems a credential-fetch token for its payload.
// GET /v1/handoff/credential - Requires Authorization: Bearer <token>.
// Returns 200 OK with the decrypted payload exactly once per token; any
// invalid token gets the same opaque 401.
func (h *AllocationHandler) CredentialHandoffHandler(c *gin.Context) {
	plainToken, ok := bearerToken(c)
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrInvalidToken, h.logger)
		return
	}

	output, err := h.allocationUseCase.FetchCredentialPayload(c.Request.Context(), plainToken)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapFetchOutputToResponse(output))
}

// ProductHandoffHandler redeems a product-fetch token for its payload.
// GET /v1/handoff/product - Requires Authorization: Bearer <token>.
// The token's slot must still be granted; any failure gets the same opaque 401.
func (h *AllocationHandler) ProductHandoffHandler(c *gin.Context) {
	plainToken, ok := bearerToken(c)
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrInvalidToken, h.logger)
		return
	}

	output, err := h.allocationUseCase.FetchProductPayload(c.Request.Context(), plainToken)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapFetchOutputToResponse(output))
}

// parseIDParam extracts and validates the :id URL parameter. Writes the error
// response itself when the parameter is not a UUID.
func (h *AllocationHandler) parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid id parameter: %w", err), h.logger)
		return uuid.Nil, false
	}
	return id, true
}
