// Package http provides HTTP handlers for product catalog administration.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/handoff/internal/catalog/http/dto"
	catalogUseCase "github.com/allisson/handoff/internal/catalog/usecase"
	"github.com/allisson/handoff/internal/httputil"
	customValidation "github.com/allisson/handoff/internal/validation"
)

// ProductHandler handles HTTP requests for product catalog operations.
type ProductHandler struct {
	catalogUseCase catalogUseCase.CatalogUseCase
	logger         *slog.Logger
}

// NewProductHandler creates a new product handler with required dependencies.
func NewProductHandler(
	useCase catalogUseCase.CatalogUseCase,
	logger *slog.Logger,
) *ProductHandler {
	return &ProductHandler{
		catalogUseCase: useCase,
		logger:         logger,
	}
}

// CreateHandler creates a new product with a concurrency ceiling.
// POST /v1/products - Requires X-Subject-Id.
// Returns 201 Created with product metadata (payload excluded).
func (h *ProductHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	product, err := h.catalogUseCase.CreateProduct(
		c.Request.Context(),
		req.Name,
		req.MaxConcurrentSlots,
		req.Payload,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapProductToResponse(product))
}

// GetHandler retrieves a product by ID.
// GET /v1/products/:id - Requires X-Subject-Id.
// Returns 200 OK with product metadata (payload excluded).
func (h *ProductHandler) GetHandler(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid id parameter: %w", err), h.logger)
		return
	}

	product, err := h.catalogUseCase.Get(c.Request.Context(), productID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapProductToResponse(product))
}

// ListHandler retrieves products with pagination support.
// GET /v1/products?offset=0&limit=50 - Requires X-Subject-Id.
// Returns 200 OK with the paginated product list.
func (h *ProductHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	products, err := h.catalogUseCase.List(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapProductsToListResponse(products))
}
