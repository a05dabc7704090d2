// Package http provides the boundary HTTP server: routing, identity and rate
// limit middleware wiring, and health endpoints.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	allocationHTTP "github.com/allisson/handoff/internal/allocation/http"
	catalogHTTP "github.com/allisson/handoff/internal/catalog/http"
	"github.com/allisson/handoff/internal/config"
)

// Server represents the boundary HTTP server.
type Server struct {
	server            *http.Server
	router            *gin.Engine
	db                *sql.DB
	config            *config.Config
	logger            *slog.Logger
	allocationHandler *allocationHTTP.AllocationHandler
	productHandler    *catalogHTTP.ProductHandler
	metricsMiddleware gin.HandlerFunc
}

// NewServer creates a new HTTP server. The metrics middleware may be nil when
// metrics collection is disabled.
func NewServer(
	db *sql.DB,
	cfg *config.Config,
	logger *slog.Logger,
	allocationHandler *allocationHTTP.AllocationHandler,
	productHandler *catalogHTTP.ProductHandler,
	metricsMiddleware gin.HandlerFunc,
) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		db:                db,
		config:            cfg,
		logger:            logger,
		allocationHandler: allocationHandler,
		productHandler:    productHandler,
		metricsMiddleware: metricsMiddleware,
	}
}

// SetupRouter builds the Gin router with all middleware and routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if s.metricsMiddleware != nil {
		router.Use(s.metricsMiddleware)
	}

	if corsMiddleware := createCORSMiddleware(
		s.config.CORSEnabled,
		s.config.CORSAllowOrigins,
		s.logger,
	); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	// Health and readiness endpoints
	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")

	// Admin and service endpoints trust upstream identity via X-Subject-Id.
	admin := v1.Group("")
	admin.Use(allocationHTTP.SubjectMiddleware(s.logger))
	{
		admin.POST("/credentials/claim", s.allocationHandler.ClaimHandler)
		admin.POST("/credentials/:id/release", s.allocationHandler.ReleaseCredentialHandler)
		admin.PATCH("/credentials/:id/partition", s.allocationHandler.ChangePartitionHandler)
		admin.DELETE("/subjects/:id/credentials", s.allocationHandler.ReleaseAllForSubjectHandler)

		admin.POST("/products", s.productHandler.CreateHandler)
		admin.GET("/products/:id", s.productHandler.GetHandler)
		admin.GET("/products", s.productHandler.ListHandler)

		admin.POST("/slots/acquire", s.allocationHandler.AcquireSlotHandler)
		admin.POST("/slots/:id/release", s.allocationHandler.ReleaseSlotHandler)
	}

	// Redemption endpoints carry only the bearer token, no session. Rate
	// limited by client IP.
	handoff := v1.Group("/handoff")
	if s.config.RateLimitHandoffEnabled {
		handoff.Use(allocationHTTP.RateLimitMiddleware(
			s.config.RateLimitHandoffRequestsPerSec,
			s.config.RateLimitHandoffBurst,
			s.logger,
		))
	}
	{
		handoff.GET("/credential", s.allocationHandler.CredentialHandoffHandler)
		handoff.GET("/product", s.allocationHandler.ProductHandoffHandler)
	}

	return router
}

// GetHandler returns the HTTP handler, building the router on first use.
func (s *Server) GetHandler() http.Handler {
	if s.router == nil {
		s.router = s.SetupRouter()
	}
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.GetHandler()

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can reach its database.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok"}

	if s.db == nil {
		components["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("readiness check failed", slog.Any("error", err))
		components["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}
