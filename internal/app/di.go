// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gin-gonic/gin"

	allocationHTTP "github.com/allisson/handoff/internal/allocation/http"
	allocationUsecase "github.com/allisson/handoff/internal/allocation/usecase"
	"github.com/allisson/handoff/internal/audit"
	catalogHTTP "github.com/allisson/handoff/internal/catalog/http"
	catalogUsecase "github.com/allisson/handoff/internal/catalog/usecase"
	"github.com/allisson/handoff/internal/config"
	cryptoService "github.com/allisson/handoff/internal/crypto/service"
	"github.com/allisson/handoff/internal/database"
	"github.com/allisson/handoff/internal/http"
	ledgerUsecase "github.com/allisson/handoff/internal/ledger/usecase"
	"github.com/allisson/handoff/internal/metrics"
	poolUsecase "github.com/allisson/handoff/internal/pool/usecase"
	"github.com/allisson/handoff/internal/reaper"
	tokenService "github.com/allisson/handoff/internal/token/service"
	tokenUsecase "github.com/allisson/handoff/internal/token/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger *slog.Logger
	db     *sql.DB

	// Managers
	txManager database.TxManager

	// Crypto and audit
	keeper        cryptoService.Keeper
	payloadCipher cryptoService.PayloadCipher
	tokenIssuer   tokenService.Issuer
	auditSink     audit.Sink

	// Metrics
	metricsProvider       *metrics.Provider
	businessMetrics       metrics.BusinessMetrics
	httpMetricsMiddleware gin.HandlerFunc

	// Repositories
	credentialRepo poolUsecase.CredentialRepository
	productRepo    catalogUsecase.ProductRepository
	slotRepo       ledgerUsecase.SlotRepository
	tokenRepo      tokenUsecase.TokenRepository

	// Use Cases
	poolUseCase       poolUsecase.PoolUseCase
	catalogUseCase    catalogUsecase.CatalogUseCase
	ledgerUseCase     ledgerUsecase.LedgerUseCase
	tokenUseCase      tokenUsecase.TokenUseCase
	allocationUseCase allocationUsecase.AllocationUseCase

	// HTTP handlers
	allocationHandler *allocationHTTP.AllocationHandler
	productHandler    *catalogHTTP.ProductHandler

	// Servers and workers
	httpServer    *http.Server
	metricsServer *http.MetricsServer
	expiryReaper  *reaper.Reaper

	// Initialization flags and mutex for thread-safety
	mu                        sync.Mutex
	loggerInit                sync.Once
	dbInit                    sync.Once
	txManagerInit             sync.Once
	keeperInit                sync.Once
	payloadCipherInit         sync.Once
	tokenIssuerInit           sync.Once
	auditSinkInit             sync.Once
	metricsProviderInit       sync.Once
	businessMetricsInit       sync.Once
	httpMetricsMiddlewareInit sync.Once
	credentialRepoInit        sync.Once
	productRepoInit           sync.Once
	slotRepoInit              sync.Once
	tokenRepoInit             sync.Once
	poolUseCaseInit           sync.Once
	catalogUseCaseInit        sync.Once
	ledgerUseCaseInit         sync.Once
	tokenUseCaseInit          sync.Once
	allocationUseCaseInit     sync.Once
	allocationHandlerInit     sync.Once
	productHandlerInit        sync.Once
	httpServerInit            sync.Once
	metricsServerInit         sync.Once
	reaperInit                sync.Once
	initErrors                map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance.
// Returns nil when metrics collection is disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Reaper returns the expiry reaper instance.
func (c *Container) Reaper() (*reaper.Reaper, error) {
	var err error
	c.reaperInit.Do(func() {
		c.expiryReaper, err = c.initReaper()
		if err != nil {
			c.initErrors["reaper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["reaper"]; exists {
		return nil, storedErr
	}
	return c.expiryReaper, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Shutdown HTTP server if initialized
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	// Flush pending metrics if the provider was initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close the payload keeper if initialized
	if c.keeper != nil {
		if err := c.keeper.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("payload keeper close: %w", err))
		}
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:          c.config.DBDriver,
		DSN:             c.config.DBConnectionString,
		MaxOpenConns:    c.config.DBMaxOpenConnections,
		MaxIdleConns:    c.config.DBMaxIdleConnections,
		ConnMaxLifetime: c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	allocationHandler, err := c.AllocationHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation handler for http server: %w", err)
	}

	productHandler, err := c.ProductHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get product handler for http server: %w", err)
	}

	metricsMiddleware, err := c.HTTPMetricsMiddleware()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics middleware for http server: %w", err)
	}

	return http.NewServer(
		db,
		c.config,
		logger,
		allocationHandler,
		productHandler,
		metricsMiddleware,
	), nil
}

// initMetricsServer creates the metrics server. Returns nil when metrics
// collection is disabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	return http.NewMetricsServer(
		c.config.ServerHost,
		c.config.MetricsPort,
		c.Logger(),
		provider,
	), nil
}

// initReaper creates the expiry reaper with all its dependencies.
func (c *Container) initReaper() (*reaper.Reaper, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for reaper: %w", err)
	}

	ledgerUseCase, err := c.LedgerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger use case for reaper: %w", err)
	}

	tokenUseCase, err := c.TokenUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get token use case for reaper: %w", err)
	}

	return reaper.NewReaper(
		reaper.Config{
			Interval:  c.config.ReaperInterval,
			BatchSize: c.config.ReaperBatchSize,
		},
		txManager,
		ledgerUseCase,
		tokenUseCase,
		c.Logger(),
	), nil
}
