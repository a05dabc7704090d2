package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/allisson/handoff/internal/app"
	"github.com/allisson/handoff/internal/config"
)

// RunCreateProduct creates a product with a concurrency ceiling. The payload
// file holds the raw product payload delivered to subjects on a granted slot.
//
// Requirements: Database must be migrated and accessible.
func RunCreateProduct(ctx context.Context, name string, maxConcurrentSlots int, payloadFile string) error {
	payload, err := os.ReadFile(payloadFile)
	if err != nil {
		return fmt.Errorf("failed to read payload file: %w", err)
	}

	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("creating product",
		slog.String("name", name),
		slog.Int("max_concurrent_slots", maxConcurrentSlots),
	)

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	catalogUseCase, err := container.CatalogUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize catalog use case: %w", err)
	}

	product, err := catalogUseCase.CreateProduct(ctx, name, maxConcurrentSlots, payload)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	fmt.Printf("Product created successfully!\n")
	fmt.Printf("ID: %s\n", product.ID)
	fmt.Printf("Name: %s\n", product.Name)
	fmt.Printf("Max concurrent slots: %d\n", product.MaxConcurrentSlots)

	logger.Info("product created", slog.String("product_id", product.ID.String()))
	return nil
}
