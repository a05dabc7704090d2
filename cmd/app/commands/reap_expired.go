package commands

import (
	"context"
	"fmt"

	"github.com/allisson/handoff/internal/app"
	"github.com/allisson/handoff/internal/config"
)

// RunReapExpired performs one sweep over expired slot leases and handoff
// tokens and exits. Useful for running the reaper as an external scheduled job
// instead of the in-process loop.
//
// Requirements: Database must be migrated and accessible.
func RunReapExpired(ctx context.Context) error {
	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("reaping expired slots and tokens")

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Get the expiry reaper from container
	expiryReaper, err := container.Reaper()
	if err != nil {
		return fmt.Errorf("failed to initialize reaper: %w", err)
	}

	expiryReaper.Sweep(ctx)

	logger.Info("sweep completed")
	return nil
}
