package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/allisson/handoff/internal/app"
	"github.com/allisson/handoff/internal/config"
	poolDomain "github.com/allisson/handoff/internal/pool/domain"
)

// RunImportCredentials imports a batch of credentials from a collaborator feed
// file into a pool partition. The file holds a JSON array of base64-encoded
// payloads. The whole batch is one transaction: a single bad payload imports
// nothing.
//
// Requirements: Database must be migrated and accessible.
func RunImportCredentials(ctx context.Context, partition, file string) error {
	if !poolDomain.ValidPartition(poolDomain.Partition(partition)) {
		return fmt.Errorf("unknown partition: %s", partition)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read credentials file: %w", err)
	}

	var payloads [][]byte
	if err := json.Unmarshal(data, &payloads); err != nil {
		return fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if len(payloads) == 0 {
		return fmt.Errorf("credentials file is empty")
	}

	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("importing credentials",
		slog.String("partition", partition),
		slog.Int("count", len(payloads)),
	)

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	txManager, err := container.TxManager()
	if err != nil {
		return fmt.Errorf("failed to initialize tx manager: %w", err)
	}

	poolUseCase, err := container.PoolUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize pool use case: %w", err)
	}

	imported := make([]string, 0, len(payloads))
	err = txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, payload := range payloads {
			credential, err := poolUseCase.Import(ctx, poolDomain.Partition(partition), payload)
			if err != nil {
				return err
			}
			imported = append(imported, credential.ID.String())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to import credentials: %w", err)
	}

	fmt.Printf("Imported %d credential(s) into partition %q\n", len(imported), partition)
	for _, id := range imported {
		fmt.Println(id)
	}

	logger.Info("import completed", slog.Int("count", len(imported)))
	return nil
}
