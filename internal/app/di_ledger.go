package app

import (
	"fmt"

	ledgerRepository "github.com/allisson/handoff/internal/ledger/repository"
	ledgerUsecase "github.com/allisson/handoff/internal/ledger/usecase"
)

// SlotRepository returns the slot repository based on database driver.
func (c *Container) SlotRepository() (ledgerUsecase.SlotRepository, error) {
	var err error
	c.slotRepoInit.Do(func() {
		c.slotRepo, err = c.initSlotRepository()
		if err != nil {
			c.initErrors["slotRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["slotRepo"]; exists {
		return nil, storedErr
	}
	return c.slotRepo, nil
}

// LedgerUseCase returns the slot ledger use case.
func (c *Container) LedgerUseCase() (ledgerUsecase.LedgerUseCase, error) {
	var err error
	c.ledgerUseCaseInit.Do(func() {
		c.ledgerUseCase, err = c.initLedgerUseCase()
		if err != nil {
			c.initErrors["ledgerUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["ledgerUseCase"]; exists {
		return nil, storedErr
	}
	return c.ledgerUseCase, nil
}

// initSlotRepository creates the slot repository instance.
func (c *Container) initSlotRepository() (ledgerUsecase.SlotRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for slot repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return ledgerRepository.NewMySQLSlotRepository(db), nil
	case "postgres":
		return ledgerRepository.NewPostgreSQLSlotRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initLedgerUseCase creates the ledger use case with all its dependencies.
// The product repository doubles as the lock provider that serializes slot
// admission per product.
func (c *Container) initLedgerUseCase() (ledgerUsecase.LedgerUseCase, error) {
	slotRepo, err := c.SlotRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get slot repository for ledger use case: %w", err)
	}

	productRepo, err := c.ProductRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get product repository for ledger use case: %w", err)
	}

	return ledgerUsecase.NewLedgerUseCase(slotRepo, productRepo, c.Logger()), nil
}
