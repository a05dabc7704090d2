package app

import (
	"fmt"

	allocationHTTP "github.com/allisson/handoff/internal/allocation/http"
	allocationUsecase "github.com/allisson/handoff/internal/allocation/usecase"
)

// AllocationUseCase returns the allocation coordinator, wrapped with the
// metrics decorator.
func (c *Container) AllocationUseCase() (allocationUsecase.AllocationUseCase, error) {
	var err error
	c.allocationUseCaseInit.Do(func() {
		c.allocationUseCase, err = c.initAllocationUseCase()
		if err != nil {
			c.initErrors["allocationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["allocationUseCase"]; exists {
		return nil, storedErr
	}
	return c.allocationUseCase, nil
}

// AllocationHandler returns the HTTP handler for allocation operations.
func (c *Container) AllocationHandler() (*allocationHTTP.AllocationHandler, error) {
	var err error
	c.allocationHandlerInit.Do(func() {
		c.allocationHandler, err = c.initAllocationHandler()
		if err != nil {
			c.initErrors["allocationHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["allocationHandler"]; exists {
		return nil, storedErr
	}
	return c.allocationHandler, nil
}

// initAllocationUseCase creates the allocation coordinator with all its dependencies.
func (c *Container) initAllocationUseCase() (allocationUsecase.AllocationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for allocation use case: %w", err)
	}

	poolUseCase, err := c.PoolUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get pool use case for allocation use case: %w", err)
	}

	ledgerUseCase, err := c.LedgerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger use case for allocation use case: %w", err)
	}

	catalogUseCase, err := c.CatalogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog use case for allocation use case: %w", err)
	}

	tokenUseCase, err := c.TokenUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get token use case for allocation use case: %w", err)
	}

	payloadCipher, err := c.PayloadCipher()
	if err != nil {
		return nil, fmt.Errorf("failed to get payload cipher for allocation use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for allocation use case: %w", err)
	}

	useCase := allocationUsecase.NewAllocationUseCase(
		txManager,
		poolUseCase,
		ledgerUseCase,
		catalogUseCase,
		tokenUseCase,
		payloadCipher,
		c.AuditSink(),
		c.config.HandoffTokenTTL,
		c.config.SlotLeaseTTL,
		c.Logger(),
	)

	return allocationUsecase.NewAllocationUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initAllocationHandler creates the allocation HTTP handler.
func (c *Container) initAllocationHandler() (*allocationHTTP.AllocationHandler, error) {
	allocationUseCase, err := c.AllocationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation use case for allocation handler: %w", err)
	}

	return allocationHTTP.NewAllocationHandler(allocationUseCase, c.Logger()), nil
}
