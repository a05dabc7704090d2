package app

import (
	"fmt"

	catalogHTTP "github.com/allisson/handoff/internal/catalog/http"
	catalogRepository "github.com/allisson/handoff/internal/catalog/repository"
	catalogUsecase "github.com/allisson/handoff/internal/catalog/usecase"
)

// ProductRepository returns the product repository based on database driver.
func (c *Container) ProductRepository() (catalogUsecase.ProductRepository, error) {
	var err error
	c.productRepoInit.Do(func() {
		c.productRepo, err = c.initProductRepository()
		if err != nil {
			c.initErrors["productRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["productRepo"]; exists {
		return nil, storedErr
	}
	return c.productRepo, nil
}

// CatalogUseCase returns the product catalog use case.
func (c *Container) CatalogUseCase() (catalogUsecase.CatalogUseCase, error) {
	var err error
	c.catalogUseCaseInit.Do(func() {
		c.catalogUseCase, err = c.initCatalogUseCase()
		if err != nil {
			c.initErrors["catalogUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["catalogUseCase"]; exists {
		return nil, storedErr
	}
	return c.catalogUseCase, nil
}

// ProductHandler returns the HTTP handler for product catalog operations.
func (c *Container) ProductHandler() (*catalogHTTP.ProductHandler, error) {
	var err error
	c.productHandlerInit.Do(func() {
		c.productHandler, err = c.initProductHandler()
		if err != nil {
			c.initErrors["productHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["productHandler"]; exists {
		return nil, storedErr
	}
	return c.productHandler, nil
}

// initProductRepository creates the product repository instance.
func (c *Container) initProductRepository() (catalogUsecase.ProductRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for product repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return catalogRepository.NewMySQLProductRepository(db), nil
	case "postgres":
		return catalogRepository.NewPostgreSQLProductRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initCatalogUseCase creates the catalog use case with all its dependencies.
func (c *Container) initCatalogUseCase() (catalogUsecase.CatalogUseCase, error) {
	productRepo, err := c.ProductRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get product repository for catalog use case: %w", err)
	}

	payloadCipher, err := c.PayloadCipher()
	if err != nil {
		return nil, fmt.Errorf("failed to get payload cipher for catalog use case: %w", err)
	}

	return catalogUsecase.NewCatalogUseCase(productRepo, payloadCipher), nil
}

// initProductHandler creates the product HTTP handler.
func (c *Container) initProductHandler() (*catalogHTTP.ProductHandler, error) {
	catalogUseCase, err := c.CatalogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog use case for product handler: %w", err)
	}

	return catalogHTTP.NewProductHandler(catalogUseCase, c.Logger()), nil
}
