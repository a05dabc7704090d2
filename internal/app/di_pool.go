package app

import (
	"fmt"

	poolRepository "github.com/allisson/handoff/internal/pool/repository"
	poolUsecase "github.com/allisson/handoff/internal/pool/usecase"
)

// CredentialRepository returns the credential repository based on database driver.
func (c *Container) CredentialRepository() (poolUsecase.CredentialRepository, error) {
	var err error
	c.credentialRepoInit.Do(func() {
		c.credentialRepo, err = c.initCredentialRepository()
		if err != nil {
			c.initErrors["credentialRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["credentialRepo"]; exists {
		return nil, storedErr
	}
	return c.credentialRepo, nil
}

// PoolUseCase returns the credential pool use case.
func (c *Container) PoolUseCase() (poolUsecase.PoolUseCase, error) {
	var err error
	c.poolUseCaseInit.Do(func() {
		c.poolUseCase, err = c.initPoolUseCase()
		if err != nil {
			c.initErrors["poolUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["poolUseCase"]; exists {
		return nil, storedErr
	}
	return c.poolUseCase, nil
}

// initCredentialRepository creates the credential repository instance.
func (c *Container) initCredentialRepository() (poolUsecase.CredentialRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for credential repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return poolRepository.NewMySQLCredentialRepository(db), nil
	case "postgres":
		return poolRepository.NewPostgreSQLCredentialRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initPoolUseCase creates the pool use case with all its dependencies.
func (c *Container) initPoolUseCase() (poolUsecase.PoolUseCase, error) {
	credentialRepo, err := c.CredentialRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential repository for pool use case: %w", err)
	}

	payloadCipher, err := c.PayloadCipher()
	if err != nil {
		return nil, fmt.Errorf("failed to get payload cipher for pool use case: %w", err)
	}

	return poolUsecase.NewPoolUseCase(
		credentialRepo,
		payloadCipher,
		c.config.PoolReleaseOnSubjectDelete,
		c.Logger(),
	), nil
}
