package app

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/allisson/handoff/internal/audit"
	cryptoService "github.com/allisson/handoff/internal/crypto/service"
	tokenService "github.com/allisson/handoff/internal/token/service"
)

// Keeper returns the payload keeper opened from the configured key URI.
func (c *Container) Keeper() (cryptoService.Keeper, error) {
	var err error
	c.keeperInit.Do(func() {
		c.keeper, err = c.initKeeper()
		if err != nil {
			c.initErrors["keeper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keeper"]; exists {
		return nil, storedErr
	}
	return c.keeper, nil
}

// PayloadCipher returns the cipher that protects credential and product payloads.
func (c *Container) PayloadCipher() (cryptoService.PayloadCipher, error) {
	var err error
	c.payloadCipherInit.Do(func() {
		c.payloadCipher, err = c.initPayloadCipher()
		if err != nil {
			c.initErrors["payloadCipher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["payloadCipher"]; exists {
		return nil, storedErr
	}
	return c.payloadCipher, nil
}

// TokenIssuer returns the single-use token issuer.
func (c *Container) TokenIssuer() (tokenService.Issuer, error) {
	var err error
	c.tokenIssuerInit.Do(func() {
		c.tokenIssuer, err = c.initTokenIssuer()
		if err != nil {
			c.initErrors["tokenIssuer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["tokenIssuer"]; exists {
		return nil, storedErr
	}
	return c.tokenIssuer, nil
}

// AuditSink returns the audit event sink.
func (c *Container) AuditSink() audit.Sink {
	c.auditSinkInit.Do(func() {
		c.auditSink = audit.NewSlogSink(c.Logger())
	})
	return c.auditSink
}

// initKeeper opens the payload keeper from the configured key URI.
func (c *Container) initKeeper() (cryptoService.Keeper, error) {
	if c.config.KeeperKeyURI == "" {
		return nil, fmt.Errorf("KEEPER_KEY_URI must be set")
	}

	keeper, err := cryptoService.OpenKeeper(context.Background(), c.config.KeeperKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload keeper: %w", err)
	}
	return keeper, nil
}

// initPayloadCipher creates the payload cipher on top of the keeper.
func (c *Container) initPayloadCipher() (cryptoService.PayloadCipher, error) {
	keeper, err := c.Keeper()
	if err != nil {
		return nil, fmt.Errorf("failed to get keeper for payload cipher: %w", err)
	}
	return cryptoService.NewPayloadCipher(keeper), nil
}

// initTokenIssuer creates the token issuer from the server-held hash key.
func (c *Container) initTokenIssuer() (tokenService.Issuer, error) {
	if c.config.TokenHashKey == "" {
		return nil, fmt.Errorf("TOKEN_HASH_KEY must be set")
	}

	serverKey, err := base64.StdEncoding.DecodeString(c.config.TokenHashKey)
	if err != nil {
		return nil, fmt.Errorf("TOKEN_HASH_KEY must be base64: %w", err)
	}

	issuer, err := tokenService.NewIssuer(serverKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	return issuer, nil
}
