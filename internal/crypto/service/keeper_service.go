// Package service provides payload protection for credential and product
// payloads using gocloud.dev/secrets keepers. Payloads are encrypted before they
// reach the store and decrypted only when a consumed single-use token authorizes
// the fetch.
package service

import (
	"context"
	"fmt"

	"gocloud.dev/secrets"

	// Register all keeper provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// Keeper is the subset of *secrets.Keeper used for payload protection.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// PayloadCipher encrypts and decrypts opaque resource payloads.
type PayloadCipher interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// OpenKeeper opens a secrets.Keeper for the configured provider using the keyURI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func OpenKeeper(ctx context.Context, keyURI string) (Keeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open keeper: %w", err)
	}
	return keeper, nil
}

// payloadCipher implements PayloadCipher on top of a Keeper.
type payloadCipher struct {
	keeper Keeper
}

// NewPayloadCipher creates a PayloadCipher backed by the given keeper.
func NewPayloadCipher(keeper Keeper) PayloadCipher {
	return &payloadCipher{keeper: keeper}
}

// Encrypt encrypts a plaintext payload.
func (p *payloadCipher) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	ciphertext, err := p.keeper.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt payload: %w", err)
	}
	return ciphertext, nil
}

// Decrypt decrypts a stored payload.
func (p *payloadCipher) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	plaintext, err := p.keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: %w", err)
	}
	return plaintext, nil
}
