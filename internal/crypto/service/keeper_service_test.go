package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKeyURI builds a base64key:// URI with a random 32-byte key, so tests run
// without any external KMS.
func testKeyURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return fmt.Sprintf("base64key://%s", base64.URLEncoding.EncodeToString(key))
}

func TestOpenKeeper_InvalidURI(t *testing.T) {
	_, err := OpenKeeper(context.Background(), "not-a-keeper://x")
	assert.Error(t, err)
}

func TestPayloadCipher_RoundTrip(t *testing.T) {
	ctx := context.Background()

	keeper, err := OpenKeeper(ctx, testKeyURI(t))
	require.NoError(t, err)
	defer keeper.Close()

	cipher := NewPayloadCipher(keeper)

	plaintext := []byte("vpn-profile: endpoint=10.0.0.1 psk=supersecret")
	ciphertext, err := cipher.Encrypt(ctx, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := cipher.Decrypt(ctx, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestPayloadCipher_DecryptTampered(t *testing.T) {
	ctx := context.Background()

	keeper, err := OpenKeeper(ctx, testKeyURI(t))
	require.NoError(t, err)
	defer keeper.Close()

	cipher := NewPayloadCipher(keeper)

	ciphertext, err := cipher.Encrypt(ctx, []byte("payload"))
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xff
	_, err = cipher.Decrypt(ctx, ciphertext)
	assert.Error(t, err)
}
