// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/sigil-dev/tome/internal/secrets"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

func init() {
	// Use the mock keyring for all tests so they don't touch the real OS keyring.
	keyring.MockInit()
}

func TestKeyringStore_SetAndGet(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-set-get"

	require.NoError(t, ks.Set(svc, "openai-api-key", "sk-secret-123"))

	val, err := ks.Get(svc, "openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-123", val)
}

func TestKeyringStore_GetNotFound(t *testing.T) {
	ks := secrets.NewKeyringStore()

	_, err := ks.Get("no-such-service", "no-key")
	require.Error(t, err)
	assert.True(t, tomeerr.HasCode(err, tomeerr.CodeSecretNotFound), "got: %v", err)
	assert.True(t, tomeerr.IsNotFound(err))
}

func TestKeyringStore_Delete(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-delete"

	require.NoError(t, ks.Set(svc, "temp-key", "temp-value"))
	require.NoError(t, ks.Delete(svc, "temp-key"))

	_, err := ks.Get(svc, "temp-key")
	assert.True(t, tomeerr.HasCode(err, tomeerr.CodeSecretNotFound))

	err = ks.Delete(svc, "temp-key")
	assert.True(t, tomeerr.HasCode(err, tomeerr.CodeSecretNotFound))
}

func TestKeyringStore_ListTracksKeys(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-list"

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, ks.Set(svc, "key-a", "val-a"))
	require.NoError(t, ks.Set(svc, "key-b", "val-b"))
	require.NoError(t, ks.Set(svc, "key-a", "val-a2"))

	keys, err = ks.List(svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-a", "key-b"}, keys)

	require.NoError(t, ks.Delete(svc, "key-a"))
	keys, err = ks.List(svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-b"}, keys)

	val, err := ks.Get(svc, "key-b")
	require.NoError(t, err)
	assert.Equal(t, "val-b", val)
}

func TestKeyringStore_EmptyInputs(t *testing.T) {
	ks := secrets.NewKeyringStore()

	tests := []struct {
		name    string
		service string
		key     string
	}{
		{"empty service", "", "key"},
		{"empty key", "svc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tomeerr.HasCode(ks.Set(tt.service, tt.key, "v"), tomeerr.CodeSecretInvalidInput))
			_, err := ks.Get(tt.service, tt.key)
			assert.True(t, tomeerr.HasCode(err, tomeerr.CodeSecretInvalidInput))
			assert.True(t, tomeerr.HasCode(ks.Delete(tt.service, tt.key), tomeerr.CodeSecretInvalidInput))
		})
	}
}

func TestAPIKeyNames(t *testing.T) {
	assert.Equal(t, "openai-api-key", secrets.APIKeyName("OpenAI "))
	assert.Equal(t, "keyring://tome/google-api-key", secrets.APIKeyURI("google"))
}
