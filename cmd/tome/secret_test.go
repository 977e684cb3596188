// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

func TestSecretList(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		wantKeys []string
		wantMsg  string
	}{
		{
			name:    "empty store",
			wantMsg: "No secrets stored.\n",
		},
		{
			name:     "multiple keys",
			keys:     []string{"openai-api-key", "google-api-key"},
			wantKeys: []string{"google-api-key", "openai-api-key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			for _, k := range tt.keys {
				env.secrets.data[k] = "redacted"
			}

			out, err := env.run(t, "", "secret", "list")
			require.NoError(t, err)

			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, out)
				return
			}
			lines := strings.Fields(out)
			slices.Sort(lines)
			assert.Equal(t, tt.wantKeys, lines)
			assert.NotContains(t, out, "redacted")
		})
	}
}

func TestSecretSet(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "sk-from-stdin\n", "secret", "set", "OpenAI")
	require.NoError(t, err)
	assert.Contains(t, out, "keyring://tome/openai-api-key")
	assert.Equal(t, "sk-from-stdin", env.secrets.data["openai-api-key"])

	_, err = env.run(t, "", "secret", "set", "google", "--value", "g-key")
	require.NoError(t, err)
	assert.Equal(t, "g-key", env.secrets.data["google-api-key"])

	_, err = env.run(t, "\n", "secret", "set", "openai")
	assert.True(t, tomeerr.HasCode(err, tomeerr.CodeCLIInputInvalid))
}

func TestSecretDelete(t *testing.T) {
	env := newTestEnv(t)
	env.secrets.data["openai-api-key"] = "sk"

	out, err := env.run(t, "", "secret", "delete", "openai")
	require.NoError(t, err)
	assert.Equal(t, "Deleted secret: openai-api-key\n", out)
	assert.NotContains(t, env.secrets.data, "openai-api-key")

	_, err = env.run(t, "", "secret", "delete", "openai")
	assert.True(t, tomeerr.HasCode(err, tomeerr.CodeSecretNotFound))
}

func TestKeyringReferenceResolvedFromConfig(t *testing.T) {
	env := newTestEnv(t)
	env.secrets.data["openai-api-key"] = "sk-from-keyring"

	cfg := "embedding:\n  api_key: keyring://tome/openai-api-key\n  dimensions: 8\n"
	writeConfig(t, env, cfg)

	out, err := env.run(t, "", "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "set in config")
}

func TestResolveAPIKey_Order(t *testing.T) {
	env := newTestEnv(t)
	env.secrets.data["openai-api-key"] = "from-keyring"

	cfg := loadTestConfig(t, env)
	assert.Equal(t, "from-keyring", resolveAPIKey(cfg.Embedding))

	t.Setenv("OPENAI_API_KEY", "from-env")
	assert.Equal(t, "from-env", resolveAPIKey(cfg.Embedding))

	cfg.Embedding.APIKey = "from-config"
	assert.Equal(t, "from-config", resolveAPIKey(cfg.Embedding))

	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.APIKey = ""
	assert.Empty(t, resolveAPIKey(cfg.Embedding))
}
