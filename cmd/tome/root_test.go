// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/tome/internal/config"
	"github.com/sigil-dev/tome/internal/embedding"
	"github.com/sigil-dev/tome/internal/secrets"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

const testDims = 8

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Set(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Get(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", tomeerr.Errorf(tomeerr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return tomeerr.Errorf(tomeerr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func (m *mockSecretStore) List(_ string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ secrets.Store = (*mockSecretStore)(nil)

// hashProvider returns deterministic vectors seeded by the text, so equal
// text always embeds to distance zero.
type hashProvider struct{}

func (hashProvider) Name() string { return "hash" }

func (hashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	r := rand.New(rand.NewPCG(h.Sum64(), 0))
	v := make([]float32, testDims)
	for i := range v {
		v[i] = r.Float32()
	}
	return v, nil
}

// testEnv is an isolated config, data directory, source directory, keyring,
// and embedding provider for one test.
type testEnv struct {
	cfgPath string
	dataDir string
	src     string
	secrets *mockSecretStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	dir := t.TempDir()
	env := &testEnv{
		cfgPath: filepath.Join(dir, "tome.yaml"),
		dataDir: filepath.Join(dir, "data"),
		src:     filepath.Join(dir, "src"),
		secrets: newMockSecretStore(),
	}
	require.NoError(t, os.MkdirAll(env.src, 0o755))

	cfg := fmt.Sprintf(`data_dir: %q
embedding:
  provider: openai
  dimensions: %d
sync:
  no_delay: true
log:
  level: error
`, env.dataDir, testDims)
	require.NoError(t, os.WriteFile(env.cfgPath, []byte(cfg), 0o600))

	oldSecrets := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return env.secrets }
	oldClient := embeddingClientFactory
	embeddingClientFactory = func(cfg *config.Config) (*embedding.Client, error) {
		return embedding.NewClient(hashProvider{}, cfg.Embedding.Dimensions,
			embedding.WithRetryPolicy(embedding.RetryPolicy{MaxAttempts: 1}))
	}
	t.Cleanup(func() {
		secretStoreFactory = oldSecrets
		embeddingClientFactory = oldClient
	})

	return env
}

// write creates a file under the source directory.
func (e *testEnv) write(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(e.src, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// run executes tome with the test config and returns its stdout.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--help"})

	err := root.Execute()
	require.NoError(t, err)
	for _, sub := range []string{"stores", "store", "serve", "secret", "doctor", "version"} {
		assert.Contains(t, buf.String(), sub)
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--verbose", "--help"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "--config")
	assert.Contains(t, buf.String(), "--data-dir")
	assert.Contains(t, buf.String(), "--verbose")
}

func TestSubcommands_Help(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"stores", "--help"}, []string{"add", "list", "get", "remove", "rename", "reset"}},
		{[]string{"store", "--help"}, []string{"build", "sync", "search", "show"}},
		{[]string{"store", "sync", "--help"}, []string{"--dry-run"}},
		{[]string{"store", "search", "--help"}, []string{"--column", "--limit"}},
		{[]string{"stores", "remove", "--help"}, []string{"--purge"}},
		{[]string{"serve", "--help"}, []string{"--listen", "/stores/{name}/search"}},
		{[]string{"secret", "--help"}, []string{"set", "list", "delete"}},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			root := NewRootCmd()
			buf := new(bytes.Buffer)
			root.SetOut(buf)
			root.SetArgs(tt.args)

			require.NoError(t, root.Execute())
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tome dev")
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	newTestEnv(t)
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", "/nonexistent/tome.yaml", "stores", "list"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, tomeerr.HasCode(err, tomeerr.CodeConfigLoadReadFailure))
}

func TestRootCommand_InvalidConfigRejected(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.cfgPath, []byte("embedding:\n  provider: nope\n  dimensions: 0\n"), 0o600))

	_, err := env.run(t, "", "stores", "list")
	require.Error(t, err)
	assert.True(t, tomeerr.HasCode(err, tomeerr.CodeConfigValidateInvalidValue))
}

func TestRootCommand_BootstrapsDefaultConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.FileExists(t, filepath.Join(home, ".config", "tome", "tome.yaml"))
}

func TestRootCommand_DataDirFlagOverridesConfig(t *testing.T) {
	env := newTestEnv(t)
	other := filepath.Join(t.TempDir(), "elsewhere")

	_, err := env.run(t, "", "--data-dir", other, "stores", "add", "notes", env.src)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(other, "catalog.db"))
	assert.NoDirExists(t, env.dataDir)
}
