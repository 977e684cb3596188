// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"))
}

func TestStoresList_Golden(t *testing.T) {
	env := newTestEnv(t)
	base := t.TempDir()
	for _, name := range []string{"notes", "alpha"} {
		require.NoError(t, os.Mkdir(filepath.Join(base, name), 0o755))
		_, err := env.run(t, "", "stores", "add", name, filepath.Join(base, name))
		require.NoError(t, err)
	}

	out, err := env.run(t, "", "stores", "list")
	require.NoError(t, err)

	out = strings.ReplaceAll(out, base, "<ROOT>")
	newGoldie(t).Assert(t, "stores_list", []byte(out))
}

func TestStoresList_Empty(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "", "stores", "list")
	require.NoError(t, err)
	assert.Equal(t, "No stores registered.\n", out)
}

func TestStoresAdd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "stores", "add", "notes", env.src)
	require.NoError(t, err)
	assert.Contains(t, out, `Added store "notes"`)
	assert.DirExists(t, filepath.Join(env.dataDir, "stores", "notes"))

	_, err = env.run(t, "", "stores", "add", "notes", env.src)
	assert.True(t, tomeerr.IsConflict(err))

	_, err = env.run(t, "", "stores", "add", "ghost", filepath.Join(env.src, "missing"))
	assert.True(t, tomeerr.IsInvalidInput(err))
}

func TestStoresGet(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "stores", "add", "notes", env.src)
	require.NoError(t, err)

	out, err := env.run(t, "", "stores", "get", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "Name:      notes")
	assert.Contains(t, out, "Location:  "+env.src)
	assert.Contains(t, out, filepath.Join(env.dataDir, "stores", "notes"))

	_, err = env.run(t, "", "stores", "get", "ghost")
	assert.True(t, tomeerr.IsNotFound(err))
}

func TestStoresRemove(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"keep", "purge"} {
		_, err := env.run(t, "", "stores", "add", name, env.src)
		require.NoError(t, err)
	}

	out, err := env.run(t, "", "stores", "remove", "keep")
	require.NoError(t, err)
	assert.Contains(t, out, `Removed store "keep"`)
	assert.DirExists(t, filepath.Join(env.dataDir, "stores", "keep"))

	_, err = env.run(t, "", "stores", "remove", "purge", "--purge")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(env.dataDir, "stores", "purge"))
	assert.DirExists(t, env.src)

	out, err = env.run(t, "", "stores", "list")
	require.NoError(t, err)
	assert.Equal(t, "No stores registered.\n", out)
}

func TestStoresRename(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "stores", "add", "old", env.src)
	require.NoError(t, err)

	out, err := env.run(t, "", "stores", "rename", "old", "new")
	require.NoError(t, err)
	assert.Contains(t, out, `Renamed store "old" to "new"`)
	assert.DirExists(t, filepath.Join(env.dataDir, "stores", "new"))

	_, err = env.run(t, "", "stores", "get", "old")
	assert.True(t, tomeerr.IsNotFound(err))
}

func TestStoresReset(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantErr bool
	}{
		{name: "confirmed", stdin: "RESET\n", args: nil},
		{name: "yes flag", stdin: "", args: []string{"--yes"}},
		{name: "wrong word", stdin: "reset\n", args: nil, wantErr: true},
		{name: "no input", stdin: "", args: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.run(t, "", "stores", "add", "notes", env.src)
			require.NoError(t, err)

			_, err = env.run(t, tt.stdin, append([]string{"stores", "reset"}, tt.args...)...)
			out, listErr := env.run(t, "", "stores", "list")
			require.NoError(t, listErr)

			if tt.wantErr {
				assert.True(t, tomeerr.HasCode(err, tomeerr.CodeCLIInputInvalid))
				assert.Contains(t, out, "notes")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "No stores registered.\n", out)
		})
	}
}
