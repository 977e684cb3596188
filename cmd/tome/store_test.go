// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/tome/internal/config"
	"github.com/sigil-dev/tome/internal/embedding"
	"github.com/sigil-dev/tome/internal/store"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

func newIndexedEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.write(t, "alpha.md", "alpha notes about vectors")
	env.write(t, "beta.txt", "beta notes about sqlite")
	env.write(t, "skip.go", "package skip")

	_, err := env.run(t, "", "stores", "add", "notes", env.src)
	require.NoError(t, err)
	return env
}

func TestStoreBuild(t *testing.T) {
	env := newIndexedEnv(t)

	out, err := env.run(t, "", "store", "build", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "build notes: 2 added, 0 updated, 0 deleted, 0 unchanged")
}

func TestStoreSync_AppliesChanges(t *testing.T) {
	env := newIndexedEnv(t)
	_, err := env.run(t, "", "store", "build", "notes")
	require.NoError(t, err)

	env.write(t, "alpha.md", "alpha notes, revised")
	env.write(t, "gamma.md", "gamma notes")
	require.NoError(t, os.Remove(filepath.Join(env.src, "beta.txt")))

	out, err := env.run(t, "", "store", "sync", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "sync notes: 1 added, 1 updated, 1 deleted, 0 unchanged")

	out, err = env.run(t, "", "store", "sync", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "sync notes: 0 added, 0 updated, 0 deleted, 2 unchanged")
}

func TestStoreSync_DryRunDoesNotApply(t *testing.T) {
	env := newIndexedEnv(t)

	out, err := env.run(t, "", "store", "sync", "notes", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "2 to add")
	assert.Contains(t, out, "+ alpha.md")
	assert.Contains(t, out, "+ beta.txt")
	assert.NotContains(t, out, "skip.go")

	out, err = env.run(t, "", "store", "sync", "notes", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "2 to add", "dry run must leave the store untouched")
}

func TestStoreSync_PrivateFileRemoved(t *testing.T) {
	env := newIndexedEnv(t)
	_, err := env.run(t, "", "store", "build", "notes")
	require.NoError(t, err)

	env.write(t, "alpha.md", "---\nprivate: true\n---\nalpha notes about vectors")

	out, err := env.run(t, "", "store", "sync", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "0 added, 0 updated, 1 deleted, 1 unchanged")
}

// downProvider fails every request.
type downProvider struct{}

func (downProvider) Name() string { return "down" }

func (downProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("503 service unavailable")
}

func TestStoreBuild_FailedFilesReportRunFailure(t *testing.T) {
	env := newIndexedEnv(t)
	embeddingClientFactory = func(cfg *config.Config) (*embedding.Client, error) {
		return embedding.NewClient(downProvider{}, cfg.Embedding.Dimensions,
			embedding.WithRetryPolicy(embedding.RetryPolicy{MaxAttempts: 1}))
	}

	out, err := env.run(t, "", "store", "build", "notes")
	require.Error(t, err)
	assert.True(t, tomeerr.HasCode(err, tomeerr.CodeSyncRunFailure))
	assert.False(t, tomeerr.IsIOUnavailable(err), "embedding failures are not file read failures")
	assert.Contains(t, err.Error(), "2 file(s) failed")
	assert.Contains(t, out, "build notes: 0 added")
}

func TestStoreSync_UnknownStore(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "store", "sync", "ghost")
	assert.True(t, tomeerr.IsNotFound(err))
}

func TestStoreSearch(t *testing.T) {
	env := newIndexedEnv(t)
	_, err := env.run(t, "", "store", "build", "notes")
	require.NoError(t, err)

	out, err := env.run(t, "", "store", "search", "notes", "alpha notes about vectors", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, ") alpha")
	assert.Contains(t, out, "alpha notes about vectors")
	assert.Contains(t, out, "distance: 0.0000")
	assert.NotContains(t, out, "beta")

	out, err = env.run(t, "", "store", "search", "notes", "beta", "--column", "title")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, ") beta"), "exact title match should be listed")
}

func TestStoreSearch_InvalidInput(t *testing.T) {
	env := newIndexedEnv(t)

	_, err := env.run(t, "", "store", "search", "notes", "q", "--column", "body")
	assert.True(t, tomeerr.HasCode(err, tomeerr.CodeCLIInputInvalid))

	_, err = env.run(t, "", "store", "search", "notes", "q", "--limit", "0")
	assert.True(t, tomeerr.HasCode(err, tomeerr.CodeCLIInputInvalid))
}

func TestStoreShow(t *testing.T) {
	env := newIndexedEnv(t)
	_, err := env.run(t, "", "store", "build", "notes")
	require.NoError(t, err)

	out, err := env.run(t, "", "store", "search", "notes", "beta notes about sqlite", "--limit", "1")
	require.NoError(t, err)
	id := strings.TrimPrefix(strings.SplitN(out, ")", 2)[0], "(")

	out, err = env.run(t, "", "store", "show", "notes", id)
	require.NoError(t, err)
	assert.Contains(t, out, "beta.txt [text]")
	assert.Contains(t, out, "beta notes about sqlite")

	_, err = env.run(t, "", "store", "show", "notes", "999")
	assert.True(t, tomeerr.IsNotFound(err))

	_, err = env.run(t, "", "store", "show", "notes", "abc")
	assert.True(t, tomeerr.HasCode(err, tomeerr.CodeCLIInputInvalid))
}

func TestPrintResults_SummarizesContent(t *testing.T) {
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	long := strings.Repeat("x", 400)
	printResults(cmd, []store.SearchResult{{ID: 7, Title: "long", Content: long, Distance: 0.25}})

	out := buf.String()
	assert.Contains(t, out, "(7) long")
	assert.Contains(t, out, strings.Repeat("x", summaryLength)+"...")
	assert.NotContains(t, out, strings.Repeat("x", summaryLength+1))
	assert.Contains(t, out, "distance: 0.2500")

	buf.Reset()
	printResults(cmd, nil)
	assert.Equal(t, "No results.\n", buf.String())
}
