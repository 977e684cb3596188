// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sigil-dev/tome/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 8

// testDir creates a temp directory for a test and returns cleanup func.
func testDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tome-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testDir(t), name+".db")
}

// hashEmbedder derives a deterministic vector from the text, so equal
// strings embed identically and an exact-text query lands at distance 0.
type hashEmbedder struct {
	dims  int
	calls atomic.Int64
	fail  atomic.Bool
}

var errEmbedDown = errors.New("embedding backend down")

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h.calls.Add(1)
	if h.fail.Load() {
		return nil, errEmbedDown
	}
	f := fnv.New64a()
	_, _ = f.Write([]byte(text))
	r := rand.New(rand.NewPCG(f.Sum64(), 0))
	v := make([]float32, h.dims)
	for i := range v {
		v[i] = r.Float32()
	}
	return v, nil
}

// wrongDimsEmbedder returns vectors one element too long.
type wrongDimsEmbedder struct{ dims int }

func (w wrongDimsEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, w.dims+1), nil
}

func newTestKnowledgeStore(t *testing.T) (*sqlite.KnowledgeStore, *hashEmbedder) {
	t.Helper()
	emb := &hashEmbedder{dims: testDims}
	ks, err := sqlite.NewKnowledgeStore(testDBPath(t, "knowledge"), emb, testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ks.Close() })
	return ks, emb
}

// hookEmbedder runs hook once, on the first Embed call, before delegating.
type hookEmbedder struct {
	inner *hashEmbedder
	fired atomic.Bool
	hook  func()
}

func (h *hookEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if h.hook != nil && h.fired.CompareAndSwap(false, true) {
		h.hook()
	}
	return h.inner.Embed(ctx, text)
}

// assertRowCounts checks that entries and vectors both number want.
func assertRowCounts(t *testing.T, ks *sqlite.KnowledgeStore, want int) {
	t.Helper()
	entries, vectors, err := ks.RowCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, entries, "entry rows")
	assert.Equal(t, want, vectors, "vector rows")
}
