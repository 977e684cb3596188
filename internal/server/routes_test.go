// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/tome/internal/server"
	"github.com/sigil-dev/tome/internal/store"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
	"github.com/sigil-dev/tome/pkg/types"
)

type searchCall struct {
	name  string
	query string
	field types.SearchField
	limit int
}

type fakeStores struct {
	records []*store.StoreRecord
	results []store.SearchResult
	err     error
	calls   []searchCall
}

func (f *fakeStores) List(context.Context) ([]*store.StoreRecord, error) {
	return f.records, f.err
}

func (f *fakeStores) Search(_ context.Context, name, query string, field types.SearchField, limit int) ([]store.SearchResult, error) {
	f.calls = append(f.calls, searchCall{name, query, field, limit})
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func newStoreServer(t *testing.T, stores *fakeStores) *server.Server {
	t.Helper()
	svc, err := server.NewServices(stores, nil)
	require.NoError(t, err)
	return newTestServer(t, svc)
}

func TestNewServices_RequiresStores(t *testing.T) {
	_, err := server.NewServices(nil, nil)
	assert.Error(t, err)
}

func TestRoutes_ListStores(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stores := &fakeStores{records: []*store.StoreRecord{
		{ID: 1, Name: "notes", Location: "/home/u/notes", CreatedAt: created},
	}}
	srv := newStoreServer(t, stores)

	w := get(t, srv, "/stores")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Stores []server.StoreSummary `json:"stores"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Stores, 1)
	assert.Equal(t, "notes", body.Stores[0].Name)
	assert.Equal(t, "/home/u/notes", body.Stores[0].Location)
	assert.True(t, created.Equal(body.Stores[0].CreatedAt))
}

func TestRoutes_ListStoresFailure(t *testing.T) {
	srv := newStoreServer(t, &fakeStores{err: errors.New("disk gone")})
	assert.Equal(t, http.StatusInternalServerError, get(t, srv, "/stores").Code)
}

func TestRoutes_Search(t *testing.T) {
	stores := &fakeStores{results: []store.SearchResult{
		{ID: 4, Title: "go", Content: "gophers", Distance: 0.12},
		{ID: 9, Title: "rust", Content: "crabs", Distance: 0.5},
	}}
	srv := newStoreServer(t, stores)

	w := get(t, srv, "/stores/notes/search?query=gophers&column=title&limit=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Message string             `json:"message"`
		Data    []server.SearchHit `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2 results", body.Message)
	require.Len(t, body.Data, 2)
	assert.Equal(t, int64(4), body.Data[0].ID)
	assert.InDelta(t, 0.12, body.Data[0].Distance, 1e-9)

	require.Len(t, stores.calls, 1)
	assert.Equal(t, searchCall{"notes", "gophers", types.SearchFieldTitle, 2}, stores.calls[0])
}

func TestRoutes_SearchDefaults(t *testing.T) {
	stores := &fakeStores{}
	srv := newStoreServer(t, stores)

	w := get(t, srv, "/stores/notes/search?query=hello")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data []server.SearchHit `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotNil(t, body.Data)
	assert.Empty(t, body.Data)

	require.Len(t, stores.calls, 1)
	assert.Equal(t, types.SearchFieldContent, stores.calls[0].field)
	assert.Equal(t, 10, stores.calls[0].limit)
}

func TestRoutes_SearchBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing query", "/stores/notes/search"},
		{"blank query", "/stores/notes/search?query=%20%20"},
		{"bad column", "/stores/notes/search?query=x&column=body"},
		{"zero limit", "/stores/notes/search?query=x&limit=0"},
		{"negative limit", "/stores/notes/search?query=x&limit=-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := &fakeStores{}
			srv := newStoreServer(t, stores)

			w := get(t, srv, tt.target)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Empty(t, stores.calls)
		})
	}
}

func TestRoutes_SearchErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown store", tomeerr.New(tomeerr.CodeCatalogStoreNotFound, `store "x" not found`), http.StatusNotFound},
		{"invalid search", tomeerr.New(tomeerr.CodeStoreSearchInvalidInput, "bad"), http.StatusBadRequest},
		{"embedding down", tomeerr.New(tomeerr.CodeEmbeddingUnavailable, "down"), http.StatusServiceUnavailable},
		{"database", tomeerr.New(tomeerr.CodeStoreDatabaseFailure, "locked"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newStoreServer(t, &fakeStores{err: tt.err})
			w := get(t, srv, "/stores/x/search?query=hello")
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
