// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"

	"github.com/sigil-dev/tome/internal/collection"
	"github.com/sigil-dev/tome/internal/store"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
	"github.com/sigil-dev/tome/pkg/health"
	"github.com/sigil-dev/tome/pkg/types"
)

// StoreService lists stores and searches one of them.
type StoreService interface {
	List(ctx context.Context) ([]*store.StoreRecord, error)
	Search(ctx context.Context, name, query string, field types.SearchField, limit int) ([]store.SearchResult, error)
}

// EmbeddingHealth reports embedding client bookkeeping.
type EmbeddingHealth interface {
	Metrics() health.Metrics
}

// Services holds dependencies injected into route handlers.
type Services struct {
	stores    StoreService
	embedding EmbeddingHealth // optional
}

// NewServices creates a Services instance. embedding may be nil.
func NewServices(stores StoreService, embedding EmbeddingHealth) (*Services, error) {
	if stores == nil {
		return nil, tomeerr.New(tomeerr.CodeServerRequestInvalid, "store service is required")
	}
	return &Services{stores: stores, embedding: embedding}, nil
}

// CollectionService serves StoreService from a collection.Manager.
type CollectionService struct {
	Manager *collection.Manager
}

func (c CollectionService) List(ctx context.Context) ([]*store.StoreRecord, error) {
	return c.Manager.List(ctx)
}

func (c CollectionService) Search(ctx context.Context, name, query string, field types.SearchField, limit int) ([]store.SearchResult, error) {
	col, err := c.Manager.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return col.Store.Search(ctx, query, field, limit)
}
