// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"context"

	"github.com/sigil-dev/tome/pkg/types"
)

// Embedder turns text into a fixed-length vector. The embedding client
// satisfies it; tests substitute deterministic fakes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// KnowledgeStore is one collection of documents plus their title and
// content embeddings. Every mutating call is atomic: the entry row and its
// vectors are written or removed together, never one without the other.
type KnowledgeStore interface {
	// Insert embeds title and content, then stores a new entry. It fails
	// with a duplicate-path conflict if path is already stored.
	Insert(ctx context.Context, path, title, content string, fileType types.FileType) (int64, error)
	// Update re-embeds and replaces title and content, keeping id and path.
	Update(ctx context.Context, id int64, title, content string) error
	Delete(ctx context.Context, id int64) error

	GetByID(ctx context.Context, id int64) (*Entry, error)
	GetByPath(ctx context.Context, path string) (*Entry, error)
	GetAll(ctx context.Context) ([]*Entry, error)
	GetAllTitles(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)

	// Search embeds query and returns up to limit entries nearest to it
	// in the chosen embedding column, ordered by ascending distance.
	Search(ctx context.Context, query string, field types.SearchField, limit int) ([]SearchResult, error)

	// Reset drops every entry and vector, leaving an empty valid store.
	Reset(ctx context.Context) error
	Close() error
}

// Catalog maps human-readable store names to the directories they index.
type Catalog interface {
	Add(ctx context.Context, name, location string) (*StoreRecord, error)
	Get(ctx context.Context, name string) (*StoreRecord, error)
	List(ctx context.Context) ([]*StoreRecord, error)
	Remove(ctx context.Context, name string) error
	Rename(ctx context.Context, oldName, newName string) error
	Reset(ctx context.Context) error
	Close() error
}
