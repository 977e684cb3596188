// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/sigil-dev/tome/internal/store"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", newKnowledgeStore, newCatalog)
}

func newKnowledgeStore(dir string, embedder store.Embedder, vectorDims int) (store.KnowledgeStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeCatalogFilesystemFailure, "creating store directory %s: %w", dir, err)
	}
	ks, err := NewKnowledgeStore(filepath.Join(dir, "knowledge.db"), embedder, vectorDims)
	if err != nil {
		return nil, err
	}
	return ks, nil
}

func newCatalog(dataPath string) (store.Catalog, error) {
	if err := os.MkdirAll(dataPath, 0o700); err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeCatalogFilesystemFailure, "creating data directory %s: %w", dataPath, err)
	}
	cat, err := NewCatalog(filepath.Join(dataPath, "catalog.db"))
	if err != nil {
		return nil, err
	}
	return cat, nil
}
