// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"sync"

	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// DefaultVectorDimensions is the default embedding dimension (matches OpenAI text-embedding-ada-002).
const DefaultVectorDimensions = 1536

// KnowledgeStoreFactory opens the knowledge store kept in dir.
type KnowledgeStoreFactory func(dir string, embedder Embedder, vectorDims int) (KnowledgeStore, error)

// CatalogFactory opens the store catalog kept under dataPath.
type CatalogFactory func(dataPath string) (Catalog, error)

var (
	knowledgeFactories = map[string]KnowledgeStoreFactory{}
	catalogFactories   = map[string]CatalogFactory{}
	factoriesMu        sync.RWMutex
)

// RegisterBackend registers factory functions for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, ks KnowledgeStoreFactory, cat CatalogFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	knowledgeFactories[name] = ks
	catalogFactories[name] = cat
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Dimensions returns the configured vector dimensionality or the default.
func (c *StorageConfig) Dimensions() int {
	if c == nil || c.VectorDimensions <= 0 {
		return DefaultVectorDimensions
	}
	return c.VectorDimensions
}

// NewKnowledgeStore opens the knowledge store rooted at dir.
func NewKnowledgeStore(cfg *StorageConfig, dir string, embedder Embedder) (KnowledgeStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := knowledgeFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	return factory(dir, embedder, cfg.Dimensions())
}

// NewCatalog opens the global store catalog.
func NewCatalog(cfg *StorageConfig, dataPath string) (Catalog, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := catalogFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	return factory(dataPath)
}
