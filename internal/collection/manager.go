// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package collection manages named stores: their catalog records, their
// on-disk data directories, and the open KnowledgeStore for each.
package collection

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sigil-dev/tome/internal/store"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// Collection is an opened store together with its catalog record.
type Collection struct {
	Record *store.StoreRecord
	Store  store.KnowledgeStore
}

// Name is the catalog name of the collection.
func (c *Collection) Name() string { return c.Record.Name }

// Location is the directory the collection indexes.
func (c *Collection) Location() string { return c.Record.Location }

// Manager creates, caches, and removes collections.
type Manager struct {
	dataDir  string
	storeCfg *store.StorageConfig
	catalog  store.Catalog
	embedder store.Embedder
	logger   *slog.Logger

	open map[string]*Collection
	mu   sync.RWMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithEmbedder sets the embedder handed to every opened KnowledgeStore.
// Managers without one can list and edit the catalog but cannot Open.
func WithEmbedder(e store.Embedder) Option {
	return func(m *Manager) { m.embedder = e }
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager opens the catalog under dataDir.
func NewManager(dataDir string, storeCfg *store.StorageConfig, opts ...Option) (*Manager, error) {
	cat, err := store.NewCatalog(storeCfg, dataDir)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		dataDir:  dataDir,
		storeCfg: storeCfg,
		catalog:  cat,
		logger:   slog.Default(),
		open:     make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// StoreDir is where the named store keeps its database.
func (m *Manager) StoreDir(name string) string {
	return filepath.Join(m.dataDir, "stores", name)
}

// Add registers a directory under name and creates its data directory.
// location must be an existing directory; it is stored as an absolute path.
func (m *Manager) Add(ctx context.Context, name, location string) (*store.StoreRecord, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, tomeerr.Wrap(err, tomeerr.CodeCatalogInvalidInput, "resolving "+location, tomeerr.FieldStore(name))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, tomeerr.Wrap(err, tomeerr.CodeCatalogInvalidInput, "store location "+abs+" is not accessible", tomeerr.FieldStore(name))
	}
	if !info.IsDir() {
		return nil, tomeerr.New(tomeerr.CodeCatalogInvalidInput, "store location "+abs+" is not a directory", tomeerr.FieldStore(name))
	}

	rec, err := m.catalog.Add(ctx, name, abs)
	if err != nil {
		return nil, err
	}

	dir := m.StoreDir(name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		if rmErr := m.catalog.Remove(ctx, name); rmErr != nil {
			m.logger.Warn("rolling back catalog record", "store", name, "error", rmErr)
		}
		return nil, tomeerr.Errorf(tomeerr.CodeCatalogFilesystemFailure, "creating store directory %s: %w", dir, err)
	}

	m.logger.Info("store added", "store", name, "location", abs)
	return rec, nil
}

// Get returns the catalog record for name.
func (m *Manager) Get(ctx context.Context, name string) (*store.StoreRecord, error) {
	return m.catalog.Get(ctx, name)
}

// List returns every catalog record ordered by name.
func (m *Manager) List(ctx context.Context) ([]*store.StoreRecord, error) {
	return m.catalog.List(ctx)
}

// Open returns (and caches) the Collection for name. The store database is
// created on first access.
func (m *Manager) Open(ctx context.Context, name string) (*Collection, error) {
	m.mu.RLock()
	if c, ok := m.open[name]; ok {
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if c, ok := m.open[name]; ok {
		return c, nil
	}

	rec, err := m.catalog.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if m.embedder == nil {
		return nil, tomeerr.New(tomeerr.CodeEmbeddingRequestInvalid, "no embedder configured", tomeerr.FieldStore(name))
	}

	ks, err := store.NewKnowledgeStore(m.storeCfg, m.StoreDir(name), m.embedder)
	if err != nil {
		return nil, tomeerr.With(err, tomeerr.FieldStore(name))
	}

	c := &Collection{Record: rec, Store: ks}
	m.open[name] = c
	return c, nil
}

// Remove drops name from the catalog. With purge set its data directory is
// deleted as well. The indexed source directory is never touched.
func (m *Manager) Remove(ctx context.Context, name string, purge bool) error {
	if _, err := m.catalog.Get(ctx, name); err != nil {
		return err
	}
	if err := m.closeOne(name); err != nil {
		return err
	}
	if err := m.catalog.Remove(ctx, name); err != nil {
		return err
	}
	if purge {
		if err := m.purge(name); err != nil {
			return err
		}
	}
	m.logger.Info("store removed", "store", name, "purged", purge)
	return nil
}

// Rename changes a store's catalog name and moves its data directory.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) error {
	if err := m.closeOne(oldName); err != nil {
		return err
	}
	if err := m.catalog.Rename(ctx, oldName, newName); err != nil {
		return err
	}

	from, to := m.StoreDir(oldName), m.StoreDir(newName)
	if _, err := os.Stat(from); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.Rename(from, to); err != nil {
		if rbErr := m.catalog.Rename(ctx, newName, oldName); rbErr != nil {
			m.logger.Error("rolling back catalog rename", "store", newName, "error", rbErr)
		}
		return tomeerr.Errorf(tomeerr.CodeCatalogFilesystemFailure, "moving %s to %s: %w", from, to, err)
	}

	m.logger.Info("store renamed", "store", newName, "previous", oldName)
	return nil
}

// Reset empties the catalog. With purge set every store data directory is
// deleted as well.
func (m *Manager) Reset(ctx context.Context, purge bool) error {
	if err := m.Close(); err != nil {
		return err
	}
	if err := m.catalog.Reset(ctx); err != nil {
		return err
	}
	if purge {
		dir := filepath.Join(m.dataDir, "stores")
		if err := os.RemoveAll(dir); err != nil {
			return tomeerr.Errorf(tomeerr.CodeCatalogFilesystemFailure, "removing %s: %w", dir, err)
		}
	}
	return nil
}

// Close closes every open store. The catalog stays usable.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, c := range m.open {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "closing store %s: %w", name, err))
		}
		delete(m.open, name)
	}

	if len(errs) > 0 {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "closing stores: %w", tomeerr.Join(errs...))
	}
	return nil
}

// Shutdown closes every open store and the catalog.
func (m *Manager) Shutdown() error {
	return tomeerr.Join(m.Close(), m.catalog.Close())
}

func (m *Manager) closeOne(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.open[name]
	if !ok {
		return nil
	}
	delete(m.open, name)
	if err := c.Store.Close(); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "closing store %s: %w", name, err)
	}
	return nil
}

func (m *Manager) purge(name string) error {
	dir := m.StoreDir(name)
	if err := os.RemoveAll(dir); err != nil {
		return tomeerr.Errorf(tomeerr.CodeCatalogFilesystemFailure, "removing %s: %w", dir, err)
	}
	return nil
}
