// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sigil-dev/tome/internal/store"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// Compile-time interface check.
var _ store.Catalog = (*Catalog)(nil)

// Catalog implements store.Catalog backed by a single SQLite database.
type Catalog struct {
	db *sql.DB
}

// NewCatalog opens (or creates) the catalog database at dbPath.
func NewCatalog(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "opening catalog db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "pinging catalog db: %w", err)
	}

	if err := migrateCatalog(db); err != nil {
		_ = db.Close()
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "migrating catalog db: %w", err)
	}

	return &Catalog{db: db}, nil
}

func migrateCatalog(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS stores (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	location   TEXT NOT NULL,
	created_at TEXT NOT NULL
);`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error { return c.db.Close() }

func storeNotFound(name string) error {
	return tomeerr.New(tomeerr.CodeCatalogStoreNotFound,
		fmt.Sprintf("store %q not found", name), tomeerr.FieldStore(name))
}

func storeConflict(name string) error {
	return tomeerr.New(tomeerr.CodeCatalogStoreConflict,
		fmt.Sprintf("store %q already exists", name), tomeerr.FieldStore(name))
}

func validateStoreName(name string) error {
	if strings.TrimSpace(name) == "" {
		return tomeerr.New(tomeerr.CodeCatalogInvalidInput, "store name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return tomeerr.New(tomeerr.CodeCatalogInvalidInput,
			fmt.Sprintf("store name %q must not contain path separators", name), tomeerr.FieldStore(name))
	}
	return nil
}

// Add records a new store. Names are unique.
func (c *Catalog) Add(ctx context.Context, name, location string) (*store.StoreRecord, error) {
	if err := validateStoreName(name); err != nil {
		return nil, err
	}
	if location == "" {
		return nil, tomeerr.New(tomeerr.CodeCatalogInvalidInput, "store location must not be empty", tomeerr.FieldStore(name))
	}

	created := time.Now().UTC()
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO stores (name, location, created_at) VALUES (?, ?, ?)`,
		name, location, formatTime(created))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storeConflict(name)
		}
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "inserting store %s: %w", name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "reading inserted id for store %s: %w", name, err)
	}

	return &store.StoreRecord{ID: id, Name: name, Location: location, CreatedAt: created}, nil
}

// Get returns the store recorded under name.
func (c *Catalog) Get(ctx context.Context, name string) (*store.StoreRecord, error) {
	const q = `SELECT id, name, location, created_at FROM stores WHERE name = ?`

	var r store.StoreRecord
	var createdAt string
	err := c.db.QueryRowContext(ctx, q, name).Scan(&r.ID, &r.Name, &r.Location, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound(name)
	}
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "getting store %s: %w", name, err)
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "parsing store %s created_at: %w", name, err)
	}
	return &r, nil
}

// List returns every store ordered by name.
func (c *Catalog) List(ctx context.Context) ([]*store.StoreRecord, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name, location, created_at FROM stores ORDER BY name`)
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "listing stores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*store.StoreRecord
	for rows.Next() {
		var r store.StoreRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Name, &r.Location, &createdAt); err != nil {
			return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "scanning store: %w", err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "parsing store %s created_at: %w", r.Name, err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "iterating stores: %w", err)
	}
	return records, nil
}

// Remove deletes the catalog record. Store data on disk is untouched.
func (c *Catalog) Remove(ctx context.Context, name string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM stores WHERE name = ?`, name)
	if err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "removing store %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "checking removal of store %s: %w", name, err)
	}
	if n == 0 {
		return storeNotFound(name)
	}
	return nil
}

// Rename changes a store's name, keeping its id and location.
func (c *Catalog) Rename(ctx context.Context, oldName, newName string) error {
	if err := validateStoreName(newName); err != nil {
		return err
	}

	res, err := c.db.ExecContext(ctx, `UPDATE stores SET name = ? WHERE name = ?`, newName, oldName)
	if err != nil {
		if isUniqueViolation(err) {
			return storeConflict(newName)
		}
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "renaming store %s: %w", oldName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "checking rename of store %s: %w", oldName, err)
	}
	if n == 0 {
		return storeNotFound(oldName)
	}
	return nil
}

// Reset removes every catalog record.
func (c *Catalog) Reset(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM stores`); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "resetting catalog: %w", err)
	}
	return nil
}

// formatTime serialises a time for storage in the database.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
