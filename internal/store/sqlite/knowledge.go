// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/tome/internal/store"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
	"github.com/sigil-dev/tome/pkg/types"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.KnowledgeStore = (*KnowledgeStore)(nil)

// KnowledgeStore implements store.KnowledgeStore with a row table for entry
// data and a vec0 virtual table holding both embeddings under the same rowid.
type KnowledgeStore struct {
	db         *sql.DB
	embedder   store.Embedder
	dimensions int
	logger     *slog.Logger

	// writeMu serializes every mutation; readers go straight to the pool.
	writeMu sync.Mutex
}

// NewKnowledgeStore opens (or creates) the knowledge database at dbPath.
// A database created with a different dimensionality is rejected.
func NewKnowledgeStore(dbPath string, embedder store.Embedder, dimensions int) (*KnowledgeStore, error) {
	if embedder == nil {
		return nil, tomeerr.New(tomeerr.CodeStoreEntryInvalidInput, "knowledge store requires an embedder")
	}
	if dimensions <= 0 {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreSchemaInvalid, "vector dimensions must be positive, got %d", dimensions)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrateKnowledge(db, dimensions); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &KnowledgeStore{
		db:         db,
		embedder:   embedder,
		dimensions: dimensions,
		logger:     slog.Default(),
	}, nil
}

const entriesDDL = `
CREATE TABLE IF NOT EXISTS knowledge_base (
	id      INTEGER PRIMARY KEY,
	path    TEXT NOT NULL UNIQUE,
	title   TEXT NOT NULL,
	content TEXT NOT NULL,
	type    TEXT NOT NULL DEFAULT 'text'
)`

func vectorsDDL(dimensions int) string {
	return fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_knowledge_base USING vec0(title_embedding float[%d], content_embedding float[%d])`,
		dimensions, dimensions,
	)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func createTables(ctx context.Context, ex execer, dimensions int) error {
	if _, err := ex.ExecContext(ctx, entriesDDL); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "creating knowledge_base table: %w", err)
	}
	if _, err := ex.ExecContext(ctx, vectorsDDL(dimensions)); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "creating vec_knowledge_base virtual table: %w", err)
	}
	return nil
}

func migrateKnowledge(db *sql.DB, dimensions int) error {
	ctx := context.Background()

	const metaDDL = `
CREATE TABLE IF NOT EXISTS kb_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	if _, err := db.ExecContext(ctx, metaDDL); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "creating kb_meta table: %w", err)
	}

	var stored string
	err := db.QueryRowContext(ctx, `SELECT value FROM kb_meta WHERE key = 'dimensions'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO kb_meta(key, value) VALUES ('dimensions', ?)`, strconv.Itoa(dimensions)); err != nil {
			return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "recording vector dimensions: %w", err)
		}
	case err != nil:
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "reading vector dimensions: %w", err)
	default:
		if stored != strconv.Itoa(dimensions) {
			return tomeerr.Errorf(tomeerr.CodeStoreSchemaInvalid,
				"store was built with %s-dimensional embeddings, configured for %d; rebuild the store", stored, dimensions)
		}
	}

	return createTables(ctx, db, dimensions)
}

// Close closes the underlying database connection.
func (k *KnowledgeStore) Close() error {
	return k.db.Close()
}

// Dimensions returns the embedding length every stored vector has.
func (k *KnowledgeStore) Dimensions() int {
	return k.dimensions
}

// embedPair computes the title and content embeddings. It runs before any
// transaction is opened so a failed call never leaves a partial write.
func (k *KnowledgeStore) embedPair(ctx context.Context, title, content string) (titleBlob, contentBlob []byte, err error) {
	titleVec, err := k.embedder.Embed(ctx, title)
	if err != nil {
		return nil, nil, err
	}
	contentVec, err := k.embedder.Embed(ctx, content)
	if err != nil {
		return nil, nil, err
	}

	if titleBlob, err = k.serialize(titleVec); err != nil {
		return nil, nil, err
	}
	if contentBlob, err = k.serialize(contentVec); err != nil {
		return nil, nil, err
	}
	return titleBlob, contentBlob, nil
}

func (k *KnowledgeStore) serialize(vec []float32) ([]byte, error) {
	if len(vec) != k.dimensions {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreEntryInvalidInput,
			"embedding has %d dimensions, store expects %d", len(vec), k.dimensions)
	}
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "serializing embedding: %w", err)
	}
	return blob, nil
}

func duplicatePath(path string) error {
	return tomeerr.New(tomeerr.CodeStoreEntryDuplicatePath,
		fmt.Sprintf("path %q is already stored", path), tomeerr.FieldPath(path))
}

func entryNotFound(id int64) error {
	return tomeerr.New(tomeerr.CodeStoreEntryNotFound,
		fmt.Sprintf("entry %d not found", id), tomeerr.FieldEntryID(id))
}

func isUniqueViolation(err error) bool {
	var sqlErr sqlite3.Error
	return errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Insert embeds title and content and stores a new entry with its vectors.
func (k *KnowledgeStore) Insert(ctx context.Context, path, title, content string, fileType types.FileType) (int64, error) {
	if path == "" {
		return 0, tomeerr.New(tomeerr.CodeStoreEntryInvalidInput, "entry path must not be empty")
	}
	if content == "" {
		return 0, tomeerr.New(tomeerr.CodeStoreEntryInvalidInput, "entry content must not be empty", tomeerr.FieldPath(path))
	}
	if !fileType.Valid() {
		return 0, tomeerr.New(tomeerr.CodeStoreEntryInvalidInput,
			fmt.Sprintf("unknown file type %q", fileType), tomeerr.FieldPath(path))
	}

	// Cheap pre-check so a duplicate never costs two embedding calls.
	// The UNIQUE constraint below remains the authority.
	if _, err := k.GetByPath(ctx, path); err == nil {
		return 0, duplicatePath(path)
	} else if !tomeerr.IsNotFound(err) {
		return 0, err
	}

	titleBlob, contentBlob, err := k.embedPair(ctx, title, content)
	if err != nil {
		return 0, err
	}

	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO knowledge_base (path, title, content, type) VALUES (?, ?, ?, ?)`,
		path, title, content, string(fileType))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, duplicatePath(path)
		}
		return 0, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "inserting entry %s: %w", path, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "reading inserted id for %s: %w", path, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vec_knowledge_base (rowid, title_embedding, content_embedding) VALUES (?, ?, ?)`,
		id, titleBlob, contentBlob); err != nil {
		return 0, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "inserting vectors for entry %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "committing entry %s: %w", path, err)
	}

	k.logger.Debug("entry inserted", "id", id, "path", path)
	return id, nil
}

// Update re-embeds and replaces an entry's title and content in place.
func (k *KnowledgeStore) Update(ctx context.Context, id int64, title, content string) error {
	if content == "" {
		return tomeerr.New(tomeerr.CodeStoreEntryInvalidInput, "entry content must not be empty", tomeerr.FieldEntryID(id))
	}
	if _, err := k.GetByID(ctx, id); err != nil {
		return err
	}

	titleBlob, contentBlob, err := k.embedPair(ctx, title, content)
	if err != nil {
		return err
	}

	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE knowledge_base SET title = ?, content = ? WHERE id = ?`, title, content, id)
	if err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "updating entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "checking update of entry %d: %w", id, err)
	}
	if n == 0 {
		// Deleted between the existence check and the write.
		return entryNotFound(id)
	}

	// vec0 does not support ON CONFLICT; delete first, then insert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_knowledge_base WHERE rowid = ?`, id); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "deleting old vectors for entry %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vec_knowledge_base (rowid, title_embedding, content_embedding) VALUES (?, ?, ?)`,
		id, titleBlob, contentBlob); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "inserting vectors for entry %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "committing update of entry %d: %w", id, err)
	}

	k.logger.Debug("entry updated", "id", id)
	return nil
}

// Delete removes an entry and its vectors.
func (k *KnowledgeStore) Delete(ctx context.Context, id int64) error {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM knowledge_base WHERE id = ?`, id)
	if err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "deleting entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "checking delete of entry %d: %w", id, err)
	}
	if n == 0 {
		return entryNotFound(id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_knowledge_base WHERE rowid = ?`, id); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "deleting vectors for entry %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "committing delete of entry %d: %w", id, err)
	}

	k.logger.Debug("entry deleted", "id", id)
	return nil
}

// Reset drops and recreates both tables in a single transaction.
func (k *KnowledgeStore) Reset(ctx context.Context) error {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS vec_knowledge_base`); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "dropping vec_knowledge_base: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS knowledge_base`); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "dropping knowledge_base: %w", err)
	}
	if err := createTables(ctx, tx, k.dimensions); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "committing reset: %w", err)
	}

	k.logger.Info("knowledge store reset")
	return nil
}

const entryColumns = `id, title, path, content, type`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*store.Entry, error) {
	var e store.Entry
	var fileType string
	if err := row.Scan(&e.ID, &e.Title, &e.Path, &e.Content, &fileType); err != nil {
		return nil, err
	}
	e.FileType = types.FileType(fileType)
	return &e, nil
}

// GetByID returns the entry with the given id.
func (k *KnowledgeStore) GetByID(ctx context.Context, id int64) (*store.Entry, error) {
	row := k.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM knowledge_base WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entryNotFound(id)
	}
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "getting entry %d: %w", id, err)
	}
	return e, nil
}

// GetByPath returns the entry stored under path.
func (k *KnowledgeStore) GetByPath(ctx context.Context, path string) (*store.Entry, error) {
	row := k.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM knowledge_base WHERE path = ?`, path)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tomeerr.New(tomeerr.CodeStoreEntryNotFound,
			fmt.Sprintf("no entry stored at %q", path), tomeerr.FieldPath(path))
	}
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "getting entry at %s: %w", path, err)
	}
	return e, nil
}

// GetAll returns every entry ordered by id.
func (k *KnowledgeStore) GetAll(ctx context.Context) ([]*store.Entry, error) {
	rows, err := k.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM knowledge_base ORDER BY id`)
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "listing entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*store.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "iterating entries: %w", err)
	}
	return entries, nil
}

// GetAllTitles returns every entry title ordered by id.
func (k *KnowledgeStore) GetAllTitles(ctx context.Context) ([]string, error) {
	rows, err := k.db.QueryContext(ctx, `SELECT title FROM knowledge_base ORDER BY id`)
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "listing titles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "scanning title: %w", err)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "iterating titles: %w", err)
	}
	return titles, nil
}

// Count returns the number of stored entries.
func (k *KnowledgeStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := k.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_base`).Scan(&n); err != nil {
		return 0, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "counting entries: %w", err)
	}
	return n, nil
}

// searchColumns whitelists the vector columns Search may interpolate.
var searchColumns = map[types.SearchField]string{
	types.SearchFieldTitle:   "title_embedding",
	types.SearchFieldContent: "content_embedding",
}

// Search ranks every entry by L2 distance between the query and the chosen
// embedding column (lower = more similar; 0.0 = exact match) and returns up
// to limit of them. Ties are broken by ascending id across the whole table.
// This is a full scan rather than a vec0 KNN query: vec0 caps k at 4096 and
// chooses its own survivors among equal distances.
func (k *KnowledgeStore) Search(ctx context.Context, query string, field types.SearchField, limit int) ([]store.SearchResult, error) {
	if query == "" {
		return nil, tomeerr.New(tomeerr.CodeStoreSearchInvalidInput, "search query must not be empty")
	}
	if limit <= 0 {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreSearchInvalidInput, "search limit must be greater than 0, got %d", limit)
	}
	column, ok := searchColumns[field]
	if !ok {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreSearchInvalidInput, "search field must be one of [title, content], got %q", field)
	}

	vec, err := k.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	blob, err := k.serialize(vec)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT kb.id, kb.title, kb.content, vec_distance_l2(v.%s, ?) AS distance
FROM vec_knowledge_base v
JOIN knowledge_base kb ON kb.id = v.rowid
ORDER BY distance ASC, kb.id ASC
LIMIT ?`, column)

	rows, err := k.db.QueryContext(ctx, q, blob, int64(limit))
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "searching %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	results := []store.SearchResult{}
	for rows.Next() {
		var r store.SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Content, &r.Distance); err != nil {
			return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeStoreDatabaseFailure, "iterating search results: %w", err)
	}

	return results, nil
}
