// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"time"

	"github.com/sigil-dev/tome/pkg/types"
)

// Entry is one processed document. Embeddings are not carried on the
// record; they live in the vector index under the same ID.
type Entry struct {
	ID       int64
	Path     string // relative to the store root, slash-separated
	Title    string
	Content  string
	FileType types.FileType
}

// SearchResult is a single hit from a similarity search.
type SearchResult struct {
	ID       int64
	Title    string
	Content  string
	Distance float64 // lower = more similar; 0.0 = exact match.
}

// StoreRecord is a catalog row naming a store and the directory it indexes.
type StoreRecord struct {
	ID        int64
	Name      string
	Location  string
	CreatedAt time.Time
}

// ContentSummary returns the first length bytes of content, with "..."
// appended when anything was cut. Cuts never split a UTF-8 sequence.
func ContentSummary(content string, length int) string {
	if length < 0 {
		length = 0
	}
	if len(content) <= length {
		return content
	}
	cut := length
	for cut > 0 && !isRuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
