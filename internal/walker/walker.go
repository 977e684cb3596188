// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walker

import (
	"context"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"

	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// Walker enumerates regular files under a root directory.
type Walker struct {
	root string
}

// New returns a Walker rooted at root.
func New(root string) *Walker {
	return &Walker{root: filepath.Clean(root)}
}

// Root returns the directory the walker enumerates.
func (w *Walker) Root() string { return w.root }

// Walk lazily yields the path of every regular file under the root,
// relative to it and slash-separated. Directories whose name starts with
// "." are not descended into. Each call starts a fresh traversal.
//
// Unreadable subdirectories are yielded as errors, paired with their
// relative path, and skipped; the walk continues. A missing root yields a
// single error with path ".". The walk stops when ctx is done, yielding
// the context error with an empty path.
func (w *Walker) Walk(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield("", ctxErr)
				return filepath.SkipAll
			}

			if err != nil {
				walkErr := tomeerr.Wrap(err, tomeerr.CodeSyncWalkFailure, "walking "+path, tomeerr.FieldPath(path))
				if !yield(w.rel(path), walkErr) {
					return filepath.SkipAll
				}
				if path == w.root {
					return filepath.SkipAll
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if path != w.root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			if !yield(w.rel(path), nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// rel converts a path produced by WalkDir, which always has the root as a
// prefix, into a slash-separated path relative to the root.
func (w *Walker) rel(path string) string {
	r, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(r)
}
