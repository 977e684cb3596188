// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package walker

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// Defaults for Filter.
const DefaultPrivateMarker = "_private"

// DefaultExtensions are the file types synced when none are configured.
var DefaultExtensions = []string{".txt", ".md"}

// FilterConfig controls which files are eligible for a store.
type FilterConfig struct {
	// Extensions lists processable extensions including the leading dot.
	// Matching is case-insensitive. Empty uses DefaultExtensions.
	Extensions []string
	// PrivateMarker is a path segment that hides everything beneath it.
	// Empty uses DefaultPrivateMarker.
	PrivateMarker string
}

// Filter decides whether a walked file belongs in the store.
type Filter struct {
	root       string
	extensions []string
	marker     string
}

// NewFilter creates a Filter for files under root.
func NewFilter(root string, cfg FilterConfig) *Filter {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	normalized := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		normalized = append(normalized, e)
	}

	marker := cfg.PrivateMarker
	if marker == "" {
		marker = DefaultPrivateMarker
	}

	return &Filter{root: filepath.Clean(root), extensions: normalized, marker: marker}
}

// Root returns the directory relative paths are resolved against.
func (f *Filter) Root() string { return f.root }

// Processable reports whether rel has a configured extension.
func (f *Filter) Processable(rel string) bool {
	return slices.Contains(f.extensions, strings.ToLower(path.Ext(rel)))
}

// InPrivatePath reports whether any segment of rel equals the private marker.
func (f *Filter) InPrivatePath(rel string) bool {
	return slices.Contains(strings.Split(filepath.ToSlash(rel), "/"), f.marker)
}

// IsEligible reports whether the file at rel (relative to the root) should
// be stored. Path and extension checks run before the file is opened; an
// unreadable file returns an IOUnavailable error.
func (f *Filter) IsEligible(rel string) (bool, error) {
	_, ok, err := f.Load(rel)
	return ok, err
}

// Load is IsEligible that also returns the file contents it read. Data is
// nil whenever the file was rejected without being opened.
func (f *Filter) Load(rel string) (data []byte, eligible bool, err error) {
	if f.InPrivatePath(rel) || !f.Processable(rel) {
		return nil, false, nil
	}

	data, err = ReadFile(f.root, rel)
	if err != nil {
		return nil, false, err
	}
	return data, !IsPrivate(data), nil
}

// ReadFile reads rel under root, reporting failures as IOUnavailable.
func ReadFile(root, rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, tomeerr.Wrap(err, tomeerr.CodeSyncFileUnavailable, "reading "+rel, tomeerr.FieldPath(rel))
	}
	return data, nil
}

// IsPrivate reports whether content opens with a YAML frontmatter block
// whose private key is true or "true". Malformed frontmatter is not private.
func IsPrivate(content []byte) bool {
	raw, ok := frontmatter(content)
	if !ok {
		return false
	}

	var fm map[string]any
	if err := yaml.Unmarshal(raw, &fm); err != nil {
		return false
	}

	switch v := fm["private"].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// frontmatter returns the YAML between a leading "---" line and the next
// "---" line.
func frontmatter(content []byte) ([]byte, bool) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return nil, false
	}
	rest := content[4:]
	if bytes.HasPrefix(rest, []byte("---\n")) || bytes.Equal(rest, []byte("---")) {
		return nil, true
	}
	idx := bytes.Index(rest, []byte("\n---"))
	if idx < 0 {
		return nil, false
	}
	after := rest[idx+4:]
	if len(after) > 0 && after[0] != '\n' {
		return nil, false
	}
	return rest[:idx], true
}
