// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package types

import (
	"path/filepath"
	"strings"
)

// FileType tags an entry with the format of its source file.
type FileType string

const (
	FileTypeText     FileType = "text"
	FileTypeMarkdown FileType = "markdown"
	FileTypeHTML     FileType = "html"
)

// extensionTypes maps lower-cased file extensions to their FileType.
var extensionTypes = map[string]FileType{
	".txt":      FileTypeText,
	".md":       FileTypeMarkdown,
	".markdown": FileTypeMarkdown,
	".html":     FileTypeHTML,
	".htm":      FileTypeHTML,
}

// Valid reports whether t is a recognized file type.
func (t FileType) Valid() bool {
	switch t {
	case FileTypeText, FileTypeMarkdown, FileTypeHTML:
		return true
	default:
		return false
	}
}

// FileTypeFromPath derives the FileType from a file's extension.
// The second return value is false for extensions with no known type.
func FileTypeFromPath(path string) (FileType, bool) {
	ft, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]
	return ft, ok
}

// KnownExtension reports whether ext (with leading dot) maps to a FileType.
func KnownExtension(ext string) bool {
	_, ok := extensionTypes[strings.ToLower(ext)]
	return ok
}
