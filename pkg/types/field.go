// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package types

// SearchField selects which embedding column a similarity search scans.
type SearchField string

const (
	SearchFieldTitle   SearchField = "title"
	SearchFieldContent SearchField = "content"
)

// DefaultSearchField is used when a caller does not name a field.
const DefaultSearchField = SearchFieldContent

// Valid reports whether f names a searchable embedding column.
func (f SearchField) Valid() bool {
	return f == SearchFieldTitle || f == SearchFieldContent
}

// ParseSearchField maps user input to a SearchField. Empty input yields the default.
func ParseSearchField(s string) (SearchField, bool) {
	if s == "" {
		return DefaultSearchField, true
	}
	f := SearchField(s)
	return f, f.Valid()
}
