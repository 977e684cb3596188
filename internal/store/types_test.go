// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store_test

import (
	"testing"

	"github.com/sigil-dev/tome/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestContentSummary(t *testing.T) {
	assert.Equal(t, "short", store.ContentSummary("short", 256))
	assert.Equal(t, "abc...", store.ContentSummary("abcdef", 3))
	assert.Equal(t, "...", store.ContentSummary("abcdef", 0))
	// "é" is two bytes; cutting inside it backs off to the rune start.
	assert.Equal(t, "a...", store.ContentSummary("aé", 2))
}
