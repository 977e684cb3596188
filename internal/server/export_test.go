// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"time"
)

// TestVisitors wraps the per-IP limiter table for direct unit testing.
type TestVisitors struct{ v *visitors }

// NewTestVisitors builds a limiter table from cfg after validation.
func NewTestVisitors(cfg RateLimitConfig) (*TestVisitors, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TestVisitors{v: &visitors{cfg: cfg, byIP: make(map[string]*visitor)}}, nil
}

func (t *TestVisitors) Allow(ip string, now time.Time) bool { return t.v.allow(ip, now) }

func (t *TestVisitors) Sweep(now time.Time, staleAfter time.Duration) { t.v.sweep(now, staleAfter) }

func (t *TestVisitors) Len() int {
	t.v.mu.Lock()
	defer t.v.mu.Unlock()
	return len(t.v.byIP)
}
