// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package health

import "time"

// Metrics exposes request bookkeeping for an embedding client. All fields
// are point-in-time snapshots safe to serialize to JSON.
type Metrics struct {
	Provider      string     `json:"provider"`
	InFlight      int64      `json:"in_flight"`
	Completed     int64      `json:"completed"`
	FailureCount  int64      `json:"failure_count"`
	RetryCount    int64      `json:"retry_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	Available     bool       `json:"available"`
}
