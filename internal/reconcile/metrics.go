// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

// Prometheus metrics
var (
	syncFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tome_sync_files_total",
			Help: "Files processed by build and sync runs, by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
	syncRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tome_sync_run_duration_seconds",
			Help:    "Duration of build and sync runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~13.6min
		},
		[]string{"mode"},
	)
)

var tracer = otel.Tracer("github.com/sigil-dev/tome/reconcile")

func init() {
	prometheus.MustRegister(syncFilesTotal, syncRunDuration)
}
