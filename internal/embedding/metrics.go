// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics
var (
	inFlightGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tome_embedding_requests_in_flight",
			Help: "Number of embedding requests currently in progress",
		},
	)
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tome_embedding_requests_total",
			Help: "Total embedding requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tome_embedding_retries_total",
			Help: "Total embedding retry attempts by provider",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(inFlightGauge, requestsTotal, retriesTotal)
}
