// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientauth_rpc_requests_total",
		Help: "Total number of calls to the external client control API, by operation and result.",
	}, []string{"op", "result"})

	rpcRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clientauth_rpc_request_duration_seconds",
		Help:    "Latency of calls to the external client control API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

// RecordRPC records a finished control API call. result is "ok" or a failure code.
func RecordRPC(op, result string, elapsed time.Duration) {
	if result == "" {
		result = "ok"
	}
	rpcRequestsTotal.WithLabelValues(op, result).Inc()
	rpcRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
