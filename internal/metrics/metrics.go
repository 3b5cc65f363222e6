// Package metrics holds the Prometheus collectors of the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_transfers_total",
		Help: "Transfer requests processed, labeled by kind and outcome",
	}, []string{"kind", "outcome"})

	TransferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_transfer_duration_seconds",
		Help:    "Latency distribution of transfer processing",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"kind"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	CollaboratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_collaborator_failures_total",
		Help: "Best-effort deliveries that failed, labeled by collaborator",
	}, []string{"collaborator"})
)
