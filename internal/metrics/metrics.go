// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package metrics holds the Prometheus collectors shared by the product
// API client, the aggregator and the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpstreamRequests counts calls to the product API.
	// Labels: op ("search", "detail"), status (HTTP code, or "error").
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutricompare_upstream_requests_total",
		Help: "Product API requests by operation and status",
	}, []string{"op", "status"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nutricompare_upstream_request_duration_seconds",
		Help:    "Product API request latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"op"})

	// LimiterWait observes how long outbound calls were held back by the
	// rolling-window limiter.
	LimiterWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nutricompare_limiter_wait_seconds",
		Help:    "Time spent waiting for the outbound rate limiter",
		Buckets: []float64{0, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
	})

	// AbandonedUnits counts leaves (aggregation) and products (price
	// history) skipped after an upstream failure.
	AbandonedUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutricompare_abandoned_units_total",
		Help: "Leaf categories or products skipped after an upstream failure",
	}, []string{"stage"})

	AggregatedProducts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nutricompare_aggregated_products",
		Help:    "Unique products returned per aggregation",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	// QuotaRejections counts searches refused by the daily free allowance.
	QuotaRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutricompare_quota_rejections_total",
		Help: "Searches refused because the daily allowance was used",
	}, []string{"mode"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutricompare_http_requests_total",
		Help: "HTTP requests served by method and status",
	}, []string{"method", "status"})
)

// Status renders an HTTP status code as a label value; 0 means the request
// never produced a response.
func Status(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
