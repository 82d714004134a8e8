// Copyright 2015 Matthew Holt and The Caddy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package obsmetrics exposes bob's process-level metrics as a
// Prometheus collector set: request counts and latencies, rate-limit
// rejections, and FastCGI pool occupancy. These are ambient
// observability, not part of the request-pipeline core's semantics.
package obsmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts completed requests by virtual server and
	// status class.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bob",
		Name:      "requests_total",
		Help:      "Total HTTP requests handled, by server name and status.",
	}, []string{"server", "status"})

	// RequestDuration observes end-to-end pipeline latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bob",
		Name:      "request_duration_seconds",
		Help:      "Request handling latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"server"})

	// RateLimitRejections counts requests rejected by the rate-limit
	// middleware.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bob",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the rate-limit middleware, by server name.",
	}, []string{"server"})

	// FastCGIPoolIdle gauges idle connections held by each FastCGI
	// handler's pool.
	FastCGIPoolIdle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bob",
		Name:      "fastcgi_pool_idle",
		Help:      "Idle FastCGI connections currently held in the pool.",
	}, []string{"backend"})
)

// ObserveRequest records one completed request for the histogram and
// counter collectors.
func ObserveRequest(server string, status int, elapsed time.Duration) {
	RequestDuration.WithLabelValues(server).Observe(elapsed.Seconds())
	RequestsTotal.WithLabelValues(server, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}

// Handler returns the HTTP handler exposing the metrics in Prometheus
// text format, intended to be mounted on an internal-only listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
