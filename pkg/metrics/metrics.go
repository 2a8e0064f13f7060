// Copyright 2025 The fawa Authors
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

// Package metrics exposes Prometheus collectors for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "katalog",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "katalog",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route", "status"},
	)
	sweptObjects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "katalog",
			Name:      "sweeper_objects_total",
			Help:      "Image objects handled by the orphan sweeper.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, sweptObjects)
}

// RecordRequest records one served request. route is the matched route
// template, not the raw path.
func RecordRequest(method, route string, statusCode int, duration time.Duration) {
	status := ClassifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// RecordSweep counts objects removed or failed by one sweeper run.
func RecordSweep(removed, failed int) {
	sweptObjects.WithLabelValues("removed").Add(float64(removed))
	sweptObjects.WithLabelValues("failed").Add(float64(failed))
}

// ClassifyStatus buckets a status code into its class, e.g. "4xx".
func ClassifyStatus(statusCode int) string {
	if statusCode < 100 || statusCode >= 600 {
		return "unknown"
	}
	return strconv.Itoa(statusCode/100) + "xx"
}

func Handler() http.Handler {
	return promhttp.Handler()
}
