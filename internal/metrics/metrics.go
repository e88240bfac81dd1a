// Package metrics exposes Prometheus collectors for cache writes, bypasses,
// root cleaning and HTTP traffic.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "static_cache"

var (
	cacheWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Total static file writes, by result",
		},
		[]string{"result"},
	)

	cacheBypass = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bypass_total",
			Help:      "Requests passed through without interception, by method",
		},
		[]string{"method"},
	)

	cacheCleans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleans_total",
			Help:      "Root directory resets, by result",
		},
		[]string{"result"},
	)

	requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled",
		},
		[]string{"method", "code"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests handled",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	initOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(cacheWrites, cacheBypass, cacheCleans, requestTotal, requestDuration)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(method, code string, d time.Duration) {
	requestTotal.WithLabelValues(method, code).Inc()
	requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func IncWrite(ok bool) {
	cacheWrites.WithLabelValues(result(ok)).Inc()
}

func IncBypass(method string) {
	cacheBypass.WithLabelValues(method).Inc()
}

func IncClean(ok bool) {
	cacheCleans.WithLabelValues(result(ok)).Inc()
}

// WriteCount returns the current value of the write counter, for diagnostics.
func WriteCount(ok bool) float64 {
	return counterValue(cacheWrites.WithLabelValues(result(ok)))
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
