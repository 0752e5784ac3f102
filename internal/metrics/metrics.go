// Package metrics provides Prometheus metrics for the client engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	listingRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudnest_listing_refreshes_total",
			Help: "Listing cache refreshes by outcome",
		},
		[]string{"status"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudnest_uploads_total",
			Help: "Upload jobs by outcome",
		},
		[]string{"status"},
	)

	uploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudnest_upload_bytes_total",
			Help: "Bytes pushed to the blob store",
		},
	)

	uploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cloudnest_upload_duration_seconds",
			Help:    "Wall time of the full two-phase upload",
			Buckets: prometheus.DefBuckets,
		},
	)

	compressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudnest_compressions_total",
			Help: "Per-file compression operations by outcome",
		},
		[]string{"status"},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudnest_mutations_total",
			Help: "Single-item mutations by operation and outcome",
		},
		[]string{"op", "status"},
	)

	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudnest_content_cache_hits_total",
			Help: "Local content cache hits",
		},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudnest_content_cache_misses_total",
			Help: "Local content cache misses",
		},
	)
)

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordListingRefresh records one listing refresh.
func RecordListingRefresh(ok bool) {
	listingRefreshes.WithLabelValues(status(ok)).Inc()
}

// RecordUpload records a finished upload job.
func RecordUpload(ok bool, bytes int64, elapsed time.Duration) {
	uploadsTotal.WithLabelValues(status(ok)).Inc()
	if ok {
		uploadBytes.Add(float64(bytes))
	}
	uploadDuration.Observe(elapsed.Seconds())
}

// RecordCompression records one per-file compression outcome.
func RecordCompression(ok bool) {
	compressionsTotal.WithLabelValues(status(ok)).Inc()
}

// RecordMutation records a favorite/rename/delete outcome.
func RecordMutation(op string, ok bool) {
	mutationsTotal.WithLabelValues(op, status(ok)).Inc()
}

// RecordCacheHit records a local content cache hit or miss.
func RecordCacheHit(hit bool) {
	if hit {
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr. Blocks; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
