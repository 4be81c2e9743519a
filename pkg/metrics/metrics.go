// Package metrics provides Prometheus metrics for vpbadge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts scans by trigger kind.
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vpbadge",
			Name:      "scans_total",
			Help:      "Total number of scans",
		},
		[]string{"trigger"},
	)

	// ScanDuration measures scan duration.
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vpbadge",
			Name:      "scan_duration_seconds",
			Help:      "Duration of scans in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	// DecisionsTotal counts badge decisions.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vpbadge",
			Name:      "decisions_total",
			Help:      "Total number of marker decisions",
		},
		[]string{"type", "role", "state"},
	)

	// PagesWrittenTotal counts rewritten pages.
	PagesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vpbadge",
			Name:      "pages_written_total",
			Help:      "Total number of pages written back",
		},
	)

	// PageErrorsTotal counts per-page failures by error type.
	PageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vpbadge",
			Name:      "page_errors_total",
			Help:      "Total number of page processing errors",
		},
		[]string{"error_type"},
	)

	// MetadataFallbackTotal counts metadata fields resolved by fallback.
	MetadataFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vpbadge",
			Name:      "metadata_fallback_total",
			Help:      "Total number of metadata fields that fell back to defaults",
		},
		[]string{"field"},
	)
)

// RecordScan records a finished scan.
func RecordScan(trigger string, duration float64) {
	ScansTotal.WithLabelValues(trigger).Inc()
	ScanDuration.WithLabelValues(trigger).Observe(duration)
}

// RecordDecision records one marker decision.
func RecordDecision(markerType, role string, visible bool) {
	state := "suppressed"
	if visible {
		state = "visible"
	}
	DecisionsTotal.WithLabelValues(markerType, role, state).Inc()
}

// RecordPageWritten records a page write.
func RecordPageWritten() {
	PagesWrittenTotal.Inc()
}

// RecordPageError records a page failure.
func RecordPageError(errorType string) {
	PageErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordMetadataFallback records a metadata field that used its default.
func RecordMetadataFallback(field string) {
	MetadataFallbackTotal.WithLabelValues(field).Inc()
}
