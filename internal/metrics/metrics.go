// Package metrics provides Prometheus metrics for scans, validation and
// cross-indexing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of one engine. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	FilesParsed     *prometheus.CounterVec
	ParseFailures   *prometheus.CounterVec
	CacheWrites     *prometheus.CounterVec
	ScanDuration    *prometheus.HistogramVec
	ValidationFails *prometheus.CounterVec
	SchematicsRead  *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests; passing nil registers nothing.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilesParsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpm_files_parsed_total",
				Help: "Total number of library files parsed",
			},
			[]string{"indexer"},
		),
		ParseFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpm_parse_failures_total",
				Help: "Total number of library files that failed to parse",
			},
			[]string{"indexer"},
		),
		CacheWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpm_cache_writes_total",
				Help: "Total number of cache file rewrites",
			},
			[]string{"cache", "status"},
		),
		ScanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kpm_scan_duration_seconds",
				Help:    "Time taken for an indexer scan",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"indexer"},
		),
		ValidationFails: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpm_validation_failures_total",
				Help: "Total number of validation failures reported",
			},
			[]string{"severity", "exempt"},
		),
		SchematicsRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpm_schematics_total",
				Help: "Schematic sheets visited while cross-indexing",
			},
			[]string{"source"},
		),
	}
}

// RecordParse records one parse attempt.
func (m *Metrics) RecordParse(indexer string, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.FilesParsed.WithLabelValues(indexer).Inc()
	} else {
		m.ParseFailures.WithLabelValues(indexer).Inc()
	}
}

// RecordCacheWrite records a cache rewrite.
func (m *Metrics) RecordCacheWrite(cache string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CacheWrites.WithLabelValues(cache, status).Inc()
}

// ObserveScan records the duration of a scan.
func (m *Metrics) ObserveScan(indexer string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScanDuration.WithLabelValues(indexer).Observe(d.Seconds())
}

// RecordValidation records one failure.
func (m *Metrics) RecordValidation(severity string, exempt bool) {
	if m == nil {
		return
	}
	e := "false"
	if exempt {
		e = "true"
	}
	m.ValidationFails.WithLabelValues(severity, e).Inc()
}

// RecordSchematic records a schematic sheet served from the cache or parsed.
func (m *Metrics) RecordSchematic(cached bool) {
	if m == nil {
		return
	}
	source := "parsed"
	if cached {
		source = "cache"
	}
	m.SchematicsRead.WithLabelValues(source).Inc()
}
