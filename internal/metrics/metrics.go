// Package metrics provides Prometheus metrics for wikiexport.
// It counts page fetches, file downloads and bytes written, and measures
// request latency. A run is a short-lived process, so the metrics are
// written once to a node_exporter textfile rather than served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "wikiexport"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the collectors of one run on a private registry.
// All methods are safe on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// PageFetches counts page fetches by outcome.
	PageFetches *prometheus.CounterVec

	// PageFetchDuration measures page fetch latency.
	PageFetchDuration prometheus.Histogram

	// Downloads counts file downloads by outcome.
	Downloads *prometheus.CounterVec

	// DownloadDuration measures file download latency.
	DownloadDuration prometheus.Histogram

	// BytesDownloaded counts file bytes received.
	BytesDownloaded prometheus.Counter

	// PagesExported is the number of pages in the final tree.
	PagesExported prometheus.Gauge

	// LastRunTimestamp is the Unix time the run finished.
	LastRunTimestamp prometheus.Gauge
}

// New creates Metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "page_fetches_total",
			Help:      "Total wiki page fetches by outcome",
		}, []string{"outcome"}),
		PageFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "page_fetch_duration_seconds",
			Help:      "Wiki page fetch latency",
			Buckets:   prometheus.DefBuckets,
		}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "file_downloads_total",
			Help:      "Total attachment downloads by outcome",
		}, []string{"outcome"}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "file_download_duration_seconds",
			Help:      "Attachment download latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Total attachment bytes received",
		}),
		PagesExported: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "pages_exported",
			Help:      "Pages in the exported tree",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last export finished",
		}),
	}

	m.registry.MustRegister(
		m.PageFetches,
		m.PageFetchDuration,
		m.Downloads,
		m.DownloadDuration,
		m.BytesDownloaded,
		m.PagesExported,
		m.LastRunTimestamp,
	)

	return m
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// ObservePageFetch records one page fetch.
func (m *Metrics) ObservePageFetch(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.PageFetches.WithLabelValues(outcome(err)).Inc()
	m.PageFetchDuration.Observe(d.Seconds())
}

// ObserveDownload records one file download of n bytes.
func (m *Metrics) ObserveDownload(d time.Duration, n int64, err error) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(outcome(err)).Inc()
	m.DownloadDuration.Observe(d.Seconds())
	if n > 0 {
		m.BytesDownloaded.Add(float64(n))
	}
}

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(pages int, finished time.Time) {
	if m == nil {
		return
	}
	m.PagesExported.Set(float64(pages))
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// Gatherer returns the registry backing m.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// WriteTextfile writes all metrics in the Prometheus text format to path.
// The file is written atomically, as the node_exporter textfile collector
// expects.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
