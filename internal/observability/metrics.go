package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "covid_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the metrics pipeline.
type Metrics struct {
	RecordsConsumed prometheus.Counter
	RecordsIngested *prometheus.CounterVec // labels: route={county,unknown,orphan,dropped}
	ParseErrors     prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Feed and report metrics.
	FeedFetchDuration   prometheus.Histogram
	ReportBuildDuration prometheus.Histogram
	ReportsWritten      *prometheus.CounterVec // labels: sink={xlsx,kafka,console}
	SinkErrors          *prometheus.CounterVec // labels: sink
	SnapshotsPublished  prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsConsumed,
		m.RecordsIngested,
		m.ParseErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.FeedFetchDuration,
		m.ReportBuildDuration,
		m.ReportsWritten,
		m.SinkErrors,
		m.SnapshotsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_consumed_total",
			Help:      "Total feed records read from the source.",
		}),
		RecordsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Feed records routed by the aggregator, by route.",
		}, []string{"route"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Total malformed feed records skipped.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the pipeline is ingesting or reporting, 0 otherwise.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of records per batch extracted from the feed.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100, 250, 500, 1000},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-parse-ingest batch cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		FeedFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of the HTTP feed download.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ReportBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_build_duration_seconds",
			Help:      "Duration of building one report's tables and snapshots.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		ReportsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_written_total",
			Help:      "Reports delivered, by sink.",
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Report delivery failures, by sink.",
		}, []string{"sink"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Total snapshot messages written to the sink topic.",
		}),
	}
}
