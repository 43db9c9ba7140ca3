package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics are the counters and histograms the API records
type Metrics struct {
	Requests     *prometheus.CounterVec
	Conversions  *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	Detections   *prometheus.CounterVec
	JarAnalyses  *prometheus.CounterVec
	RequestBytes prometheus.Counter
}

// NewMetrics creates the metrics and registers them, along with the Go
// runtime collectors, on a fresh registry.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "convertkit",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		Conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "convertkit",
				Subsystem: "convert",
				Name:      "conversions_total",
				Help:      "Conversions by source format, target format and outcome",
			},
			[]string{"from", "to", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "convertkit",
				Subsystem: "convert",
				Name:      "duration_seconds",
				Help:      "Time spent converting one document",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"to"},
		),
		Detections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "convertkit",
				Subsystem: "detect",
				Name:      "detections_total",
				Help:      "Format detections by result",
			},
			[]string{"format"},
		),
		JarAnalyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "convertkit",
				Subsystem: "jar",
				Name:      "analyses_total",
				Help:      "Archive analyses by mode and jar type",
			},
			[]string{"mode", "jar_type"},
		),
		RequestBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "convertkit",
				Subsystem: "http",
				Name:      "request_bytes_total",
				Help:      "Request body bytes received",
			},
		),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m.Requests, m.Conversions, m.Duration, m.Detections, m.JarAnalyses, m.RequestBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m, reg
}
