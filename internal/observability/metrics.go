// Package observability provides Prometheus metrics for monitoring the
// capture pipeline on an unattended device.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all metric collectors for the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	MotionEvents       prometheus.Counter
	SessionsTotal      *prometheus.CounterVec
	CaptureErrors      *prometheus.CounterVec
	ClassifyDuration   prometheus.Histogram
	Detections         *prometheus.CounterVec
	UploadsTotal       *prometheus.CounterVec
	CleanupDeletions   prometheus.Counter
	ActiveSessionGauge prometheus.Gauge
}

// NewMetrics creates a Metrics instance on a private registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.MotionEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdfeeder_motion_events_total",
		Help: "Total number of debounced motion events.",
	})
	m.SessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdfeeder_sessions_total",
		Help: "Total number of finalized capture sessions partitioned by gate decision.",
	}, []string{"decision"})
	m.CaptureErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdfeeder_capture_errors_total",
		Help: "Total number of camera capture failures partitioned by stage.",
	}, []string{"stage"})
	m.ClassifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "birdfeeder_classification_duration_seconds",
		Help:    "Time taken to classify a still image.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	m.Detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdfeeder_detections_total",
		Help: "Total number of accepted bird detections partitioned by label.",
	}, []string{"label"})
	m.UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birdfeeder_uploads_total",
		Help: "Total number of artifact uploads partitioned by outcome.",
	}, []string{"outcome"})
	m.CleanupDeletions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "birdfeeder_cleanup_deletions_total",
		Help: "Total number of artifacts removed by retention cleanup.",
	})
	m.ActiveSessionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "birdfeeder_active_session",
		Help: "1 while a capture session is active, 0 while idle.",
	})

	collectors := []prometheus.Collector{
		m.MotionEvents,
		m.SessionsTotal,
		m.CaptureErrors,
		m.ClassifyDuration,
		m.Detections,
		m.UploadsTotal,
		m.CleanupDeletions,
		m.ActiveSessionGauge,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return m, nil
}

// Registry returns the underlying registry for the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
