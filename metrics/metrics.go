package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pulto"

// Metrics holds the collectors for streaming and collection. Construct one per process and pass it down.
type Metrics struct {
	SamplesGenerated   *prometheus.CounterVec
	SamplesOverwritten *prometheus.CounterVec
	StreamErrors       *prometheus.CounterVec
	ActiveStreams      prometheus.Gauge
	CollectorPoints    prometheus.Gauge
	PointsPruned       *prometheus.CounterVec
	DriverFrames       *prometheus.CounterVec
}

// New creates the metrics and registers them on reg. A nil reg skips registration, handy in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SamplesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "samples_generated_total",
			Help:      "Samples written into stream buffers.",
		}, []string{"stream"}),
		SamplesOverwritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "samples_overwritten_total",
			Help:      "Samples evicted from a full buffer before being drained.",
		}, []string{"stream"}),
		StreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Ticks on which a stream failed to produce a sample.",
		}, []string{"stream"}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active",
			Help:      "Streams with a running generation task.",
		}),
		CollectorPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "points",
			Help:      "Chart points currently held for display.",
		}),
		PointsPruned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "points_pruned_total",
			Help:      "Chart points discarded, by reason (window or cap).",
		}, []string{"reason"}),
		DriverFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "frames_total",
			Help:      "Frames received by device drivers, by driver and result.",
		}, []string{"driver", "result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SamplesGenerated,
			m.SamplesOverwritten,
			m.StreamErrors,
			m.ActiveStreams,
			m.CollectorPoints,
			m.PointsPruned,
			m.DriverFrames,
		)
	}
	return m
}
