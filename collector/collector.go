// Package collector turns buffered stream samples into the time windowed point list the dashboard draws.
package collector

import (
	"context"
	"log"
	"slices"
	"sort"
	"sync"
	"time"

	"pulto/metrics"
	"pulto/models"
)

const (
	DefaultInterval   = 100 * time.Millisecond
	DefaultTimeWindow = 30 * time.Second
	DefaultMaxPoints  = 5000
)

// Drainer empties stream buffers, oldest sample first.
type Drainer interface {
	Drain(visit func(streamID string, samples []models.Sample))
}

// Collector keeps the chart points inside the time window, capped at maxPoints.
type Collector struct {
	drainer Drainer
	// window is how far back from now points are kept, zero keeps everything.
	window time.Duration
	// maxPoints caps the list, zero means no cap.
	maxPoints int
	metrics   *metrics.Metrics

	mu sync.RWMutex
	// points is ordered by timestamp, oldest first.
	points []models.ChartDataPoint
}

func New(drainer Drainer, window time.Duration, maxPoints int, metrics *metrics.Metrics) *Collector {
	return &Collector{
		drainer:   drainer,
		window:    window,
		maxPoints: maxPoints,
		metrics:   metrics,
	}
}

// Run ticks every interval until ctx is done.
func (c *Collector) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}

// Tick drains every buffer into the point list and prunes it against now.
func (c *Collector) Tick(now time.Time) {
	var drained []models.ChartDataPoint
	c.drainer.Drain(func(streamID string, samples []models.Sample) {
		for _, sample := range samples {
			drained = append(drained, models.NewChartDataPoint(streamID, sample))
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(drained) > 0 {
		c.points = append(c.points, drained...)
		// Stable, so each stream keeps its buffer order when timestamps tie.
		slices.SortStableFunc(c.points, func(a, b models.ChartDataPoint) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
	}
	c.pruneLocked(now)

	if c.metrics != nil {
		c.metrics.CollectorPoints.Set(float64(len(c.points)))
	}
}

func (c *Collector) pruneLocked(now time.Time) {
	if c.window > 0 {
		cutoff := now.Add(-c.window)
		expired := sort.Search(len(c.points), func(i int) bool {
			return !c.points[i].Timestamp.Before(cutoff)
		})
		if expired > 0 {
			c.points = slices.Delete(c.points, 0, expired)
			c.countPruned("window", expired)
		}
	}
	if c.maxPoints > 0 && len(c.points) > c.maxPoints {
		excess := len(c.points) - c.maxPoints
		c.points = slices.Delete(c.points, 0, excess)
		c.countPruned("cap", excess)
	}
}

func (c *Collector) countPruned(reason string, n int) {
	if c.metrics != nil {
		c.metrics.PointsPruned.WithLabelValues(reason).Add(float64(n))
	}
	if n > 1000 {
		log.Printf("[collector] pruned %d points (%s)", n, reason)
	}
}

// Points returns a copy of the list, oldest first.
func (c *Collector) Points() []models.ChartDataPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.points)
}

// PointsFor returns a copy of one stream's points, oldest first.
func (c *Collector) PointsFor(streamID string) []models.ChartDataPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.ChartDataPoint
	for _, p := range c.points {
		if p.StreamID == streamID {
			out = append(out, p)
		}
	}
	return out
}

func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points)
}

func (c *Collector) Window() time.Duration {
	return c.window
}

func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points = nil
	if c.metrics != nil {
		c.metrics.CollectorPoints.Set(0)
	}
}
