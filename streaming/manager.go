package streaming

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"pulto/events"
	"pulto/generators"
	"pulto/metrics"
	"pulto/models"
)

var (
	ErrNoStreams       = errors.New("no streams configured")
	ErrNoChannelReader = errors.New("device streams need a driver but none is configured")
	ErrNotStreaming    = errors.New("not streaming")
)

const managerLogPrefix = "[streaming] "

func managerLogf(format string, args ...any) {
	log.Printf(managerLogPrefix+format, args...)
}

// Manager owns every data stream and its generation task. The UI only ever sees snapshots.
type Manager struct {
	channels ChannelReader
	hub      *events.EventHub
	metrics  *metrics.Metrics

	// lifecycle serialises start and stop so their waits don't interleave.
	lifecycle sync.Mutex

	mu      sync.RWMutex
	streams map[string]*dataStream
	// order holds stream ids sorted, for stable iteration.
	order   []string
	running bool
	cancel  context.CancelFunc
	status  Status

	paused atomic.Bool
	wg     sync.WaitGroup
}

// NewManager creates an idle manager. channels may be nil when no driver is running, device streams are then
// rejected. hub may be nil.
func NewManager(channels ChannelReader, hub *events.EventHub, metrics *metrics.Metrics) *Manager {
	return &Manager{
		channels: channels,
		hub:      hub,
		metrics:  metrics,
		streams:  make(map[string]*dataStream),
	}
}

// StartStreaming replaces the current stream set with configs and starts one generation task per stream.
// Invalid configs are rejected before anything running is touched. Calling it while streaming restarts
// from a clean state.
func (m *Manager) StartStreaming(configs []models.StreamConfig) error {
	if len(configs) == 0 {
		return ErrNoStreams
	}
	if err := models.ValidateConfigs(configs); err != nil {
		return err
	}
	streams, err := m.buildStreams(configs)
	if err != nil {
		return err
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.stop()

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.streams = make(map[string]*dataStream, len(streams))
	m.order = make([]string, 0, len(streams))
	for _, s := range streams {
		m.streams[s.config.ID] = s
		m.order = append(m.order, s.config.ID)
	}
	slices.Sort(m.order)
	m.running = true
	m.cancel = cancel
	m.paused.Store(false)
	m.setStatusLocked(Status{State: StateConnecting})
	m.mu.Unlock()

	for _, s := range streams {
		m.wg.Add(1)
		go m.run(ctx, s)
	}
	if m.metrics != nil {
		m.metrics.ActiveStreams.Set(float64(len(streams)))
	}
	managerLogf("started %d streams", len(streams))

	m.refreshStatus()
	return nil
}

func (m *Manager) buildStreams(configs []models.StreamConfig) ([]*dataStream, error) {
	start := time.Now()
	streams := make([]*dataStream, 0, len(configs))
	for i, config := range configs {
		switch config.Category {
		case models.CategoryDevice:
			if m.channels == nil {
				return nil, fmt.Errorf("stream %q: %w", config.ID, ErrNoChannelReader)
			}
			source := NewDeviceSource(config.Channel, m.channels, staleHorizon(config))
			streams = append(streams, newDataStream(config, source, fmt.Errorf("channel %q: %w", config.Channel, ErrNotReady)))
		default:
			source, err := generators.NewSynthetic(config.Category, start, start.UnixNano()+int64(i))
			if err != nil {
				return nil, fmt.Errorf("stream %q: %w", config.ID, err)
			}
			streams = append(streams, newDataStream(config, source, nil))
		}
	}
	return streams, nil
}

// StopStreaming cancels every generation task and returns once all of them have exited, so no buffer is
// written afterwards. Buffers keep their samples for the collector to drain.
func (m *Manager) StopStreaming() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.stop() {
		managerLogf("stopped")
	}
}

func (m *Manager) stop() bool {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return false
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	m.paused.Store(false)
	if m.metrics != nil {
		m.metrics.ActiveStreams.Set(0)
	}
	m.refreshStatus()
	return true
}

// Pause keeps the generation tasks alive but skips producing samples until Resume.
func (m *Manager) Pause() error {
	if !m.IsStreaming() {
		return ErrNotStreaming
	}
	if !m.paused.Swap(true) {
		managerLogf("paused")
	}
	m.refreshStatus()
	return nil
}

func (m *Manager) Resume() error {
	if !m.IsStreaming() {
		return ErrNotStreaming
	}
	if m.paused.Swap(false) {
		managerLogf("resumed")
	}
	m.refreshStatus()
	return nil
}

func (m *Manager) IsStreaming() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) IsPaused() bool {
	return m.IsStreaming() && m.paused.Load()
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// DataStreams returns a snapshot of every stream keyed by id.
func (m *Manager) DataStreams() map[string]StreamState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]StreamState, len(m.streams))
	for id, s := range m.streams {
		out[id] = s.snapshot(m.running)
	}
	return out
}

// Configs returns the configs of the current stream set, sorted by id.
func (m *Manager) Configs() []models.StreamConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.StreamConfig, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.streams[id].config)
	}
	return out
}

// Drain empties every buffer, oldest sample first, and hands each non-empty batch to visit.
// Streams are visited in id order. visit runs without any manager lock held.
func (m *Manager) Drain(visit func(streamID string, samples []models.Sample)) {
	m.mu.RLock()
	streams := make([]*dataStream, 0, len(m.order))
	for _, id := range m.order {
		streams = append(streams, m.streams[id])
	}
	m.mu.RUnlock()

	for _, s := range streams {
		if samples := s.drain(); len(samples) > 0 {
			visit(s.config.ID, samples)
		}
	}
}

func (m *Manager) run(ctx context.Context, s *dataStream) {
	defer m.wg.Done()

	ticker := time.NewTicker(s.config.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			// Both cases can be ready at once, don't write after a stop.
			if ctx.Err() != nil {
				return
			}
			if m.paused.Load() {
				continue
			}
			m.tick(s, now)
		}
	}
}

func (m *Manager) tick(s *dataStream, now time.Time) {
	sample, err := s.source.Next(now)
	changed, evicted := s.record(sample, err)

	id := s.config.ID
	if m.metrics != nil {
		switch {
		case err != nil && !errors.Is(err, ErrNotReady):
			m.metrics.StreamErrors.WithLabelValues(id).Inc()
		case err == nil:
			m.metrics.SamplesGenerated.WithLabelValues(id).Inc()
			if evicted {
				m.metrics.SamplesOverwritten.WithLabelValues(id).Inc()
			}
		}
	}

	if !changed {
		return
	}
	if err != nil && !errors.Is(err, ErrNotReady) {
		managerLogf("stream %s failed: %s", id, err)
		if m.hub != nil {
			m.hub.Broadcast(&events.Event{Kind: events.StreamError, StreamID: id, Timestamp: now, Value: err.Error()})
		}
	} else if err == nil {
		managerLogf("stream %s producing data", id)
	}
	m.refreshStatus()
}

// refreshStatus derives the aggregate status from the streams and publishes it if it changed.
func (m *Manager) refreshStatus() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStatusLocked(m.computeStatusLocked())
}

func (m *Manager) computeStatusLocked() Status {
	if !m.running {
		return Status{State: StateIdle}
	}
	if m.paused.Load() {
		return Status{State: StatePaused}
	}
	connecting := false
	for _, id := range m.order {
		state, err := m.streams[id].state()
		switch state {
		case StateError:
			return Status{State: StateError, Message: fmt.Sprintf("stream %s: %s", id, err)}
		case StateConnecting:
			connecting = true
		}
	}
	if connecting {
		return Status{State: StateConnecting}
	}
	return Status{State: StateStreaming}
}

func (m *Manager) setStatusLocked(status Status) {
	if status == m.status {
		return
	}
	m.status = status
	managerLogf("status %s", status)
	if m.hub != nil {
		m.hub.Broadcast(&events.Event{Kind: events.StatusChanged, Timestamp: time.Now(), Value: status})
	}
}
