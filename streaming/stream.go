package streaming

import (
	"errors"
	"sync"
	"time"

	"pulto/buffer"
	"pulto/models"
)

// StreamState is a read-only snapshot of one stream for status displays.
type StreamState struct {
	Config      models.StreamConfig `json:"config"`
	State       State               `json:"state"`
	Size        int                 `json:"size"`
	Capacity    int                 `json:"capacity"`
	Written     uint64              `json:"written"`
	Overwritten uint64              `json:"overwritten"`
	LastValue   float64             `json:"lastValue"`
	LastSample  time.Time           `json:"lastSample"`
	Error       string              `json:"error,omitempty"`
}

// dataStream couples a config with its source and buffer. The generation task is the only writer and the
// collector the only reader, mu keeps the two apart.
type dataStream struct {
	config models.StreamConfig
	source Source

	mu          sync.Mutex
	buffer      *buffer.Circular[models.Sample]
	written     uint64
	overwritten uint64
	last        *models.Sample
	// err is the result of the latest tick.
	err error
}

func newDataStream(config models.StreamConfig, source Source, initialErr error) *dataStream {
	return &dataStream{
		config: config,
		source: source,
		buffer: buffer.NewCircular[models.Sample](config.Capacity),
		err:    initialErr,
	}
}

// record stores the outcome of a tick. It reports whether the stream's state changed and whether a sample
// was evicted to make room.
func (s *dataStream) record(sample models.Sample, err error) (changed, evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := stateFor(s.err)
	if err != nil {
		s.err = err
		return before != stateFor(err), false
	}

	evicted = s.buffer.Write(sample)
	s.written++
	if evicted {
		s.overwritten++
	}
	s.last = &sample
	s.err = nil
	return before != StateStreaming, evicted
}

// drain empties the buffer oldest first.
func (s *dataStream) drain() []models.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buffer.Size() == 0 {
		return nil
	}
	samples := make([]models.Sample, 0, s.buffer.Size())
	for {
		if _, ok := s.buffer.Peek(); !ok {
			break
		}
		sample, _ := s.buffer.Read()
		samples = append(samples, sample)
	}
	return samples
}

func (s *dataStream) state() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stateFor(s.err), s.err
}

func (s *dataStream) snapshot(running bool) StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := StateIdle
	if running {
		state = stateFor(s.err)
	}
	snapshot := StreamState{
		Config:      s.config,
		State:       state,
		Size:        s.buffer.Size(),
		Capacity:    s.buffer.Capacity(),
		Written:     s.written,
		Overwritten: s.overwritten,
	}
	if s.last != nil {
		snapshot.LastValue = s.last.Value
		snapshot.LastSample = s.last.Timestamp
	}
	if s.err != nil && !errors.Is(s.err, ErrNotReady) {
		snapshot.Error = s.err.Error()
	}
	return snapshot
}

func stateFor(err error) State {
	switch {
	case err == nil:
		return StateStreaming
	case errors.Is(err, ErrNotReady):
		return StateConnecting
	default:
		return StateError
	}
}
