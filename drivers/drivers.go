package drivers

import (
	"context"
	"errors"
	"time"

	"pulto/metrics"
	"pulto/models"
)

const (
	LOG_NAME             = "RAWLOG"
	LOG_EXT              = ".bin"
	WRITE_EVERY_N_FRAMES = 100
)

var ErrUnsupported = errors.New("driver not supported on this platform")

// Driver feeds decoded device values into a Channels store until its context is cancelled.
type Driver interface {
	Init() error
	Run(ctx context.Context) error
	Close() error
}

// Decoder maps a raw frame onto channel values.
type Decoder interface {
	Decode(id uint32, data []byte) []*models.ChannelValue
}

// sink bundles what every driver needs to publish a frame.
type sink struct {
	name     string
	decoder  Decoder
	channels *Channels
	metrics  *metrics.Metrics
}

func (s *sink) publish(id uint32, data []byte, at time.Time) {
	values := s.decoder.Decode(id, data)
	if len(values) == 0 {
		s.count("unknown")
		return
	}
	s.channels.Publish(values, at)
	s.count("ok")
}

func (s *sink) count(result string) {
	if s.metrics != nil {
		s.metrics.DriverFrames.WithLabelValues(s.name, result).Inc()
	}
}
