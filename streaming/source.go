package streaming

import (
	"errors"
	"fmt"
	"time"

	"pulto/models"
)

// DefaultStaleAfter is the shortest time a device channel may go quiet before its stream reports an error.
const DefaultStaleAfter = 2 * time.Second

var (
	// ErrNotReady means a source has nothing to report yet. The stream shows as connecting rather than failed.
	ErrNotReady = errors.New("no data received yet")
	// ErrStale means a device channel stopped updating.
	ErrStale = errors.New("channel data is stale")
)

// Source produces one sample per generation tick.
type Source interface {
	Next(now time.Time) (models.Sample, error)
}

// ChannelReader exposes the latest value drivers have decoded per channel.
type ChannelReader interface {
	Latest(channel string) (models.Reading, bool)
}

type deviceSource struct {
	channel    string
	reader     ChannelReader
	staleAfter time.Duration
}

// NewDeviceSource samples the latest reading of channel on every tick.
func NewDeviceSource(channel string, reader ChannelReader, staleAfter time.Duration) Source {
	return &deviceSource{
		channel:    channel,
		reader:     reader,
		staleAfter: staleAfter,
	}
}

func (d *deviceSource) Next(now time.Time) (models.Sample, error) {
	reading, ok := d.reader.Latest(d.channel)
	if !ok {
		return models.Sample{}, fmt.Errorf("channel %q: %w", d.channel, ErrNotReady)
	}
	if age := now.Sub(reading.Timestamp); d.staleAfter > 0 && age > d.staleAfter {
		return models.Sample{}, fmt.Errorf("channel %q last updated %s ago: %w", d.channel, age.Round(time.Millisecond), ErrStale)
	}
	metadata := map[string]string{
		"category": models.CategoryDevice.String(),
		"channel":  d.channel,
	}
	return models.NewSample(now, reading.Value, nil, metadata), nil
}

// staleHorizon gives slow streams a few ticks of slack before calling their channel stale.
func staleHorizon(config models.StreamConfig) time.Duration {
	return max(DefaultStaleAfter, 5*config.Interval())
}
