package models

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Vec3 is an optional spatial position attached to a sample, used by point cloud views.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Sample is a single timestamped reading produced by a stream. Samples are treated as immutable once created.
type Sample struct {
	Timestamp   time.Time
	Value       float64
	Coordinates *Vec3
	Metadata    map[string]string
}

// NewSample builds a sample, copying coordinates and metadata so later changes by the caller can't leak in.
func NewSample(timestamp time.Time, value float64, coordinates *Vec3, metadata map[string]string) Sample {
	var coords *Vec3
	if coordinates != nil {
		c := *coordinates
		coords = &c
	}
	return Sample{
		Timestamp:   timestamp,
		Value:       value,
		Coordinates: coords,
		Metadata:    maps.Clone(metadata),
	}
}

// ChartDataPoint is the display side projection of a Sample, tagged with the stream it was drained from.
type ChartDataPoint struct {
	ID          uuid.UUID         `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Value       float64           `json:"value"`
	StreamID    string            `json:"streamId"`
	Coordinates *Vec3             `json:"coordinates,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func NewChartDataPoint(streamID string, sample Sample) ChartDataPoint {
	return ChartDataPoint{
		ID:          uuid.New(),
		Timestamp:   sample.Timestamp,
		Value:       sample.Value,
		StreamID:    streamID,
		Coordinates: sample.Coordinates,
		Metadata:    sample.Metadata,
	}
}

// Reading is the latest value a driver has seen on a channel.
type Reading struct {
	Value     float64
	Timestamp time.Time
}

// ChannelValue is one decoded value from a device frame.
type ChannelValue struct {
	Channel string
	Value   float64
}
