package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"pulto/decoders"
	"pulto/models"
)

const (
	TEMPERATURE_STREAM = "Lab-Temperature"
	HUMIDITY_STREAM    = "Lab-Humidity"
	PRICE_STREAM       = "Spot-Price"
	WAVE_STREAM        = "Oscillator"
	RPM_STREAM         = "RPM"
	THROTTLE_STREAM    = "Throttle"
	COOLANT_STREAM     = "Coolant"
)

const DEFAULT_CAPACITY = 512

// StreamSet is the contents of a streams file: the streams to run and, for device streams, how to decode frames.
type StreamSet struct {
	Streams []models.StreamConfig `yaml:"streams"`
	Frames  []decoders.FrameSpec  `yaml:"frames"`
}

// DefaultStreams are the synthetic streams run when no streams file is given.
func DefaultStreams() []models.StreamConfig {
	return []models.StreamConfig{
		models.NewStreamConfig(TEMPERATURE_STREAM, "Lab temperature", models.CategorySensor, 10, DEFAULT_CAPACITY, "°C"),
		models.NewStreamConfig(HUMIDITY_STREAM, "Lab humidity", models.CategorySensor, 2, DEFAULT_CAPACITY, "%"),
		models.NewStreamConfig(PRICE_STREAM, "Spot price", models.CategoryFinancial, 5, DEFAULT_CAPACITY, "$"),
		models.NewStreamConfig(WAVE_STREAM, "Oscillator", models.CategoryScientific, 30, DEFAULT_CAPACITY, "V"),
	}
}

// DefaultDeviceStreams sample the channels of the default decoder table.
func DefaultDeviceStreams() []models.StreamConfig {
	rpm := models.NewStreamConfig(RPM_STREAM, "Engine rotational speed", models.CategoryDevice, 20, DEFAULT_CAPACITY, "rpm")
	rpm.Channel = decoders.RPM_CHANNEL
	throttle := models.NewStreamConfig(THROTTLE_STREAM, "ECU computed throttle", models.CategoryDevice, 20, DEFAULT_CAPACITY, "%")
	throttle.Channel = decoders.THROTTLE_CHANNEL
	coolant := models.NewStreamConfig(COOLANT_STREAM, "Coolant temperature", models.CategoryDevice, 1, DEFAULT_CAPACITY, "°C")
	coolant.Channel = decoders.COOLANT_CHANNEL
	return []models.StreamConfig{rpm, throttle, coolant}
}

// DefaultStreamSet is used when no streams file is given. Device streams are only included when a driver runs.
func DefaultStreamSet(withDevices bool) *StreamSet {
	set := &StreamSet{
		Streams: DefaultStreams(),
		Frames:  decoders.DefaultFrames(),
	}
	if withDevices {
		set.Streams = append(set.Streams, DefaultDeviceStreams()...)
	}
	return set
}

func LoadStreamSet(path string) (*StreamSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open streams file: %w", err)
	}
	defer func() { _ = file.Close() }()

	set, err := ParseStreamSet(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// ParseStreamSet reads a YAML stream set. Unknown keys are errors so typos don't silently drop settings.
// Missing capacities get DEFAULT_CAPACITY and a missing frames section gets the default decoder table.
func ParseStreamSet(r io.Reader) (*StreamSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	set := &StreamSet{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(set); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse streams: %w", err)
	}

	for i := range set.Streams {
		if set.Streams[i].Capacity == 0 {
			set.Streams[i].Capacity = DEFAULT_CAPACITY
		}
	}
	if set.Frames == nil {
		set.Frames = decoders.DefaultFrames()
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *StreamSet) Validate() error {
	if len(s.Streams) == 0 {
		return errors.New("no streams defined")
	}
	if err := models.ValidateConfigs(s.Streams); err != nil {
		return err
	}
	_, err := decoders.NewTable(s.Frames)
	return err
}

// HasDeviceStreams reports whether any stream needs a driver.
func (s *StreamSet) HasDeviceStreams() bool {
	for _, c := range s.Streams {
		if c.Category == models.CategoryDevice {
			return true
		}
	}
	return false
}

func (s *StreamSet) Decoder() (*decoders.Table, error) {
	return decoders.NewTable(s.Frames)
}
