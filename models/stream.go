package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Category selects how a stream produces its values.
type Category uint8

const (
	CategoryUnknown Category = iota
	// CategorySensor is a noisy, slowly drifting environmental reading.
	CategorySensor
	// CategoryFinancial is a random walk.
	CategoryFinancial
	// CategoryScientific is a periodic waveform with spatial coordinates.
	CategoryScientific
	// CategoryDevice samples the latest value a hardware driver reported on a channel.
	CategoryDevice
)

var categoryNames = map[Category]string{
	CategorySensor:     "sensor",
	CategoryFinancial:  "financial",
	CategoryScientific: "scientific",
	CategoryDevice:     "device",
}

var (
	ErrEmptyID          = errors.New("stream id is empty")
	ErrDuplicateID      = errors.New("duplicate stream id")
	ErrInvalidFrequency = errors.New("frequency must be a positive number")
	ErrInvalidCapacity  = errors.New("buffer capacity must be at least 1")
	ErrUnknownCategory  = errors.New("unknown stream category")
	ErrMissingChannel   = errors.New("device stream needs a channel")
)

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

func (c Category) MarshalText() ([]byte, error) {
	if _, ok := categoryNames[c]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, c)
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for category, categoryName := range categoryNames {
		if categoryName == name {
			return category, nil
		}
	}
	return CategoryUnknown, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// StreamConfig describes one stream. It is fixed once streaming starts.
type StreamConfig struct {
	// ID is the identifier, unique within a stream set.
	ID string `yaml:"id" json:"id"`
	// Name is shown on the dashboard, falls back to ID.
	Name string `yaml:"name" json:"name"`
	// Category selects the generation formula, or device sampling.
	Category Category `yaml:"category" json:"category"`
	// Frequency is how many samples per second to produce.
	Frequency float64 `yaml:"frequency" json:"frequency"`
	// Capacity is the size of the stream's circular buffer.
	Capacity int `yaml:"capacity" json:"capacity"`
	// Channel is the driver channel a device stream samples.
	Channel string `yaml:"channel,omitempty" json:"channel,omitempty"`
	// Unit of the values, display only.
	Unit string `yaml:"unit,omitempty" json:"unit,omitempty"`
}

func NewStreamConfig(
	id,
	name string,
	category Category,
	frequency float64,
	capacity int,
	unit string,
) StreamConfig {
	return StreamConfig{
		ID:        id,
		Name:      name,
		Category:  category,
		Frequency: frequency,
		Capacity:  capacity,
		Unit:      unit,
	}
}

func (c StreamConfig) DisplayName() string {
	if c.Name == "" {
		return c.ID
	}
	return c.Name
}

// Interval is the time between two generation ticks.
func (c StreamConfig) Interval() time.Duration {
	if c.Frequency <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.Frequency)
}

func (c StreamConfig) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyID
	}
	if c.Frequency <= 0 || math.IsNaN(c.Frequency) || math.IsInf(c.Frequency, 0) {
		return fmt.Errorf("stream %q: %w (got %v)", c.ID, ErrInvalidFrequency, c.Frequency)
	}
	// Anything faster than a nanosecond tick can't be scheduled.
	if c.Interval() <= 0 {
		return fmt.Errorf("stream %q: %w (%v Hz is too fast)", c.ID, ErrInvalidFrequency, c.Frequency)
	}
	if c.Capacity < 1 {
		return fmt.Errorf("stream %q: %w (got %d)", c.ID, ErrInvalidCapacity, c.Capacity)
	}
	if _, ok := categoryNames[c.Category]; !ok {
		return fmt.Errorf("stream %q: %w", c.ID, ErrUnknownCategory)
	}
	if c.Category == CategoryDevice && c.Channel == "" {
		return fmt.Errorf("stream %q: %w", c.ID, ErrMissingChannel)
	}
	return nil
}

// ValidateConfigs checks every config and that ids are unique across the set.
func ValidateConfigs(configs []StreamConfig) error {
	seen := make(map[string]bool, len(configs))
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.ID] {
			return fmt.Errorf("stream %q: %w", c.ID, ErrDuplicateID)
		}
		seen[c.ID] = true
	}
	return nil
}
