// Package decoders maps raw device frames onto named channels.
package decoders

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"pulto/models"
	"pulto/utils"
)

var (
	ErrBadFieldSize  = errors.New("field size must be 1, 2 or 4 bytes")
	ErrEmptyChannel  = errors.New("field has no channel")
	ErrDuplicateID   = errors.New("duplicate frame id")
	ErrNegativeStart = errors.New("field offset is negative")
)

// Field describes one value packed into a frame payload. value = raw*Scale + Bias.
type Field struct {
	Channel string `yaml:"channel"`
	// Offset is the first payload byte of the field.
	Offset int `yaml:"offset"`
	// Size in bytes, 1, 2 or 4.
	Size int `yaml:"size"`
	// LittleEndian selects byte order for multi byte fields, big endian otherwise.
	LittleEndian bool `yaml:"littleEndian"`
	Signed       bool `yaml:"signed"`
	// Scale defaults to 1 when zero.
	Scale float64 `yaml:"scale"`
	Bias  float64 `yaml:"bias"`
	// Precision rounds the result to this many decimal places when set.
	Precision *uint8 `yaml:"precision"`
}

// FrameSpec lists the fields carried by frames with a given id.
type FrameSpec struct {
	ID     uint32  `yaml:"id"`
	Fields []Field `yaml:"fields"`
}

// Table decodes frames by id. Unknown ids decode to nothing.
type Table struct {
	frames map[uint32][]Field
}

func NewTable(specs []FrameSpec) (*Table, error) {
	t := &Table{frames: make(map[uint32][]Field, len(specs))}
	for _, spec := range specs {
		if _, ok := t.frames[spec.ID]; ok {
			return nil, fmt.Errorf("frame 0x%X: %w", spec.ID, ErrDuplicateID)
		}
		for i, f := range spec.Fields {
			if err := f.validate(); err != nil {
				return nil, fmt.Errorf("frame 0x%X field %d: %w", spec.ID, i, err)
			}
		}
		t.frames[spec.ID] = slices.Clone(spec.Fields)
	}
	return t, nil
}

func (f Field) validate() error {
	if f.Channel == "" {
		return ErrEmptyChannel
	}
	if f.Offset < 0 {
		return ErrNegativeStart
	}
	switch f.Size {
	case 1, 2, 4:
		return nil
	}
	return fmt.Errorf("%w (got %d)", ErrBadFieldSize, f.Size)
}

// Decode extracts every field of frame id that fits in data. Short payloads simply yield fewer values.
func (t *Table) Decode(id uint32, data []byte) []*models.ChannelValue {
	fields, ok := t.frames[id]
	if !ok {
		return nil
	}
	var values []*models.ChannelValue
	for _, f := range fields {
		raw, ok := f.raw(data)
		if !ok {
			continue
		}
		scale := f.Scale
		if scale == 0 {
			scale = 1
		}
		value := raw*scale + f.Bias
		if f.Precision != nil {
			value = utils.RoundToXDp(value, *f.Precision)
		}
		values = append(values, &models.ChannelValue{Channel: f.Channel, Value: value})
	}
	return values
}

func (f Field) raw(data []byte) (float64, bool) {
	end := f.Offset + f.Size
	if end > len(data) {
		return 0, false
	}
	b := data[f.Offset:end]

	var order binary.ByteOrder = binary.BigEndian
	if f.LittleEndian {
		order = binary.LittleEndian
	}

	switch f.Size {
	case 1:
		if f.Signed {
			return float64(int8(b[0])), true
		}
		return float64(b[0]), true
	case 2:
		v := order.Uint16(b)
		if f.Signed {
			return float64(int16(v)), true
		}
		return float64(v), true
	case 4:
		v := order.Uint32(b)
		if f.Signed {
			return float64(int32(v)), true
		}
		return float64(v), true
	}
	return math.NaN(), false
}

// Channels lists every channel the table can produce.
func (t *Table) Channels() []string {
	var out []string
	for _, fields := range t.frames {
		for _, f := range fields {
			if !slices.Contains(out, f.Channel) {
				out = append(out, f.Channel)
			}
		}
	}
	slices.Sort(out)
	return out
}
