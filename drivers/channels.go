package drivers

import (
	"maps"
	"sync"
	"time"

	"pulto/models"
)

// Channels holds the latest reading per channel. Drivers write it, device streams sample it.
type Channels struct {
	mu       sync.RWMutex
	readings map[string]models.Reading
}

func NewChannels() *Channels {
	return &Channels{readings: make(map[string]models.Reading)}
}

func (c *Channels) Set(channel string, value float64, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readings[channel] = models.Reading{Value: value, Timestamp: at}
}

func (c *Channels) Publish(values []*models.ChannelValue, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range values {
		c.readings[v.Channel] = models.Reading{Value: v.Value, Timestamp: at}
	}
}

func (c *Channels) Latest(channel string) (models.Reading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.readings[channel]
	return r, ok
}

func (c *Channels) Snapshot() map[string]models.Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.readings)
}
