//go:build !linux

package drivers

import (
	"context"

	"pulto/config"
	"pulto/metrics"
)

// SocketCAN needs Linux, elsewhere it fails at Init.
type SocketCAN struct {
	*config.SocketCANFlags
}

func NewSocketCAN(flags *config.SocketCANFlags, _ Decoder, _ *Channels, _ *metrics.Metrics, _ string) *SocketCAN {
	return &SocketCAN{flags}
}

func (p *SocketCAN) Init() error {
	return ErrUnsupported
}

func (p *SocketCAN) Run(context.Context) error {
	return ErrUnsupported
}

func (p *SocketCAN) Close() error {
	return nil
}
