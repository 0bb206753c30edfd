//go:build linux

package drivers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"go.einride.tech/can/pkg/socketcan"

	"pulto/config"
	"pulto/metrics"
	"pulto/utils"
)

const (
	DialTimeout   = 2 * time.Second
	FlushInterval = 2 * time.Second
	// maxLoggedID is the largest id the raw log format can hold.
	maxLoggedID = 0xFFFF
)

// SocketCAN listens passively on a CAN interface and decodes every frame by its id.
type SocketCAN struct {
	*config.SocketCANFlags
	sink
	logDir string

	conn      net.Conn
	logFile   *os.File
	startTime time.Time

	closeOnce sync.Once
	closeErr  error
}

func NewSocketCAN(flags *config.SocketCANFlags, decoder Decoder, channels *Channels, metrics *metrics.Metrics, logDir string) *SocketCAN {
	return &SocketCAN{
		SocketCANFlags: flags,
		sink:           sink{"socket-can", decoder, channels, metrics},
		logDir:         logDir,
	}
}

func (p *SocketCAN) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), DialTimeout)
	defer cancel()
	conn, err := socketcan.DialContext(ctx, "can", p.SocketCanAddr)
	if err != nil {
		return fmt.Errorf("socketCAN open %s: %w", p.SocketCanAddr, err)
	}
	p.conn = conn

	file, err := utils.CreateNextAvailable(p.logDir, LOG_NAME, LOG_EXT)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open rawlog: %w", err)
	}
	p.logFile = file
	p.startTime = time.Now()
	log.Printf("[driver/socket-can] listening on %s", p.SocketCanAddr)
	return nil
}

func (p *SocketCAN) Run(ctx context.Context) error {
	if p.conn == nil {
		return errors.New("socket-can: Run called before Init")
	}
	writer := bufio.NewWriterSize(p.logFile, 1<<20)
	defer func() {
		_ = writer.Flush()
		_ = p.logFile.Close()
	}()

	stop := context.AfterFunc(ctx, func() { _ = p.Close() })
	defer stop()

	lastFlush := time.Now()
	receiver := socketcan.NewReceiver(p.conn)
	for receiver.Receive() {
		if receiver.HasErrorFrame() {
			p.count("error-frame")
			continue
		}
		frame := receiver.Frame()
		p.publish(frame.ID, frame.Data[:frame.Length], time.Now())

		if frame.ID <= maxLoggedID {
			rec := encodeBinaryFrame(Frame{
				Millis: p.millis(),
				ID:     uint16(frame.ID),
				Data:   append([]byte(nil), frame.Data[:frame.Length]...),
			})
			if _, err := writer.Write(rec); err != nil {
				log.Printf("[driver/socket-can] raw write: %v", err)
			}
		}
		if time.Since(lastFlush) >= FlushInterval {
			_ = writer.Flush()
			lastFlush = time.Now()
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return receiver.Err()
}

func (p *SocketCAN) Close() error {
	p.closeOnce.Do(func() {
		if p.conn != nil {
			p.closeErr = p.conn.Close()
		}
	})
	return p.closeErr
}

func (p *SocketCAN) millis() uint32 {
	return uint32(time.Since(p.startTime) / time.Millisecond)
}
