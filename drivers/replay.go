package drivers

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"time"

	"pulto/config"
	"pulto/metrics"
)

// Replayer plays a raw log back into the channels, paced by the recorded timestamps.
type Replayer struct {
	*config.ReplayFlags
	sink
}

func NewReplayer(replayFlags *config.ReplayFlags, decoder Decoder, channels *Channels, metrics *metrics.Metrics) *Replayer {
	return &Replayer{
		ReplayFlags: replayFlags,
		sink:        sink{"replay", decoder, channels, metrics},
	}
}

func (r *Replayer) Init() error {
	_, err := os.Stat(r.Path)
	return err
}

func (r *Replayer) Run(ctx context.Context) error {
	for {
		if err := r.playOnce(ctx); err != nil {
			return err
		}
		if !r.Loop || ctx.Err() != nil {
			return nil
		}
	}
}

func (r *Replayer) Close() error {
	return nil
}

func (r *Replayer) playOnce(ctx context.Context) error {
	file, err := os.Open(r.Path)
	if err != nil {
		return err
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			log.Printf("[driver/replay] couldn't close file: %s", err)
		}
	}(file)

	bufferReader := bufio.NewReaderSize(file, 1<<20)

	var (
		first  = true
		prevMS int64
	)

	frameIndex := 0
	for {
		frame, err := readBinaryFrame(bufferReader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				log.Println("[driver/replay] end of replay")
				return nil
			}
			if errors.Is(err, badCrcErr) || errors.Is(err, badLenErr) {
				r.count("bad")
				continue
			}
			return err
		}

		if frameIndex < r.SkipFrames {
			frameIndex++
			continue
		}

		if first {
			first = false
			prevMS = int64(frame.Millis)
		}

		if r.Speed > 0 {
			delta := time.Duration(int64(frame.Millis) - prevMS)
			if delta > 0 {
				timer := time.NewTimer(time.Duration(float64(delta) * float64(time.Millisecond) / r.Speed))
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil
				case <-timer.C:
				}
			}
			prevMS = int64(frame.Millis)
		} else if ctx.Err() != nil {
			return nil
		}

		r.publish(uint32(frame.ID), frame.Data, time.Now())
		frameIndex++
	}
}
