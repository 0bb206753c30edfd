package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"pulto/collector"
)

type DriverType string

const (
	None      DriverType = "none"
	Replay    DriverType = "replay"
	Arduino   DriverType = "arduino"
	SocketCAN DriverType = "socket-can"
)

type Flags struct {
	Driver DriverType
	Addr   string
	// StreamsPath points at a YAML stream set, empty uses the built in one.
	StreamsPath string
	// AutoStart begins streaming as soon as the server is up.
	AutoStart bool
	LogDir    string
}

type CollectorFlags struct {
	Interval   time.Duration
	TimeWindow time.Duration
	MaxPoints  int
}

type SerialFlags struct {
	SerialPort string
	BaudRate   int
}

type ReplayFlags struct {
	Path       string
	Speed      float64
	Loop       bool
	SkipFrames int
}

type SocketCANFlags struct {
	SocketCanAddr string
}

// AllFlags bundles everything parsed from the command line.
type AllFlags struct {
	*Flags
	Collector *CollectorFlags
	Serial    *SerialFlags
	Replay    *ReplayFlags
	SocketCAN *SocketCANFlags
}

const DEFAULT_BAUD_RATE = 115200

func GetFlags() *AllFlags {
	all, err := ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return all
}

func ParseFlags(fs *flag.FlagSet, args []string) (*AllFlags, error) {
	flags := &Flags{}
	var driverStr string
	fs.StringVar(&driverStr, "driver", string(None), "driver used to feed device streams (none, arduino, replay, socket-can)")
	fs.StringVar(&flags.Addr, "addr", ":8080", "http listen address")
	fs.StringVar(&flags.StreamsPath, "streams", "", "path to a YAML stream set, built in streams when empty")
	fs.BoolVar(&flags.AutoStart, "autostart", true, "start streaming on launch")
	fs.StringVar(&flags.LogDir, "log-dir", "logs", "directory for raw driver logs")

	collectorFlags := &CollectorFlags{}
	fs.DurationVar(&collectorFlags.Interval, "collect-interval", collector.DefaultInterval, "how often buffers are drained for display")
	fs.DurationVar(&collectorFlags.TimeWindow, "time-window", collector.DefaultTimeWindow, "how much history the dashboard keeps")
	fs.IntVar(&collectorFlags.MaxPoints, "max-points", collector.DefaultMaxPoints, "cap on displayed points across all streams (0 = no cap)")

	serial := &SerialFlags{}
	fs.StringVar(&serial.SerialPort, "serial-port", "auto", "serial device path or 'auto'")
	fs.IntVar(&serial.BaudRate, "baud", DEFAULT_BAUD_RATE, "baud rate")

	replay := &ReplayFlags{}
	fs.StringVar(&replay.Path, "replay", "", "Path to .bin to replay")
	fs.Float64Var(&replay.Speed, "replay-speed", 1.0, "Replay speed multiplier (0 = as fast as possible)")
	fs.BoolVar(&replay.Loop, "replay-loop", false, "Loop replay at EOF")
	fs.IntVar(&replay.SkipFrames, "replay-skip-frames", 0, "Skips X amount of frames from start")

	socketCAN := &SocketCANFlags{}
	fs.StringVar(&socketCAN.SocketCanAddr, "socket-can-address", "can0", "Socket CAN bus address")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	flags.Driver = DriverType(driverStr)
	switch flags.Driver {
	case None, Replay, Arduino, SocketCAN:
	default:
		return nil, fmt.Errorf("unsupported driver type: %s", flags.Driver)
	}
	if flags.Driver == Replay && replay.Path == "" {
		return nil, fmt.Errorf("driver %s needs -replay", Replay)
	}
	if collectorFlags.MaxPoints < 0 {
		return nil, fmt.Errorf("max-points must not be negative, got %d", collectorFlags.MaxPoints)
	}

	return &AllFlags{
		Flags:     flags,
		Collector: collectorFlags,
		Serial:    serial,
		Replay:    replay,
		SocketCAN: socketCAN,
	}, nil
}
