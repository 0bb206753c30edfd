package drivers

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"pulto/config"
	"pulto/metrics"
	"pulto/utils"
)

// Arduino & clones common VIDs
var preferredVIDs = map[string]bool{
	"2341": true, // Arduino
	"2A03": true, // Arduino (older)
	"1A86": true, // CH340
	"10C4": true, // CP210x
	"0403": true, // FTDI
}

// Arduino reads framed telemetry from a USB serial logger.
type Arduino struct {
	*config.SerialFlags
	sink
	logDir string
	port   serial.Port

	closeOnce sync.Once
	closeErr  error
}

func NewArduino(serialFlags *config.SerialFlags, decoder Decoder, channels *Channels, metrics *metrics.Metrics, logDir string) *Arduino {
	return &Arduino{
		SerialFlags: serialFlags,
		sink:        sink{"arduino", decoder, channels, metrics},
		logDir:      logDir,
	}
}

func (a *Arduino) Init() error {
	port, err := getArduinoPort(a.SerialPort, a.BaudRate)
	if err != nil {
		return err
	}
	a.port = port
	return nil
}

func (a *Arduino) Run(ctx context.Context) error {
	if a.port == nil {
		return fmt.Errorf("arduino: Run called before Init")
	}

	file, err := utils.CreateNextAvailable(a.logDir, LOG_NAME, LOG_EXT)
	if err != nil {
		return fmt.Errorf("couldn't open rawlog: %w", err)
	}
	defer func() { _ = file.Close() }()

	logWriter := bufio.NewWriterSize(file, 1<<20)
	defer func() { _ = logWriter.Flush() }()

	// Closing the port is the only way to unblock a pending read.
	stop := context.AfterFunc(ctx, func() { _ = a.Close() })
	defer stop()

	return processBinary(ctx, a.port, &a.sink, logWriter)
}

func (a *Arduino) Close() error {
	if a.port == nil {
		return nil
	}
	a.closeOnce.Do(func() { a.closeErr = a.port.Close() })
	return a.closeErr
}

func getArduinoPort(port string, baud int) (serial.Port, error) {
	// auto-select Arduino-ish port if requested
	if port == "auto" {
		name, err := autoSelectPort()
		if err != nil {
			return nil, fmt.Errorf("auto-select: %w", err)
		}
		port = name
	}
	mode := &serial.Mode{BaudRate: baud}
	serialPort, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("couldn't open serial %s: %w", port, err)
	}
	log.Printf("[driver/arduino] connected to %s @ %d", port, baud)

	return serialPort, nil
}

func autoSelectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("enumerate ports: %w", err)
	}
	return pickPort(ports)
}

// pickPort returns the first USB port with a known Arduino-ish VID.
func pickPort(ports []*enumerator.PortDetails) (string, error) {
	for _, p := range ports {
		if p.IsUSB && preferredVIDs[strings.ToUpper(p.VID)] {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("no arduino serial ports found")
}
