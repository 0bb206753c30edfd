package drivers

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"pulto/config"
	"pulto/decoders"
	"pulto/metrics"
)

// rpm and coolant frames from the default decoder table
var (
	rpmFrame     = Frame{Millis: 1000, ID: 0x0100, Data: []byte{0x1F, 0x40}}
	coolantFrame = Frame{Millis: 1010, ID: 0x0009, Data: []byte{0x00, 0x7D}}
)

func TestBinaryFrameRoundTrip(t *testing.T) {
	raw := encodeBinaryFrame(rpmFrame)
	assert.Equal(t, []byte{0xAA, 0x55, 0xE8, 0x03, 0x00, 0x00, 0x01, 0x00, 0x02, 0x1F, 0x40}, raw[:11])

	frame, err := readBinaryFrame(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	assert.Equal(t, rpmFrame, frame)
}

func TestReadBinaryFrameResyncs(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0xAA, 0x13, 0xAA})
	buf.Write(encodeBinaryFrame(coolantFrame))

	frame, err := readBinaryFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, coolantFrame, frame)
}

func TestReadBinaryFrameRejectsBadCrc(t *testing.T) {
	raw := encodeBinaryFrame(rpmFrame)
	raw[len(raw)-1] ^= 0xFF
	_, err := readBinaryFrame(bufio.NewReader(bytes.NewReader(raw)))
	assert.ErrorIs(t, err, badCrcErr)

	raw = encodeBinaryFrame(rpmFrame)
	raw[8] = maxFrameData + 1
	_, err = readBinaryFrame(bufio.NewReader(bytes.NewReader(raw)))
	assert.ErrorIs(t, err, badLenErr)
}

func TestReadFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeBinaryFrame(rpmFrame))
	bad := encodeBinaryFrame(coolantFrame)
	bad[len(bad)-1] ^= 0x01
	buf.Write(bad)
	buf.Write(encodeBinaryFrame(coolantFrame))
	// truncated tail
	buf.Write(encodeBinaryFrame(rpmFrame)[:5])

	var frames []Frame
	badCount, err := ReadFrames(&buf, func(f Frame) error {
		frames = append(frames, f)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, badCount)
	assert.Equal(t, []Frame{rpmFrame, coolantFrame}, frames)
}

func testSink(name string) (*sink, *metrics.Metrics) {
	m := metrics.New(nil)
	return &sink{name, decoders.Default(), NewChannels(), m}, m
}

func TestProcessBinaryPublishesAndLogs(t *testing.T) {
	var input bytes.Buffer
	input.Write(encodeBinaryFrame(rpmFrame))
	bad := encodeBinaryFrame(coolantFrame)
	bad[len(bad)-1] ^= 0x01
	input.Write(bad)
	input.Write(encodeBinaryFrame(coolantFrame))
	input.Write(encodeBinaryFrame(Frame{Millis: 1, ID: 0x0777, Data: []byte{1}}))

	out, m := testSink("test")
	var logged bytes.Buffer
	logWriter := bufio.NewWriter(&logged)
	require.NoError(t, processBinary(context.Background(), &input, out, logWriter))
	require.NoError(t, logWriter.Flush())

	rpm, ok := out.channels.Latest(decoders.RPM_CHANNEL)
	require.True(t, ok)
	assert.Equal(t, 2000.0, rpm.Value)
	coolant, ok := out.channels.Latest(decoders.COOLANT_CHANNEL)
	require.True(t, ok)
	assert.Equal(t, 85.0, coolant.Value)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DriverFrames.WithLabelValues("test", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DriverFrames.WithLabelValues("test", "bad")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DriverFrames.WithLabelValues("test", "unknown")))

	// The log only holds good frames, byte for byte.
	var want bytes.Buffer
	want.Write(encodeBinaryFrame(rpmFrame))
	want.Write(encodeBinaryFrame(coolantFrame))
	want.Write(encodeBinaryFrame(Frame{Millis: 1, ID: 0x0777, Data: []byte{1}}))
	assert.Equal(t, want.Bytes(), logged.Bytes())
}

func writeLog(t *testing.T, frames ...Frame) string {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(encodeBinaryFrame(f))
	}
	path := filepath.Join(t.TempDir(), "RAWLOG.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestReplayerPublishesFrames(t *testing.T) {
	path := writeLog(t, rpmFrame, coolantFrame, Frame{Millis: 1020, ID: 0x0100, Data: []byte{0x0F, 0xA0}})
	channels := NewChannels()
	r := NewReplayer(&config.ReplayFlags{Path: path, Speed: 0}, decoders.Default(), channels, nil)
	require.NoError(t, r.Init())
	require.NoError(t, r.Run(context.Background()))

	rpm, ok := channels.Latest(decoders.RPM_CHANNEL)
	require.True(t, ok)
	assert.Equal(t, 1000.0, rpm.Value)
	assert.Len(t, channels.Snapshot(), 2)
}

func TestReplayerSkipsFrames(t *testing.T) {
	path := writeLog(t, rpmFrame, coolantFrame)
	channels := NewChannels()
	r := NewReplayer(&config.ReplayFlags{Path: path, SkipFrames: 1}, decoders.Default(), channels, nil)
	require.NoError(t, r.Run(context.Background()))

	_, ok := channels.Latest(decoders.RPM_CHANNEL)
	assert.False(t, ok)
	_, ok = channels.Latest(decoders.COOLANT_CHANNEL)
	assert.True(t, ok)
}

func TestReplayerStopsOnCancel(t *testing.T) {
	// A one hour gap between frames, only cancellation can end this.
	path := writeLog(t, rpmFrame, Frame{Millis: rpmFrame.Millis + 3_600_000, ID: 0x0009, Data: []byte{0, 1}})
	r := NewReplayer(&config.ReplayFlags{Path: path, Speed: 1, Loop: true}, decoders.Default(), NewChannels(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := r.channels.Latest(decoders.RPM_CHANNEL)
		return ok
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("replay did not stop")
	}
}

func TestReplayerInitMissingFile(t *testing.T) {
	r := NewReplayer(&config.ReplayFlags{Path: filepath.Join(t.TempDir(), "nope.bin")}, decoders.Default(), NewChannels(), nil)
	assert.ErrorIs(t, r.Init(), os.ErrNotExist)
}

func TestPickPort(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "dead"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341"},
	}
	name, err := pickPort(ports)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", name)

	_, err = pickPort(ports[:2])
	assert.Error(t, err)
}

func TestChannels(t *testing.T) {
	c := NewChannels()
	_, ok := c.Latest("x")
	assert.False(t, ok)

	at := time.Unix(5, 0)
	c.Set("x", 1.5, at)
	r, ok := c.Latest("x")
	require.True(t, ok)
	assert.Equal(t, 1.5, r.Value)
	assert.Equal(t, at, r.Timestamp)

	snapshot := c.Snapshot()
	c.Set("y", 2, at)
	assert.Len(t, snapshot, 1)
}
