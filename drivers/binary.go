package drivers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"
)

const maxFrameData = 64

var magicBytes = []byte{0xAA, 0x55}

var (
	badLenErr = errors.New("error data length outside range")
	badCrcErr = errors.New("error frame checksum does not match")
)

// Frame is one validated frame from the serial stream or a raw log.
type Frame struct {
	Millis uint32 // LE
	ID     uint16 // BE
	Data   []byte
}

// processBinary consumes binary frames with layout:
// [AA 55][millis:u32 LE][ID:u16 BE][len:u8][data:len][crc8:u8]
// Every good frame is published and, when logWriter is set, appended to the raw log.
func processBinary(ctx context.Context, reader io.Reader, out *sink, logWriter *bufio.Writer) error {
	bufferReader := bufio.NewReader(reader)
	frames := 0

	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := readBinaryFrame(bufferReader)
		if err != nil {
			if errors.Is(err, badLenErr) || errors.Is(err, badCrcErr) {
				out.count("bad")
				log.Printf("[driver/%s] read frame: %v", out.name, err)
				continue
			}
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		// Save the entire frame including crc and magic bytes, this lets us replay with the same logic
		if logWriter != nil {
			if _, err := logWriter.Write(encodeBinaryFrame(frame)); err != nil {
				log.Printf("[driver/%s] raw write: %v", out.name, err)
			} else {
				frames++
				if (frames % WRITE_EVERY_N_FRAMES) == 0 {
					_ = logWriter.Flush()
				}
			}
		}

		out.publish(uint32(frame.ID), frame.Data, time.Now())
	}
}

// readBinaryFrame reads a single frame, resyncing on the magic bytes first.
func readBinaryFrame(bufferReader *bufio.Reader) (Frame, error) {
	for {
		firstByte, err := bufferReader.ReadByte()
		if err != nil {
			return Frame{}, err
		}
		if firstByte != magicBytes[0] {
			continue
		}
		secondByte, err := bufferReader.ReadByte()
		if err != nil {
			return Frame{}, err
		}
		if secondByte == magicBytes[1] {
			break
		}
		// AA AA 55 is still a valid start
		if secondByte == magicBytes[0] {
			_ = bufferReader.UnreadByte()
		}
	}

	// header: millis(4 LE) + id(2 BE) + len(1)
	header := make([]byte, 7)
	if _, err := io.ReadFull(bufferReader, header); err != nil {
		return Frame{}, err
	}
	dataLength := int(header[6])
	if dataLength > maxFrameData {
		return Frame{}, fmt.Errorf("error data length %d: %w", dataLength, badLenErr)
	}

	// payload + crc
	tail := make([]byte, dataLength+1)
	if _, err := io.ReadFull(bufferReader, tail); err != nil {
		return Frame{}, err
	}
	data := tail[:dataLength]

	// CRC over: millis(4) + id_hi + id_lo + len + data
	crc := crc8UpdateBuf(0x00, header)
	crc = crc8UpdateBuf(crc, data)
	if crc != tail[dataLength] {
		return Frame{}, badCrcErr
	}

	return Frame{
		Millis: uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16 | uint32(header[3])<<24,
		ID:     uint16(header[4])<<8 | uint16(header[5]),
		Data:   append([]byte(nil), data...),
	}, nil
}

// encodeBinaryFrame rebuilds the exact record readBinaryFrame accepts.
func encodeBinaryFrame(frame Frame) []byte {
	dl := len(frame.Data)
	rec := make([]byte, 2+7+dl+1)
	rec[0], rec[1] = magicBytes[0], magicBytes[1]

	m := frame.Millis
	rec[2] = byte(m)
	rec[3] = byte(m >> 8)
	rec[4] = byte(m >> 16)
	rec[5] = byte(m >> 24)
	rec[6] = byte(frame.ID >> 8)
	rec[7] = byte(frame.ID)
	rec[8] = byte(dl)

	copy(rec[9:9+dl], frame.Data)
	rec[9+dl] = crc8UpdateBuf(0x00, rec[2:9+dl])
	return rec
}

// CRC-8-CCITT helpers (poly 0x07, init 0x00)
func crc8Update(crc, b byte) byte {
	crc ^= b
	for i := 0; i < 8; i++ {
		if crc&0x80 != 0 {
			crc = (crc << 1) ^ 0x07
		} else {
			crc <<= 1
		}
	}
	return crc
}

func crc8UpdateBuf(crc byte, buffer []byte) byte {
	for _, b := range buffer {
		crc = crc8Update(crc, b)
	}
	return crc
}

// ReadFrames walks every good frame of a raw log. Corrupt frames are skipped and counted in bad.
func ReadFrames(reader io.Reader, visit func(Frame) error) (bad int, err error) {
	bufferReader := bufio.NewReader(reader)
	for {
		frame, err := readBinaryFrame(bufferReader)
		if err != nil {
			if errors.Is(err, badLenErr) || errors.Is(err, badCrcErr) {
				bad++
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return bad, nil
			}
			return bad, err
		}
		if err := visit(frame); err != nil {
			return bad, err
		}
	}
}
