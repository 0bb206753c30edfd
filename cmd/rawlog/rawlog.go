package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"pulto/config"
	"pulto/decoders"
	"pulto/drivers"
)

const (
	defaultInLocation = "logs/RAWLOG.bin"
)

// rawlog prints the frames of a raw driver log with their decoded channel values.
func main() {
	in := flag.String("in", defaultInLocation, "raw log to read")
	out := flag.String("out", "", "file to write, stdout when empty")
	idFilter := flag.String("id", "", "only print frames with this hex id, e.g. 0x0100")
	streamsPath := flag.String("streams", "", "YAML stream set whose frames are used for decoding")
	flag.Parse()

	var onlyID int64 = -1
	if *idFilter != "" {
		parsed, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(*idFilter), "0x"), 16, 16)
		if err != nil {
			log.Fatalf("bad id filter %q: %s", *idFilter, err)
		}
		onlyID = int64(parsed)
	}

	decoder := decoders.Default()
	if *streamsPath != "" {
		streamSet, err := config.LoadStreamSet(*streamsPath)
		if err != nil {
			log.Fatalf("couldn't load streams: %s", err)
		}
		if decoder, err = streamSet.Decoder(); err != nil {
			log.Fatalf("couldn't build decoder: %s", err)
		}
	}

	file, err := os.Open(*in)
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	var writer io.Writer = os.Stdout
	if *out != "" {
		outFile, err := os.Create(*out)
		if err != nil {
			log.Fatal(err)
		}
		defer outFile.Close()
		writer = outFile
	}
	buffered := bufio.NewWriter(writer)

	frames := 0
	bad, err := drivers.ReadFrames(bufio.NewReaderSize(file, 1<<20), func(frame drivers.Frame) error {
		if onlyID >= 0 && int64(frame.ID) != onlyID {
			return nil
		}
		frames++
		_, err := fmt.Fprintln(buffered, formatFrame(frame, decoder))
		return err
	})
	if err != nil {
		log.Fatal(err)
	}

	// Flush to disk
	if err = buffered.Flush(); err != nil {
		log.Fatal(err)
	}
	log.Printf("%d frames printed, %d corrupt frames skipped", frames, bad)
}

func formatFrame(frame drivers.Frame, decoder *decoders.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%10d] %04X  % X", frame.Millis, frame.ID, frame.Data)
	for _, value := range decoder.Decode(uint32(frame.ID), frame.Data) {
		fmt.Fprintf(&b, "  %s=%v", value.Channel, value.Value)
	}
	return b.String()
}
