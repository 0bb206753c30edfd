package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pulto/collector"
	"pulto/config"
	"pulto/drivers"
	"pulto/events"
	"pulto/metrics"
	"pulto/streaming"
	"pulto/web/handlers"
)

func main() {
	flags := config.GetFlags()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load the stream set
	var streamSet *config.StreamSet
	var err error
	if flags.StreamsPath != "" {
		streamSet, err = config.LoadStreamSet(flags.StreamsPath)
		if err != nil {
			log.Fatalf("couldn't load streams: %s", err)
		}
	} else {
		streamSet = config.DefaultStreamSet(flags.Driver != config.None)
	}
	if streamSet.HasDeviceStreams() && flags.Driver == config.None {
		log.Fatalf("stream set has device streams but no driver is selected, pass -driver")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Create the correct driver
	var channelReader streaming.ChannelReader
	if flags.Driver != config.None {
		decoder, err := streamSet.Decoder()
		if err != nil {
			log.Fatalf("couldn't build decoder: %s", err)
		}
		channels := drivers.NewChannels()
		channelReader = channels

		var driver drivers.Driver
		switch flags.Driver {
		case config.Arduino:
			driver = drivers.NewArduino(flags.Serial, decoder, channels, m, flags.LogDir)
		case config.SocketCAN:
			driver = drivers.NewSocketCAN(flags.SocketCAN, decoder, channels, m, flags.LogDir)
		case config.Replay:
			driver = drivers.NewReplayer(flags.Replay, decoder, channels, m)
		default:
			log.Fatalf("unsupported driver type: %s", flags.Driver)
		}

		// Start up the driver
		if err := driver.Init(); err != nil {
			log.Fatalf("couldn't init driver: %s", err)
		}
		defer func() {
			if err := driver.Close(); err != nil {
				log.Printf("close driver: %s", err)
			}
		}()

		go func() {
			if err := driver.Run(ctx); err != nil {
				log.Printf("error running driver: %s", err)
			}
		}()
	}

	eventHub := events.NewHub()
	manager := streaming.NewManager(channelReader, eventHub, m)
	defer manager.StopStreaming()

	chartCollector := collector.New(manager, flags.Collector.TimeWindow, flags.Collector.MaxPoints, m)
	go func() {
		if err := chartCollector.Run(ctx, flags.Collector.Interval); err != nil && ctx.Err() == nil {
			log.Printf("error running collector: %s", err)
		}
	}()

	if flags.AutoStart {
		if err := manager.StartStreaming(streamSet.Streams); err != nil {
			log.Fatalf("couldn't start streaming: %s", err)
		}
	}

	// Initialise UI
	dashboard, err := handlers.NewDashboard(manager, chartCollector, streamSet.Streams)
	if err != nil {
		log.Fatalf("couldn't create dashboard: %s", err)
	}

	// Initialise Server
	server := handlers.NewServer(dashboard, eventHub, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := server.Start(ctx, flags.Addr); err != nil {
		log.Printf("couldn't start server: %s", err)
	}
}
