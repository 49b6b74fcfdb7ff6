package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"NetSentry/internal/config"
	"NetSentry/internal/logger"
	"NetSentry/internal/model"
	"NetSentry/internal/probe"
	"NetSentry/internal/probe/persistent"
	"NetSentry/pkg/pcap"

	"github.com/google/gopacket"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	// --- Command-Line Flag Parsing ---
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	mode := flag.String("mode", "sub", "Operating mode: 'pub' to capture and publish, 'sub' to subscribe and print.")
	iface := flag.String("iface", "", "Interface to capture packets from; overrides capture.interface (pub mode).")
	pcapFile := flag.String("pcap", "", "Replay a capture file instead of a live interface (pub mode).")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	logger.Init(cfg.Logging)

	if *iface != "" {
		cfg.Capture.Mode = "live"
		cfg.Capture.Interface = *iface
	}
	if *pcapFile != "" {
		cfg.Capture.Mode = "pcap"
		cfg.Capture.PcapFile = *pcapFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Mode Dispatch ---
	switch *mode {
	case "pub":
		runProbe(ctx, cfg)
	case "sub":
		runSubscriber(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// runProbe captures packets, publishes their records to NATS and optionally archives them.
func runProbe(ctx context.Context, cfg *config.Config) {
	reader, err := pcap.Open(cfg.Capture)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to open capture source")
	}
	defer reader.Close()

	pub, err := probe.NewPublisher(cfg.Probe)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer pub.Close()

	var archive *persistent.Worker
	if cfg.Archive.Enabled {
		archive, err = persistent.NewWorker(cfg.Archive, reader.LinkType())
		if err != nil {
			zlog.Fatal().Err(err).Msg("Failed to start packet archive")
		}
		defer archive.Stop()
	}

	zlog.Info().Str("subject", cfg.Probe.Subject).Msg("Capture started, publishing packets to NATS")
	published := 0
	reader.ForEachPacket(ctx, func(packet gopacket.Packet, rec model.PacketRecord) {
		if archive != nil {
			archive.Enqueue(&persistent.PacketContainer{RawPacket: packet, Record: rec})
		}
		if err := pub.Publish(&rec); err != nil {
			zlog.Warn().Err(err).Msg("Failed to publish packet")
			return
		}
		published++
		if published%1000 == 0 {
			zlog.Info().Int("published", published).Msg("Packets published")
		}
	})
	zlog.Info().Int("published", published).Msg("Probe stopped")
}

// runSubscriber prints every record received on the probe subject.
func runSubscriber(ctx context.Context, cfg *config.Config) {
	sub, err := probe.NewSubscriber(cfg.Probe)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to create subscriber")
	}
	defer sub.Close()

	handler := func(rec *model.PacketRecord) {
		zlog.Info().
			Str("src", fmt.Sprintf("%s:%d", rec.SrcIP, rec.SrcPort)).
			Str("dst", fmt.Sprintf("%s:%d", rec.DstIP, rec.DstPort)).
			Uint8("proto", rec.Protocol).
			Int("len", rec.FwdBytes).
			Msg("Received packet")
	}
	if err := sub.Start(handler); err != nil {
		zlog.Fatal().Err(err).Msg("Subscriber failed to start")
	}

	<-ctx.Done()
	zlog.Info().Msg("Shutdown signal received, cleaning up...")
}
