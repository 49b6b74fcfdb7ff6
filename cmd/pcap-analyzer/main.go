package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"NetSentry/internal/artifact"
	"NetSentry/internal/config"
	"NetSentry/internal/decision"
	"NetSentry/internal/engine/manager"
	"NetSentry/internal/logger"
	"NetSentry/internal/model"
	"NetSentry/internal/sink"
	"NetSentry/pkg/pcap"

	zlog "github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	writeLogs := flag.Bool("logs", false, "Also append verdicts to the configured alert logs.")
	top := flag.Int("top", 10, "Number of top malicious sources to print.")
	flag.Parse()

	// 1. Get pcap file path from command-line arguments
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./cmd/pcap-analyzer [-config path] [-logs] <path_to_pcap_file>")
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	// 2. Load configuration and artifacts
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}
	cfg.Alerter.Enabled = false
	logger.Init(cfg.Logging)

	bundle, err := artifact.LoadBundle(cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Cannot analyze without trained artifacts")
	}
	engine := decision.NewEngine(cfg.Sentinel.ConfidenceThreshold, bundle.Encoders, bundle.Model, bundle.KnownBad)

	// 3. Initialize modules
	sinks := sink.Multi{}
	if *writeLogs {
		fileSink, err := sink.NewFileSink(cfg.AlertLog.MaliciousPath, cfg.AlertLog.BenignPath)
		if err != nil {
			zlog.Fatal().Err(err).Msg("Failed to open alert logs")
		}
		sinks = append(sinks, fileSink)
	}
	mgr, err := manager.NewManager(cfg, engine, sinks, nil)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to create manager")
	}

	pcapReader, err := pcap.NewReader(pcapFilePath, cfg.Capture.BPFFilter)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to open pcap file")
	}
	defer pcapReader.Close()

	// 4. Run every packet through the pipeline
	mgr.Start()
	input := mgr.Input()
	pcapReader.ReadPackets(context.Background(), func(rec model.PacketRecord) {
		input <- &rec
	})
	mgr.Stop()
	if err := sinks.Close(); err != nil {
		zlog.Error().Err(err).Msg("Failed to close sinks")
	}

	// 5. Report
	stats := mgr.Stats()
	fmt.Printf("Processed: %d  Malicious: %d (known-bad %d)  Benign: %d  Errors: %d\n",
		stats.Processed, stats.Malicious, stats.KnownBadHits, stats.Benign, stats.ProcessingErrors)

	for _, e := range mgr.TopMaliciousSources(*top) {
		fmt.Printf("  %-40s %d\n", e.IP, e.Count)
	}
}
