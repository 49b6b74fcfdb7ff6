package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"NetSentry/internal/api"
	"NetSentry/internal/artifact"
	"NetSentry/internal/config"
	"NetSentry/internal/decision"
	"NetSentry/internal/engine/manager"
	"NetSentry/internal/logger"
	"NetSentry/internal/metrics"
	"NetSentry/internal/model"
	"NetSentry/internal/probe"
	"NetSentry/internal/query"
	"NetSentry/internal/sink"
	"NetSentry/pkg/pcap"

	zlog "github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	logger.Init(cfg.Logging)
	zlog.Info().Str("mode", cfg.Capture.Mode).Msg("Starting ns-sentinel")

	// 2. Load artifacts; serving without them is not possible
	bundle, err := artifact.LoadBundle(cfg)
	if err != nil {
		zlog.Fatal().Err(err).Str("dir", cfg.Artifacts.Dir).Msg("Cannot start without trained artifacts; run ns-train first")
	}
	engine := decision.NewEngine(cfg.Sentinel.ConfidenceThreshold, bundle.Encoders, bundle.Model, bundle.KnownBad)

	// 3. Sinks and pipeline
	m := metrics.New()
	verdictSink, err := buildSinks(cfg, m)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to open verdict sinks")
	}
	mgr, err := manager.NewManager(cfg, engine, verdictSink, m)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to create manager")
	}
	mgr.Start()

	// 4. API
	var querier query.Querier
	if cfg.ClickHouse.Enabled {
		if querier, err = query.NewClickHouseQuerier(cfg.ClickHouse); err != nil {
			zlog.Warn().Err(err).Msg("Verdict queries disabled")
			querier = nil
		}
	}
	var server *api.Server
	if cfg.API.ListenAddr != "" {
		server = api.NewServer(cfg.API, engine, mgr, querier, m.Handler())
		if err := server.Start(); err != nil {
			zlog.Fatal().Err(err).Msg("Failed to start API")
		}
	}

	// 5. Capture until a signal arrives or an offline source is exhausted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runCapture(ctx, cfg, mgr); err != nil {
		zlog.Error().Err(err).Msg("Capture failed")
	}

	// 6. Shutdown: stop intake, drain the queue, then close outputs
	zlog.Info().Msg("Shutting down...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Err(err).Msg("API shutdown failed")
		}
		cancel()
	}
	mgr.Stop()
	if err := verdictSink.Close(); err != nil {
		zlog.Error().Err(err).Msg("Failed to close sinks")
	}
	if querier != nil {
		querier.Close()
	}
	zlog.Info().Interface("stats", mgr.Stats()).Msg("Shutdown complete")
}

// buildSinks opens the two verdict logs plus every optional sink that is configured.
func buildSinks(cfg *config.Config, m *metrics.Metrics) (model.Sink, error) {
	fileSink, err := sink.NewFileSink(cfg.AlertLog.MaliciousPath, cfg.AlertLog.BenignPath)
	if err != nil {
		return nil, err
	}
	sinks := sink.Multi{fileSink}

	if cfg.Sentinel.PrintVerdicts {
		sinks = append(sinks, sink.NewConsoleSink(os.Stdout))
	}
	if cfg.ClickHouse.Enabled {
		ch, err := sink.NewClickHouseSink(cfg.ClickHouse, m.DroppedVerdicts)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, ch)
	}
	if cfg.Probe.VerdictSubject != "" {
		ns, err := sink.NewNATSSink(cfg.Probe.NATSURL, cfg.Probe.VerdictSubject)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, ns)
	}
	return sinks, nil
}

// runCapture feeds the manager from the configured source and returns once ctx is done
// or an offline source runs out. No record is submitted after it returns.
func runCapture(ctx context.Context, cfg *config.Config, mgr *manager.Manager) error {
	if cfg.Capture.Mode == "nats" {
		return runSubscriber(ctx, cfg, mgr)
	}

	reader, err := pcap.Open(cfg.Capture)
	if err != nil {
		return err
	}
	defer reader.Close()

	input := mgr.Input()
	n := reader.ReadPackets(ctx, func(rec model.PacketRecord) {
		select {
		case input <- &rec:
		case <-ctx.Done():
		}
	})
	zlog.Info().Int("packets", n).Msg("Capture finished")
	return nil
}

// runSubscriber consumes records published by remote probes. Full queues drop records
// rather than stall the NATS client.
func runSubscriber(ctx context.Context, cfg *config.Config, mgr *manager.Manager) error {
	sub, err := probe.NewSubscriber(cfg.Probe)
	if err != nil {
		return err
	}

	var mu sync.RWMutex
	closed := false
	err = sub.Start(func(rec *model.PacketRecord) {
		mu.RLock()
		defer mu.RUnlock()
		if closed {
			return
		}
		mgr.TrySubmit(rec)
	})
	if err != nil {
		sub.Close()
		return err
	}

	<-ctx.Done()
	sub.Close()
	mu.Lock()
	closed = true
	mu.Unlock()
	return nil
}
