package manager

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"NetSentry/internal/alerter"
	"NetSentry/internal/config"
	"NetSentry/internal/decision"
	"NetSentry/internal/metrics"
	"NetSentry/internal/model"
	"NetSentry/internal/notification"

	zlog "github.com/rs/zerolog/log"
)

// Manager runs the online decision pipeline: a bounded queue of packet records consumed
// by a pool of workers, each deciding a record and writing the verdict to the sink.
// Records are independent, so workers share no per-packet state; the sink serializes
// its own appends.
type Manager struct {
	engine  *decision.Engine
	sink    model.Sink
	metrics *metrics.Metrics
	alerter *alerter.Alerter

	packetChannel chan *model.PacketRecord
	numWorkers    int
	workerWg      sync.WaitGroup
	stopOnce      sync.Once

	processed        atomic.Uint64
	malicious        atomic.Uint64
	benign           atomic.Uint64
	knownBadHits     atomic.Uint64
	processingErrors atomic.Uint64
	dropped          atomic.Uint64
	sources          *sourceTally
}

// NewManager creates a Manager. m may be nil when metrics are not exported.
func NewManager(cfg *config.Config, engine *decision.Engine, sink model.Sink, m *metrics.Metrics) (*Manager, error) {
	if engine == nil || sink == nil {
		return nil, fmt.Errorf("manager requires a decision engine and a sink")
	}

	mgr := &Manager{
		engine:        engine,
		sink:          sink,
		metrics:       m,
		packetChannel: make(chan *model.PacketRecord, cfg.Sentinel.SizeOfPacketChannel),
		numWorkers:    cfg.Sentinel.NumWorkers,
		sources:       newSourceTally(maxTrackedSources),
	}
	if mgr.numWorkers <= 0 {
		mgr.numWorkers = 1
	}

	if cfg.Alerter.Enabled {
		if cfg.SMTP.Host != "" {
			alertr, err := alerter.NewAlerter(&cfg.Alerter, mgr, notification.NewEmailNotifier(cfg.SMTP))
			if err != nil {
				return nil, fmt.Errorf("failed to create alerter: %w", err)
			}
			mgr.alerter = alertr
			zlog.Info().Msg("Alerter enabled and initialized")
		} else {
			zlog.Warn().Msg("Alerter is enabled in config, but no notifiers are configured. Alerter will not run")
		}
	}

	return mgr, nil
}

// Start launches the worker pool and the alerter.
func (m *Manager) Start() {
	if m.alerter != nil {
		go m.alerter.Start()
	}

	m.workerWg.Add(m.numWorkers)
	for i := 0; i < m.numWorkers; i++ {
		go m.worker()
	}
	zlog.Info().Int("workers", m.numWorkers).Msg("Manager started")
}

// Stop closes the input queue, waits for workers to drain it and stops the alerter.
// Callers must not send on Input after Stop.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		zlog.Info().Msg("Manager stopping...")
		close(m.packetChannel)
		m.workerWg.Wait()
		if m.alerter != nil {
			m.alerter.Stop()
		}
		zlog.Info().Interface("stats", m.Stats()).Msg("Manager stopped")
	})
}

// Input returns the queue capture sources push records onto. Sends block when the
// queue is full, which preserves every packet at the cost of back-pressure.
func (m *Manager) Input() chan<- *model.PacketRecord {
	return m.packetChannel
}

// TrySubmit enqueues a record without blocking and reports whether it was accepted.
func (m *Manager) TrySubmit(rec *model.PacketRecord) bool {
	select {
	case m.packetChannel <- rec:
		return true
	default:
		m.dropped.Add(1)
		if m.metrics != nil {
			m.metrics.DroppedPackets.Inc()
		}
		return false
	}
}

// Stats returns a copy of the counters and the busiest malicious sources.
func (m *Manager) Stats() model.Stats {
	return model.Stats{
		Processed:        m.processed.Load(),
		Malicious:        m.malicious.Load(),
		Benign:           m.benign.Load(),
		KnownBadHits:     m.knownBadHits.Load(),
		ProcessingErrors: m.processingErrors.Load(),
		Dropped:          m.dropped.Load(),
		TopSources:       m.sources.top(topSourcesInStats),
	}
}

// TopMaliciousSources returns up to n source addresses by malicious verdict count.
func (m *Manager) TopMaliciousSources(n int) []model.SourceCount {
	return m.sources.top(n)
}

func (m *Manager) worker() {
	defer m.workerWg.Done()
	for rec := range m.packetChannel {
		m.process(rec)
	}
}

// process decides one record. Any failure, including a panic inside the classifier,
// is logged and counted for this packet only.
func (m *Manager) process(rec *model.PacketRecord) {
	start := time.Now()
	m.processed.Add(1)
	if m.metrics != nil {
		m.metrics.PacketsProcessed.Inc()
		defer func() { m.metrics.DecisionLatency.Observe(time.Since(start).Seconds()) }()
	}

	verdict, err := m.decide(rec)
	if err != nil {
		m.processingErrors.Add(1)
		if m.metrics != nil {
			m.metrics.ProcessingErrors.Inc()
		}
		zlog.Error().Err(err).Str("src", rec.SrcIP).Str("dst", rec.DstIP).Msg("Error processing packet for ML model")
		return
	}

	if verdict.IsMalicious() {
		m.malicious.Add(1)
		m.sources.add(rec.SrcIP)
	} else {
		m.benign.Add(1)
	}
	if verdict.Source == model.SourceKnownBad {
		m.knownBadHits.Add(1)
	}
	if m.metrics != nil {
		m.metrics.Verdicts.WithLabelValues(string(verdict.Kind), string(verdict.Source)).Inc()
	}

	if err := m.sink.Write(verdict); err != nil {
		if m.metrics != nil {
			m.metrics.SinkErrors.Inc()
		}
		zlog.Error().Err(err).Str("verdict", verdict.ID).Msg("Failed to write verdict")
	}
}

func (m *Manager) decide(rec *model.PacketRecord) (v *model.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while deciding packet: %v", r)
		}
	}()
	return m.engine.Decide(rec)
}
