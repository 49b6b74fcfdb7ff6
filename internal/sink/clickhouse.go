package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"NetSentry/internal/config"
	"NetSentry/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/prometheus/client_golang/prometheus"
	zlog "github.com/rs/zerolog/log"
)

const createVerdictTable = `
CREATE TABLE IF NOT EXISTS packet_verdicts (
    ID          String,
    Timestamp   DateTime64(3),
    Verdict     LowCardinality(String),
    Source      LowCardinality(String),
    Confidence  Float64,
    SrcIP       String,
    DstIP       String,
    Protocol    UInt8,
    SrcPort     UInt16,
    DstPort     UInt16,
    Length      UInt32
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Verdict, Timestamp);
`

const (
	defaultBatchSize     = 1000
	defaultMaxPending    = 50000
	defaultFlushInterval = 5 * time.Second
)

// ClickHouseSink buffers verdicts and inserts them into ClickHouse in batches.
// Inserts run on a single flusher goroutine; Write never touches the network.
type ClickHouseSink struct {
	conn       driver.Conn
	batchSize  int
	maxPending int
	dropped    prometheus.Counter

	mu           sync.Mutex
	pending      []*model.Verdict
	droppedTotal uint64

	flushChan chan struct{}
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewClickHouseSink connects, ensures the verdict table exists and starts the flusher.
// dropped, when non-nil, counts verdicts discarded because the pending buffer was full.
func NewClickHouseSink(cfg config.ClickHouseConfig, dropped prometheus.Counter) (*ClickHouseSink, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	s, err := openClickHouseSink(conn, cfg, dropped)
	if err != nil {
		return nil, err
	}
	zlog.Info().Str("host", cfg.Host).Msg("Connected to ClickHouse and ensured verdict table exists")
	return s, nil
}

// openClickHouseSink ensures the verdict table exists on conn and starts the flusher.
// conn is closed when the table cannot be created.
func openClickHouseSink(conn driver.Conn, cfg config.ClickHouseConfig, dropped prometheus.Counter) (*ClickHouseSink, error) {
	if err := conn.Exec(context.Background(), createVerdictTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	s := newClickHouseSink(conn, cfg.BatchSize, cfg.MaxPending, dropped)
	s.start(defaultFlushInterval)
	return s, nil
}

func newClickHouseSink(conn driver.Conn, batchSize, maxPending int, dropped prometheus.Counter) *ClickHouseSink {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if maxPending <= 0 {
		maxPending = defaultMaxPending
	}
	if maxPending < batchSize {
		maxPending = batchSize
	}
	return &ClickHouseSink{
		conn:       conn,
		batchSize:  batchSize,
		maxPending: maxPending,
		dropped:    dropped,
		flushChan:  make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
	}
}

func (s *ClickHouseSink) start(interval time.Duration) {
	s.wg.Add(1)
	go s.runFlusher(interval)
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Write buffers the verdict and wakes the flusher once a full batch is pending.
func (s *ClickHouseSink) Write(v *model.Verdict) error {
	s.mu.Lock()
	s.pending = append(s.pending, v)
	s.trimLocked()
	full := len(s.pending) >= s.batchSize
	s.mu.Unlock()

	if full {
		select {
		case s.flushChan <- struct{}{}:
		default:
		}
	}
	return nil
}

// trimLocked discards the oldest verdicts beyond maxPending. s.mu must be held.
func (s *ClickHouseSink) trimLocked() {
	over := len(s.pending) - s.maxPending
	if over <= 0 {
		return
	}
	clear(s.pending[:over])
	s.pending = s.pending[over:]
	s.droppedTotal += uint64(over)
	if s.dropped != nil {
		s.dropped.Add(float64(over))
	}
}

// Pending returns the number of verdicts waiting to be inserted.
func (s *ClickHouseSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Dropped returns the number of verdicts discarded because the buffer was full.
func (s *ClickHouseSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedTotal
}

func (s *ClickHouseSink) runFlusher(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-s.flushChan:
		case <-s.stopChan:
			return
		}
		if err := s.flush(); err != nil {
			zlog.Error().Err(err).Int("pending", s.Pending()).Msg("ClickHouse flush failed, verdicts kept for retry")
		}
	}
}

// flush inserts everything pending. On failure the verdicts go back to the front of the
// buffer, ahead of anything written meanwhile.
func (s *ClickHouseSink) flush() error {
	s.mu.Lock()
	verdicts := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(verdicts) == 0 {
		return nil
	}
	if err := s.insert(verdicts); err != nil {
		s.mu.Lock()
		s.pending = append(verdicts, s.pending...)
		s.trimLocked()
		s.mu.Unlock()
		return err
	}

	zlog.Debug().Int("verdicts", len(verdicts)).Msg("Wrote verdicts to ClickHouse")
	return nil
}

func (s *ClickHouseSink) insert(verdicts []*model.Verdict) error {
	batch, err := s.conn.PrepareBatch(context.Background(), "INSERT INTO packet_verdicts")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, v := range verdicts {
		err = batch.Append(
			v.ID,
			v.Timestamp,
			string(v.Kind),
			string(v.Source),
			v.Confidence,
			v.Record.SrcIP,
			v.Record.DstIP,
			v.Record.Protocol,
			v.Record.SrcPort,
			v.Record.DstPort,
			uint32(v.Record.FwdBytes),
		)
		if err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append verdict to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Close stops the flusher, writes what is still pending and closes the connection.
func (s *ClickHouseSink) Close() error {
	close(s.stopChan)
	s.wg.Wait()
	err := s.flush()
	if err != nil {
		zlog.Error().Err(err).Int("verdicts", s.Pending()).Msg("Discarding verdicts not written to ClickHouse")
	}
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
