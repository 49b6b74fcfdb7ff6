// Package query reads stored verdicts back out of ClickHouse.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"NetSentry/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// VerdictFilter narrows a verdict aggregation.
type VerdictFilter struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
	// Source limits results to "known_bad" or "model" verdicts.
	Source string `json:"source"`
}

// VerdictCount is one row of an aggregation grouped by verdict and source.
type VerdictCount struct {
	Verdict string `json:"verdict"`
	Source  string `json:"source"`
	Count   uint64 `json:"count"`
}

// HostTraceRequest selects the verdicts involving one address.
type HostTraceRequest struct {
	IP    string    `json:"ip"`
	Port  *uint16   `json:"port,omitempty"`
	Since time.Time `json:"since"`
}

// HostSummary describes everything recorded for one address.
type HostSummary struct {
	IP            string    `json:"ip"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	Packets       uint64    `json:"packets"`
	Malicious     uint64    `json:"malicious"`
	MaxConfidence float64   `json:"max_confidence"`
	DistinctPeers uint64    `json:"distinct_peers"`
	KnownBadHits  uint64    `json:"known_bad_hits"`
}

// Querier defines the interface for querying stored verdicts.
type Querier interface {
	CountVerdicts(ctx context.Context, f VerdictFilter) ([]VerdictCount, error)
	TraceHost(ctx context.Context, req HostTraceRequest) (*HostSummary, error)
	Close() error
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
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
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// buildCountQuery returns the aggregation SQL and its arguments.
func buildCountQuery(f VerdictFilter) (string, []interface{}, error) {
	var sb strings.Builder
	sb.WriteString("SELECT Verdict, Source, count() AS Total FROM packet_verdicts")

	var where []string
	var args []interface{}
	if !f.Since.IsZero() {
		where = append(where, "Timestamp >= ?")
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		where = append(where, "Timestamp <= ?")
		args = append(args, f.Until)
	}
	switch f.Source {
	case "":
	case "known_bad", "model":
		where = append(where, "Source = ?")
		args = append(args, f.Source)
	default:
		return "", nil, fmt.Errorf("unsupported verdict source: %s, only known_bad and model are allowed", f.Source)
	}

	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" GROUP BY Verdict, Source ORDER BY Verdict, Source")
	return sb.String(), args, nil
}

// CountVerdicts counts stored verdicts grouped by verdict and source.
func (q *clickhouseQuerier) CountVerdicts(ctx context.Context, f VerdictFilter) ([]VerdictCount, error) {
	sql, args, err := buildCountQuery(f)
	if err != nil {
		return nil, err
	}
	rows, err := q.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var counts []VerdictCount
	for rows.Next() {
		var c VerdictCount
		if err := rows.Scan(&c.Verdict, &c.Source, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan verdict count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// buildTraceQuery returns the host summary SQL and its arguments.
func buildTraceQuery(req HostTraceRequest) (string, []interface{}, error) {
	if req.IP == "" {
		return "", nil, fmt.Errorf("ip is required")
	}
	match := "(SrcIP = ? OR DstIP = ?)"
	args := []interface{}{req.IP, req.IP}
	if req.Port != nil {
		match = "((SrcIP = ? AND SrcPort = ?) OR (DstIP = ? AND DstPort = ?))"
		args = []interface{}{req.IP, *req.Port, req.IP, *req.Port}
	}

	where := []string{match}
	if !req.Since.IsZero() {
		where = append(where, "Timestamp >= ?")
		args = append(args, req.Since)
	}

	sql := `
		SELECT
			min(Timestamp) AS FirstSeen,
			max(Timestamp) AS LastSeen,
			count() AS Packets,
			countIf(Verdict = 'MALICIOUS') AS Malicious,
			max(Confidence) AS MaxConfidence,
			uniqExact(if(SrcIP = ?, DstIP, SrcIP)) AS Peers,
			countIf(Source = 'known_bad') AS KnownBadHits
		FROM packet_verdicts
		WHERE ` + strings.Join(where, " AND ")
	return sql, append([]interface{}{req.IP}, args...), nil
}

// TraceHost summarises the stored verdicts involving one address.
func (q *clickhouseQuerier) TraceHost(ctx context.Context, req HostTraceRequest) (*HostSummary, error) {
	sql, args, err := buildTraceQuery(req)
	if err != nil {
		return nil, err
	}
	result := HostSummary{IP: req.IP}
	row := q.conn.QueryRow(ctx, sql, args...)
	if err := row.Scan(&result.FirstSeen, &result.LastSeen, &result.Packets, &result.Malicious,
		&result.MaxConfidence, &result.DistinctPeers, &result.KnownBadHits); err != nil {
		return nil, fmt.Errorf("failed to scan host summary: %w", err)
	}
	return &result, nil
}

func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}
