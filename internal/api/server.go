// Package api serves the sentinel's HTTP and gRPC surfaces.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"NetSentry/internal/config"
	"NetSentry/internal/decision"
	"NetSentry/internal/model"
	"NetSentry/internal/query"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StatsProvider exposes the running pipeline counters.
type StatsProvider interface {
	Stats() model.Stats
}

// Server holds the dependencies for API handlers.
type Server struct {
	cfg     config.APIConfig
	engine  *decision.Engine
	stats   StatsProvider
	querier query.Querier
	router  *mux.Router
	health  *health.Server
	http    *http.Server
	grpc    *grpc.Server
	started time.Time
}

// NewServer builds the router. querier may be nil when no verdict store is configured,
// and metricsHandler may be nil to omit /metrics.
func NewServer(cfg config.APIConfig, engine *decision.Engine, stats StatsProvider, querier query.Querier, metricsHandler http.Handler) *Server {
	s := &Server{
		cfg:     cfg,
		engine:  engine,
		stats:   stats,
		querier: querier,
		router:  mux.NewRouter(),
		health:  health.NewServer(),
		started: time.Now(),
	}

	r := s.router
	r.HandleFunc("/healthz", s.healthzHandler).Methods("GET")
	r.HandleFunc("/api/v1/stats", s.statsHandler).Methods("GET")
	r.HandleFunc("/api/v1/classify", s.classifyHandler).Methods("POST")
	if querier != nil {
		r.HandleFunc("/api/v1/verdicts/counts", s.countVerdictsHandler).Methods("GET")
		r.HandleFunc("/api/v1/hosts/trace", s.traceHostHandler).Methods("POST")
	}
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}

	// Artifacts are loaded before the server is built, so the service is ready at once.
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return s
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Health returns the gRPC health service.
func (s *Server) Health() *health.Server {
	return s.health
}

// Start launches the HTTP server and, when an address is configured, the gRPC health server.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zlog.Info().Str("addr", s.http.Addr).Msg("HTTP API server starting")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error().Err(err).Str("addr", s.http.Addr).Msg("HTTP API server failed")
		}
	}()

	if s.cfg.GRPCListenAddr == "" {
		return nil
	}
	lis, err := net.Listen("tcp", s.cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPCListenAddr, err)
	}
	s.grpc = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)
	go func() {
		zlog.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server starting")
		if err := s.grpc.Serve(lis); err != nil {
			zlog.Error().Err(err).Msg("gRPC server failed")
		}
	}()
	return nil
}

// Shutdown marks the service as not serving and stops both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.http != nil {
		return s.http.Shutdown(ctx)
	}
	return nil
}

type statsResponse struct {
	model.Stats
	Threshold     float64 `json:"confidence_threshold"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	// SuggestedBlock is the source with the most malicious verdicts, if any.
	SuggestedBlock string `json:"suggested_block,omitempty"`
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) statsHandler(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{
		Threshold:     s.engine.Threshold(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	if s.stats != nil {
		resp.Stats = s.stats.Stats()
		if len(resp.TopSources) > 0 {
			resp.SuggestedBlock = resp.TopSources[0].IP
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// classifyHandler decides one record without writing it to any sink.
func (s *Server) classifyHandler(w http.ResponseWriter, r *http.Request) {
	var rec model.PacketRecord
	if !readJSON(w, r, &rec) {
		return
	}
	if rec.SrcIP == "" || rec.DstIP == "" {
		http.Error(w, "src_ip and dst_ip are required", http.StatusBadRequest)
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	v, err := s.engine.Decide(&rec)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to classify record: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) countVerdictsHandler(w http.ResponseWriter, r *http.Request) {
	f := query.VerdictFilter{Source: r.URL.Query().Get("source")}
	var err error
	if f.Since, err = parseTime(r.URL.Query().Get("since")); err != nil {
		http.Error(w, fmt.Sprintf("invalid since: %v", err), http.StatusBadRequest)
		return
	}
	if f.Until, err = parseTime(r.URL.Query().Get("until")); err != nil {
		http.Error(w, fmt.Sprintf("invalid until: %v", err), http.StatusBadRequest)
		return
	}

	counts, err := s.querier.CountVerdicts(r.Context(), f)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query verdicts: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"counts": counts})
}

func (s *Server) traceHostHandler(w http.ResponseWriter, r *http.Request) {
	var req query.HostTraceRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.IP == "" {
		http.Error(w, "ip is required", http.StatusBadRequest)
		return
	}
	summary, err := s.querier.TraceHost(r.Context(), req)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to trace host: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// parseTime accepts RFC 3339 or Unix seconds; empty means unset.
func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(sec, 0), nil
	}
	return time.Parse(time.RFC3339, v)
}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
