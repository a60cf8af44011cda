package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/logsink-io/logsink/internal/config"
	"github.com/logsink-io/logsink/internal/sink"
)

// maxBodySize caps a single record payload.
const maxBodySize = 64 << 20

// SystemStats is the response payload of GET /api/stats.
type SystemStats struct {
	TotalRecords  int64   `json:"total_records"`
	TotalBytes    int64   `json:"total_bytes"`
	IngestionRate float64 `json:"ingestion_rate"` // records/sec
	FileSize      int64   `json:"file_size"`      // bytes on disk
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// sizer is implemented by sinks that can report their on-disk size.
type sizer interface {
	Size() (int64, error)
}

// IngestServer accepts log records over HTTP and hands them to a sink.
type IngestServer struct {
	cfg    *config.Config
	sink   sink.Sink
	logger *slog.Logger
	srv    *http.Server

	started       time.Time
	ingestCounter atomic.Int64 // total accepted records
	ingestBytes   atomic.Int64 // total accepted payload bytes
	ingestRate    atomic.Int64 // records/sec, updated once per second
	done          chan struct{}
}

// NewIngestServer creates a server for the given configuration and sink.
func NewIngestServer(cfg *config.Config, s sink.Sink, logger *slog.Logger) *IngestServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestServer{
		cfg:     cfg,
		sink:    s,
		logger:  logger,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// routes builds the request router. The configured endpoint takes
// precedence over the ancillary routes if they collide.
func (s *IngestServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Endpoint, s.handleIngest)
	if s.cfg.Endpoint != "/healthz" {
		mux.HandleFunc("/healthz", s.handleHealth)
	}
	if s.cfg.Endpoint != "/api/stats" {
		mux.HandleFunc("/api/stats", s.handleStats)
	}
	return requestID(mux)
}

// requestID stamps every response with an X-Request-Id header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", newRequestID())
		next.ServeHTTP(w, r)
	})
}

// Start runs the HTTP server. It blocks until the server stops.
func (s *IngestServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}

	go s.runRateTicker()

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *IngestServer) Shutdown(ctx context.Context) error {
	close(s.done)
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// handleIngest processes POST requests carrying one opaque record each.
// The body is never interpreted; it is appended to the sink as-is.
func (s *IngestServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.cfg.Endpoint {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reqID := w.Header().Get("X-Request-Id")
	start := time.Now()

	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	defer body.Close()

	reader, err := decodeBody(body, r.Header.Get("Content-Encoding"))
	if err != nil {
		s.logger.Warn("reject record", "request_id", reqID, "err", err)
		http.Error(w, "Invalid or unsupported content encoding", http.StatusBadRequest)
		return
	}

	// The wire cap above does not bound what a compressed body expands
	// to, so the decoded stream is capped as well.
	data, err := io.ReadAll(io.LimitReader(reader, maxBodySize+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Warn("read body", "request_id", reqID, "err", err)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if len(data) > maxBodySize {
		s.logger.Warn("reject record", "request_id", reqID, "reason", "decoded body exceeds cap")
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := s.sink.Append(data); err != nil {
		// A failed write must not take the server down; report the
		// request as failed and keep serving.
		s.logger.Error("append record", "request_id", reqID, "err", err)
		http.Error(w, "Failed to persist record", http.StatusInternalServerError)
		return
	}

	s.ingestCounter.Add(1)
	s.ingestBytes.Add(int64(len(data)))
	s.logger.Debug("record accepted",
		"request_id", reqID,
		"remote", r.RemoteAddr,
		"bytes", len(data),
		"duration", time.Since(start),
	)
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth reports liveness.
func (s *IngestServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats reports ingestion statistics.
func (s *IngestServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := SystemStats{
		TotalRecords:  s.ingestCounter.Load(),
		TotalBytes:    s.ingestBytes.Load(),
		IngestionRate: float64(s.ingestRate.Load()),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	if fs, ok := s.sink.(sizer); ok {
		if size, err := fs.Size(); err == nil {
			stats.FileSize = size
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

// runRateTicker recomputes the ingestion rate once per second.
func (s *IngestServer) runRateTicker() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := s.ingestCounter.Load()
	for {
		select {
		case <-ticker.C:
			cur := s.ingestCounter.Load()
			s.ingestRate.Store(cur - last)
			last = cur
		case <-s.done:
			return
		}
	}
}

// decodeBody wraps the raw body reader according to Content-Encoding.
// An absent or identity encoding passes the body through untouched.
func decodeBody(body io.Reader, encoding string) (io.Reader, error) {
	switch encoding {
	case "", "identity":
		return body, nil
	case "gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	case "zstd":
		zr, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("zstd body: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

func newRequestID() string {
	return "req-" + uuid.New().String()[:8]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
