package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	reportconsensus "tribunal/contexts/moderation-safety/report-consensus-service"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "tribunal/internal/platform/httpserver/docs"
)

const (
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20
)

type Options struct {
	Addr          string
	Resolver      ports.ParticipantResolver
	Limiter       *ParticipantLimiter
	Metrics       http.Handler
	EnableSwagger bool
	Logger        *slog.Logger
}

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	moderation reportconsensus.Module
	resolver   ports.ParticipantResolver
	limiter    *ParticipantLimiter
}

func New(moderation reportconsensus.Module, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		moderation: moderation,
		resolver:   opts.Resolver,
		limiter:    opts.Limiter,
	}
	s.registerRoutes(opts)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped",
		"event", "http_server_stopped",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return nil
}

func (s *Server) registerRoutes(opts Options) {
	if opts.EnableSwagger {
		s.mux.Handle("/swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}
	if opts.Metrics != nil {
		s.mux.Handle("GET /metrics", opts.Metrics)
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /v1/reports", s.handleFileReport)
	s.mux.HandleFunc("GET /v1/reports", s.handleListReports)
	s.mux.HandleFunc("GET /v1/reports/{report_id}", s.handleGetReport)
	s.mux.HandleFunc("POST /v1/reports/{report_id}/vote", s.handleCastVote)
	s.mux.HandleFunc("GET /v1/reports/{report_id}/votes", s.handleListVotes)

	s.mux.HandleFunc("DELETE /v1/admin/{target_type}/{target_id}", s.handleAdminDelete)
	s.mux.HandleFunc("POST /v1/admin/ban/{agent_id}", s.handleAdminBan)
	s.mux.HandleFunc("DELETE /v1/admin/ban/{agent_id}", s.handleAdminUnban)
	s.mux.HandleFunc("GET /v1/admin/bans", s.handleListBans)
	s.mux.HandleFunc("POST /v1/admin/reports/{report_id}/verdict", s.handleAdminVerdict)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads the request body into dst. When optional is set an empty
// body leaves dst at its zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if r.Body == nil {
		if optional {
			return true
		}
		writeModerationError(w, http.StatusBadRequest, "INVALID_JSON", "request body is required", nil)
		return false
	}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeModerationError(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON", nil)
		return false
	}
	return true
}
