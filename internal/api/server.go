package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/k-weiss/tokenpool/internal/config"
)

type Server struct {
	cfg    *config.Config
	pool   PoolService
	events EventSource
	logger *slog.Logger
	mux    *http.ServeMux
}

func NewServer(cfg *config.Config, p PoolService, events EventSource, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		pool:   p,
		events: events,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.authMiddleware(s.requestIDMiddleware(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /v1/pool/stats", s.handleStats)
	s.mux.HandleFunc("POST /v1/pool/healthcheck", s.handleHealthCheck)
	s.mux.HandleFunc("POST /v1/pool/prewarm", s.handlePrewarm)
	s.mux.HandleFunc("POST /v1/pool/shrink", s.handleShrink)
	s.mux.HandleFunc("POST /v1/pool/check", s.handleCheck)
	s.mux.HandleFunc("GET /v1/pool/events", s.handleEvents)

	// Liveness (no auth)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
