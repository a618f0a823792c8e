package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"petsphere/internal/util"
	"petsphere/services/sysinfo/internal/collector"
	"petsphere/services/sysinfo/internal/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Collector *collector.Collector
	Store     store.SnapshotStore
}

// Server exposes the host-metrics endpoints.
type Server struct {
	collector *collector.Collector
	store     store.SnapshotStore
	mux       *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		collector: cfg.Collector,
		store:     cfg.Store,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("sysinfo", s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/scan", s.handleScan)
	s.mux.HandleFunc("/fetch", s.handleFetch)
}

// handleRoot is a plain-text liveness probe.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("sysinfo service is running"))
}

// handleScan collects a snapshot, appends it to the store and returns it.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	snap, err := s.collector.Collect()
	if err != nil {
		slog.Error("collect failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to collect host facts")
		return
	}
	if err := s.store.Insert(r.Context(), snap); err != nil {
		slog.Error("insert snapshot failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to record snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleFetch returns all recorded snapshots.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	snaps, err := s.store.List(r.Context())
	if err != nil {
		slog.Error("list snapshots failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch snapshots")
		return
	}
	if snaps == nil {
		snaps = []collector.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
