package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"secint/internal/extract"
	"secint/internal/health"
	"secint/internal/ingest"
)

// Server wraps the HTTP API around the extractor, the pipeline and
// the source health monitor.
type Server struct {
	extractor *extract.Extractor
	pipeline  *ingest.Pipeline
	store     ingest.Store
	monitor   *health.Monitor
	cfg       *Config
	router    *mux.Router
	log       *slog.Logger
}

func New(ex *extract.Extractor, pl *ingest.Pipeline, store ingest.Store, mon *health.Monitor, cfg *Config) *Server {
	s := &Server{
		extractor: ex,
		pipeline:  pl,
		store:     store,
		monitor:   mon,
		cfg:       cfg,
		router:    mux.NewRouter(),
		log:       slog.Default(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/v1/extract", s.handleExtract).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/ingest/run", s.handleIngestRun).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/iocs/summary", s.handleSummary).Methods(http.MethodGet)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) StartMetrics(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

type extractRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	found := s.extractor.ExtractAll(req.Text)
	counts := make(map[string]int, len(found))
	total := 0
	for t, values := range found {
		counts[string(t)] = len(values)
		total += len(values)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"indicators": found,
		"counts":     counts,
		"total":      total,
	})
}

func (s *Server) handleIngestRun(w http.ResponseWriter, r *http.Request) {
	limits := ingest.Limits{
		Pulses:   s.cfg.PulseLimit,
		URLs:     s.cfg.URLLimit,
		Payloads: s.cfg.PayloadLimit,
	}
	stats, err := s.pipeline.RunFull(r.Context(), limits)
	if err != nil {
		if errors.Is(err, ingest.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "ingestion already running")
			return
		}
		s.log.Error("ingestion run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	total, err := s.store.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	bySeverity, _ := s.store.CountBy(r.Context(), "severity")
	byType, _ := s.store.CountBy(r.Context(), "type")
	bySource, _ := s.store.CountBy(r.Context(), "source")

	writeJSON(w, http.StatusOK, map[string]any{
		"total_iocs":  total,
		"by_severity": bySeverity,
		"by_type":     byType,
		"by_source":   bySource,
		"running":     s.pipeline.Running(),
		"last_run":    s.pipeline.Stats(),
		"timestamp":   time.Now().UTC(),
	})
}

// handleHealth probes every configured source, serving cached results
// unless ?refresh=1 forces live probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	useCache := r.URL.Query().Get("refresh") != "1"
	statuses := s.monitor.ValidateAll(r.Context(), useCache)
	writeJSON(w, http.StatusOK, map[string]any{
		"overall": health.OverallStatus(statuses),
		"sources": statuses,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	bySeverity, err := s.store.CountBy(r.Context(), "severity")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	byCategory, _ := s.store.CountBy(r.Context(), "category")
	total, _ := s.store.Count(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"total":       total,
		"by_severity": bySeverity,
		"by_category": byCategory,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
