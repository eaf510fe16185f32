package main

import (
	"log/slog"
	"net/http"

	"secint/internal/enrich"
	"secint/internal/extract"
	"secint/internal/feeds"
	"secint/internal/health"
	"secint/internal/ingest"
	"secint/internal/server"
	"secint/internal/severity"
)

func main() {
	cfg := server.LoadConfig()

	otx := feeds.NewOTXClient(cfg.OTXAPIKey)
	urlhaus := feeds.NewURLhausClient(cfg.URLhausAPIKey)
	abuse := feeds.NewAbuseIPDBClient(cfg.AbuseIPDBAPIKey)
	vt := feeds.NewVirusTotalClient(cfg.VirusTotalAPIKey)

	store := ingest.NewMemoryStore()
	enricher := enrich.New(abuse, vt)
	pipeline := ingest.NewPipeline(store, enricher, severity.NewScorer(), otx, urlhaus, slog.Default())
	monitor := health.NewMonitor(otx, urlhaus, abuse, vt)

	srv := server.New(extract.New(), pipeline, store, monitor, cfg)

	go srv.StartMetrics(cfg.MetricsAddr)

	slog.Info("listening", "addr", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, srv.Router()); err != nil {
		slog.Error("server error", "err", err)
	}
}
