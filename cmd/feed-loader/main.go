package main

import (
	"context"
	"log/slog"
	"time"

	"secint/internal/enrich"
	"secint/internal/feeds"
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	stats, err := pipeline.RunFull(ctx, ingest.Limits{
		Pulses:   cfg.PulseLimit,
		URLs:     cfg.URLLimit,
		Payloads: cfg.PayloadLimit,
	})
	if err != nil {
		slog.Error("ingestion run failed", "err", err)
		return
	}
	slog.Info("ingestion run complete",
		"pulses", stats.Pulses,
		"urls", stats.URLs,
		"payloads", stats.Payloads,
		"stored", stats.Stored,
		"enriched", stats.Enriched,
		"failed", stats.Failed)
}
