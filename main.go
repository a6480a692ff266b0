package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pumpline-historian/internal/backpressure"
	"pumpline-historian/internal/config"
	ingestapp "pumpline-historian/internal/ingest/application"
	ingestpostgres "pumpline-historian/internal/ingest/infrastructure/postgres"
	ingestinterfaces "pumpline-historian/internal/ingest/interfaces"
	masterdataapp "pumpline-historian/internal/masterdata/application"
	dimensionconfig "pumpline-historian/internal/masterdata/config"
	"pumpline-historian/internal/observability/metrics"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "historian").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load failed")
	}

	doc, err := dimensionconfig.Load(cfg.DimensionMap)
	if err != nil {
		logger.Fatal().Err(err).Msg("dimension configuration invalid")
	}
	catalog, err := masterdataapp.NewCatalog(doc)
	if err != nil {
		logger.Fatal().Err(err).Msg("dimension catalog build failed")
	}
	stations, devices, metricDefs := catalog.Counts()
	logger.Info().
		Int("stations", stations).
		Int("devices", devices).
		Int("metrics", metricDefs).
		Msg("dimension catalog loaded")

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("db ping failed")
	}

	metrics.Init()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factRepo := ingestpostgres.NewFactRepository(db)
	if err := factRepo.EnsureWeekPartitions(ctx, cfg.RangeStart, cfg.RangeEnd); err != nil {
		logger.Fatal().Err(err).Msg("partition planning failed")
	}
	source := ingestpostgres.NewStagingSource(db)

	controller, err := backpressure.NewController(backpressure.Config{
		InitialBatch:      cfg.InitialBatch,
		InitialWorkers:    cfg.InitialWorkers,
		MinBatch:          cfg.MinBatch,
		MinWorkers:        cfg.MinWorkers,
		P95ThresholdMs:    cfg.P95ThresholdMs,
		FailRateThreshold: cfg.FailRateThreshold,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("backpressure controller invalid")
	}

	engine, err := ingestapp.NewEngine(catalog, source, factRepo)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine build failed")
	}
	runner, err := ingestapp.NewRunner(engine, controller, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("runner build failed")
	}

	result, err := runner.Run(ctx, cfg.RangeStart, cfg.RangeEnd, cfg.WindowSpan)
	if err != nil {
		logger.Error().Err(err).Msg("ingestion pass aborted")
	}
	logger.Info().
		Int("windows", len(result.Reports)).
		Int("failed_windows", result.FailedWindows).
		Msg("ingestion pass finished")

	if cfg.DigestDir != "" && len(result.Reports) > 0 {
		digest, err := ingestinterfaces.BuildDigestXLSX(result.Reports, result.Adjustments)
		if err != nil {
			logger.Error().Err(err).Msg("digest build failed")
			return
		}
		name := "ingest-digest-" + time.Now().UTC().Format("20060102T150405") + ".xlsx"
		path := filepath.Join(cfg.DigestDir, name)
		if err := os.MkdirAll(cfg.DigestDir, 0o755); err != nil {
			logger.Error().Err(err).Msg("digest dir create failed")
			return
		}
		if err := os.WriteFile(path, digest, 0o644); err != nil {
			logger.Error().Err(err).Msg("digest write failed")
			return
		}
		logger.Info().Str("path", path).Msg("ingest digest written")
	}
}
