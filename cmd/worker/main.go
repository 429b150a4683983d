package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"designbridge/internal/adapter/repo"
	"designbridge/internal/bootstrap"
	"designbridge/internal/infra"
	"designbridge/internal/infra/credentials"
	"designbridge/internal/session"
	"designbridge/internal/sqlinline"
	"designbridge/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	if _, err := runner.Exec(ctx, sqlinline.QEnsureSchema); err != nil {
		logger.Fatal().Err(err).Msg("worker: ensure schema failed")
	}

	exporter, err := bootstrap.NewExporter(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure exporter")
	}

	w, err := worker.New(worker.Options{
		Exports:      repo.NewExportRepository(runner),
		Exporter:     exporter.Orchestrator,
		Tokens:       session.NewCredentialSource(credentials.NewStore(runner), exporter.Client, nil, &logger),
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPollInterval,
		RunTimeout:   cfg.WorkerRunTimeout,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid options")
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
