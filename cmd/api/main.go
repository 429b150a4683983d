package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"designbridge/internal/adapter/repo"
	"designbridge/internal/bootstrap"
	"designbridge/internal/http/handlers"
	httpapi "designbridge/internal/http/httpapi"
	"designbridge/internal/infra"
	"designbridge/internal/infra/credentials"
	"designbridge/internal/infra/geoip"
	"designbridge/internal/middleware"
	"designbridge/internal/session"
	"designbridge/internal/sqlinline"
	"designbridge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	if _, err := runner.Exec(ctx, sqlinline.QEnsureSchema); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()
	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}

	exporter, err := bootstrap.NewExporter(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure exporter")
	}

	credStore := credentials.NewStore(runner)
	app := &handlers.App{
		Logger:        logger,
		Users:         repo.NewUserRepository(runner),
		Exports:       repo.NewExportRepository(runner),
		Exporter:      exporter.Orchestrator,
		Tokens:        session.NewCredentialSource(credStore, exporter.Client, nil, &logger),
		OAuth:         exporter.Client,
		States:        session.NewStateStore(rdb),
		Credentials:   credStore,
		JWTSecret:     cfg.JWTSecret,
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.AppEnv != "development",
		SinkBackend:   cfg.SinkBackend,
	}

	opts := httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		CountryLookup:   lookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
	}
	if cfg.SinkBackend == storage.BackendFilesystem {
		opts.StaticDir = cfg.StoragePath
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, opts))

	go func() {
		logger.Info().Str("sink", cfg.SinkBackend).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
