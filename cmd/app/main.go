// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcript-compare/internal/config"
	"transcript-compare/internal/domain/ports/adapter"
	"transcript-compare/internal/infra/adapters/notify"
	"transcript-compare/internal/infra/adapters/provider"
	pg "transcript-compare/internal/infra/db/postgres"
	"transcript-compare/internal/infra/logging"
	"transcript-compare/internal/infra/metrics"
	red "transcript-compare/internal/infra/redis"
	"transcript-compare/internal/infra/security"
	"transcript-compare/internal/infra/web"
	"transcript-compare/internal/infra/worker"
	"transcript-compare/internal/usecase"
)

const version = "0.1.0"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, trace level)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Encryption ----
	encSvc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, tm)
	projectRepo := pg.NewProjectRepo(pool)
	audioRepo := pg.NewAudioFileRepo(pool)
	credRepo := pg.NewCredentialRepo(pool, encSvc)

	// ---- Providers ----
	registry := provider.NewRegistry()

	// ---- Notifier ----
	var notifier adapter.Notifier
	if cfg.Notify.TelegramToken != "" {
		notifier, err = notify.NewTelegramNotifier(&cfg.Notify, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier")
		}
	} else {
		notifier = notify.NewNoopNotifier(logger)
	}

	// ---- Use cases ----
	aggregator := usecase.NewAggregator(projectRepo, jobRepo, notifier, logger)
	orch := usecase.NewTranscriptionOrchestrator(registry, jobRepo, projectRepo, audioRepo, credRepo, tm, locker, aggregator, logger)
	exporter := usecase.NewExportService(jobRepo, logger)
	providerSvc := usecase.NewProviderService(registry, credRepo, logger)

	// ---- Execution engine ----
	engine := worker.NewEngine(cfg.Worker, cfg.ProviderLimit, registry, jobRepo, projectRepo, audioRepo, credRepo, aggregator, locker, rateLimiter, logger)
	orch.SetCanceller(engine)
	go engine.Start(ctx)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Security.JWTSecret, 0)
	srv := web.NewServer(orch, exporter, providerSvc, auth, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
