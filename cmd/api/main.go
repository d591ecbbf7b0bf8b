package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/api"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/cache"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/config"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/logging"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/outbox"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence/backend"
	httptransport "github.com/EvgeniyVishnevskiy/sleep-logger/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Must("info", "json").Fatal("invalid configuration", zap.Error(err))
	}
	logger := logging.Must(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	defer store.Close()

	opts := []domain.Option{domain.WithLogger(logger.Named("domain"))}
	if cfg.AverageCacheSize > 0 && cfg.AverageCacheTTL > 0 {
		opts = append(opts, domain.WithAverageCache(cache.NewAverages(cfg.AverageCacheSize, cfg.AverageCacheTTL)))
	}
	service := domain.NewService(store.Repo, opts...)

	var dispatcher *outbox.Dispatcher
	if store.Pool != nil && cfg.OutboxEnabled {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, logger)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(store.Pool, producer, registry, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	}

	handler := api.NewHandler(service, logger.Named("api"))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(mux, httptransport.RequestID, httptransport.AccessLog(logger.Named("http"))),
	)

	go func() {
		logger.Info("sleep-log api listening", zap.String("address", cfg.HTTPAddress), zap.String("backend", store.Name))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
}
