package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/osteo-api/internal/config"
	"github.com/jwalitptl/osteo-api/internal/handler/health"
	prometheushandler "github.com/jwalitptl/osteo-api/internal/handler/prometheus"
	"github.com/jwalitptl/osteo-api/internal/repository/postgres"
	"github.com/jwalitptl/osteo-api/internal/service/document"
	"github.com/jwalitptl/osteo-api/internal/storage"
	internalworker "github.com/jwalitptl/osteo-api/internal/worker"
	"github.com/jwalitptl/osteo-api/pkg/logger"
	"github.com/jwalitptl/osteo-api/pkg/messaging/redis"
	"github.com/jwalitptl/osteo-api/pkg/metrics"
	"github.com/jwalitptl/osteo-api/pkg/validator"
	"github.com/jwalitptl/osteo-api/pkg/worker"
)

func main() {
	var (
		configPath string
		healthAddr string
	)
	cmd := &cobra.Command{
		Use:           "osteo-worker",
		Short:         "Publish office events and purge stale file imports",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, healthAddr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the configuration file")
	cmd.Flags().StringVar(&healthAddr, "health-addr", ":8081", "listen address of the health and metrics endpoints")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, healthAddr string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	files, err := storage.NewLocalStore(cfg.Storage.MediaRoot)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics("osteo_worker", reg)

	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log, m)
	if err != nil {
		return err
	}
	defer broker.Close()

	store := postgres.NewStore(db)
	outboxCfg := cfg.Workers.Outbox
	processor := worker.NewOutboxProcessor(store, broker, worker.OutboxProcessorConfig{
		Channel:       cfg.Redis.Channel,
		BatchSize:     outboxCfg.BatchSize,
		PollInterval:  outboxCfg.PollInterval,
		RetryAttempts: outboxCfg.RetryAttempts,
		RetryDelay:    outboxCfg.RetryDelay,
	}, log, m)

	documents := document.NewService(store, files, validator.New(), m, log, nil)
	purger := internalworker.NewPurgeWorker(documents, store.Repos().Outbox, internalworker.PurgeConfig{
		Interval:  cfg.Workers.Purge.Interval,
		Retention: cfg.Workers.Purge.Retention,
		BatchSize: cfg.Workers.Purge.BatchSize,
	}, log)

	srv := healthServer(healthAddr, reg, map[string]health.Checker{
		"database": health.CheckFunc(db.PingContext),
		"redis":    broker,
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
			stop()
		}
	}()

	log.Info().Str("health_addr", healthAddr).Msg("worker started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		purger.Start(ctx)
	}()
	wg.Wait()

	shutdown(srv, log)
	return nil
}

func healthServer(addr string, gatherer prometheus.Gatherer, checks map[string]health.Checker) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(checks).RegisterRoutes(engine)
	engine.GET("/health/metrics", prometheushandler.New(gatherer).Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func shutdown(srv *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("health server shutdown failed")
	}
	log.Info().Msg("worker stopped")
}
