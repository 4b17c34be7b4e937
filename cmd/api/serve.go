package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/osteo-api/internal/config"
	documenthandler "github.com/jwalitptl/osteo-api/internal/handler/document"
	eventhandler "github.com/jwalitptl/osteo-api/internal/handler/event"
	examhandler "github.com/jwalitptl/osteo-api/internal/handler/examination"
	"github.com/jwalitptl/osteo-api/internal/handler/health"
	invoicehandler "github.com/jwalitptl/osteo-api/internal/handler/invoice"
	patienthandler "github.com/jwalitptl/osteo-api/internal/handler/patient"
	prometheushandler "github.com/jwalitptl/osteo-api/internal/handler/prometheus"
	settingshandler "github.com/jwalitptl/osteo-api/internal/handler/settings"
	"github.com/jwalitptl/osteo-api/internal/middleware"
	"github.com/jwalitptl/osteo-api/internal/repository/postgres"
	"github.com/jwalitptl/osteo-api/internal/router"
	"github.com/jwalitptl/osteo-api/internal/service/document"
	"github.com/jwalitptl/osteo-api/internal/service/event"
	"github.com/jwalitptl/osteo-api/internal/service/examination"
	"github.com/jwalitptl/osteo-api/internal/service/invoice"
	"github.com/jwalitptl/osteo-api/internal/service/patient"
	"github.com/jwalitptl/osteo-api/internal/service/settings"
	"github.com/jwalitptl/osteo-api/internal/storage"
	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/logger"
	"github.com/jwalitptl/osteo-api/pkg/metrics"
	"github.com/jwalitptl/osteo-api/pkg/validator"
)

const (
	metricsNamespace = "osteo"
	settingsCacheTTL = 5 * time.Minute
	shutdownTimeout  = 15 * time.Second
)

func serveCmd(configPath *string) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*configPath, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServer(configPath string, migrate bool) error {
	cfg, log, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if logger.ParseLevel(cfg.Log.Level) > logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		if err := postgres.Migrate(db, 0); err != nil {
			return err
		}
	}

	files, err := storage.NewLocalStore(cfg.Storage.MediaRoot)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(metricsNamespace, reg)

	store := postgres.NewStore(db)
	v := validator.New()

	settingsSvc := settings.NewService(store, v, log, nil, settingsCacheTTL)
	patientSvc := patient.NewService(store, files, v, m, log, nil)
	examSvc := examination.NewService(store, v, m, log, nil)
	invoiceSvc := invoice.NewService(store, settingsSvc, v, m, log, nil)
	documentSvc := document.NewService(store, files, v, m, log, nil)
	eventSvc := event.NewService(store, v, log, nil)

	healthH := health.NewHandler(map[string]health.Checker{
		"database": health.CheckFunc(db.PingContext),
	})

	r := router.NewRouter(routerConfig(cfg), auth.NewJWTService(cfg.Auth.JWTSecret), m,
		healthH, prometheushandler.New(reg),
		patienthandler.NewHandler(patientSvc),
		examhandler.NewHandler(examSvc),
		invoicehandler.NewHandler(invoiceSvc),
		documenthandler.NewHandler(documentSvc),
		settingshandler.NewHandler(settingsSvc),
		eventhandler.NewHandler(eventSvc),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("server exited")
	return nil
}

func routerConfig(cfg *config.Config) router.RouterConfig {
	cors := middleware.DefaultCORSConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.Server.AllowedOrigins
	}

	sizeLimit := middleware.DefaultSizeLimitConfig()
	if cfg.Server.MaxBodyBytes > 0 {
		sizeLimit.MaxUploadSize = cfg.Server.MaxBodyBytes
	}

	rc := router.RouterConfig{
		CORS:      cors,
		Security:  middleware.DefaultSecurityConfig(),
		SizeLimit: sizeLimit,
		Timeout:   middleware.TimeoutConfig{Duration: cfg.Server.RequestTimeout},
	}
	if cfg.RateLimit.Enabled {
		rc.RateLimit = &middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		}
	}
	return rc
}
