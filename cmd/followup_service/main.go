package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/wardrockay/auto-followup/internal/followup/adapters/mailwriter"
	"github.com/wardrockay/auto-followup/internal/followup/adapters/odoo"
	"github.com/wardrockay/auto-followup/internal/followup/app"
	"github.com/wardrockay/auto-followup/internal/followup/domain"
	"github.com/wardrockay/auto-followup/internal/followup/repository/postgres"
	httptransport "github.com/wardrockay/auto-followup/internal/followup/transport/http"
	"github.com/wardrockay/auto-followup/internal/platform/config"
	"github.com/wardrockay/auto-followup/internal/platform/database"
	"github.com/wardrockay/auto-followup/internal/platform/logger"
	"github.com/wardrockay/auto-followup/internal/platform/messagebroker"
)

const (
	serviceName     = "followup-service"
	shutdownTimeout = 15 * time.Second
)

// httpLogger logs each HTTP request with slog.
func httpLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", ww.Status()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", chiMiddleware.GetReqID(r.Context())),
			)
		}
		return http.HandlerFunc(fn)
	}
}

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(serviceName, cfg.LogLevel)
	appLogger.Info("Followup service starting...", "port", cfg.ServerPort, "log_level", cfg.LogLevel)

	schedule, err := domain.ParseSchedule(cfg.FollowupSchedule)
	if err != nil {
		appLogger.Error("Invalid followup schedule", "error", err, "raw", cfg.FollowupSchedule)
		os.Exit(1)
	}
	calendar := domain.FrenchCalendar()

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, appLogger, serviceName)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	followupRepo := postgres.NewPgFollowupRepository(dbPool, appLogger)
	draftRepo := postgres.NewPgDraftRepository(dbPool, appLogger)

	odooTimeout := time.Duration(cfg.OdooTimeoutSeconds) * time.Second
	mailWriterTimeout := time.Duration(cfg.MailWriterTimeoutSeconds) * time.Second
	contactProvider := odoo.NewContactProvider(appLogger, cfg.OdooBaseURL, cfg.OdooAPIKey,
		&http.Client{Timeout: odooTimeout})
	dispatcher := mailwriter.NewDispatcher(appLogger, cfg.MailWriterURL,
		&http.Client{Timeout: mailWriterTimeout})

	schedulerService := app.NewSchedulerService(draftRepo, followupRepo, calendar, schedule, appLogger)
	processorService := app.NewProcessorService(followupRepo, draftRepo, contactProvider, dispatcher, natsClient, appLogger, app.ProcessorConfig{
		Workers:              cfg.ProcessorWorkers,
		EnrichTimeout:        odooTimeout,
		DispatchTimeout:      mailWriterTimeout,
		StaleProcessingAfter: time.Duration(cfg.StaleProcessingMinutes) * time.Minute,
	})
	cancellationService := app.NewCancellationService(draftRepo, followupRepo, natsClient, appLogger, cfg.CancelIncludesProcessing)
	retryService := app.NewRetryService(followupRepo, appLogger)

	handler := httptransport.NewFollowupHandler(
		schedulerService,
		cancellationService,
		processorService,
		retryService,
		followupRepo,
		appLogger,
		validator.New(),
	)

	router := chi.NewRouter()
	router.Use(httpLogger(appLogger))
	router.Mount("/", httptransport.NewRouter(handler))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	g, gCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			appLogger.Info("Received shutdown signal", "signal", sig.String())
			mainCancel()
		case <-gCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Followup service stopped")
}
