package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/moinfo/MoBilling-sub001/internal/app"
	"github.com/moinfo/MoBilling-sub001/internal/billing/followups"
	"github.com/moinfo/MoBilling-sub001/internal/billing/invoicing"
	"github.com/moinfo/MoBilling-sub001/internal/billing/ledger"
	"github.com/moinfo/MoBilling-sub001/internal/billing/statutory"
	"github.com/moinfo/MoBilling-sub001/internal/catalog"
	"github.com/moinfo/MoBilling-sub001/internal/numbering"
	"github.com/moinfo/MoBilling-sub001/internal/observability"
	"github.com/moinfo/MoBilling-sub001/internal/payments"
	"github.com/moinfo/MoBilling-sub001/internal/platform/db"
	"github.com/moinfo/MoBilling-sub001/internal/subscriptions"
	"github.com/moinfo/MoBilling-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	numbers := numbering.NewGenerator(pool)
	ledgerRepo := ledger.NewRepository(pool)
	invoiceRepo := invoicing.NewRepository(pool, ledgerRepo)

	catalogRepo := catalog.NewRepository(pool)
	subsRepo := subscriptions.NewRepository(pool)
	subsService := subscriptions.NewService(subsRepo, catalogRepo)
	subsHandler := subscriptions.NewHandler(logger, subsService)

	followupRepo := followups.NewRepository(pool)
	followupService := followups.NewService(followupRepo, logger)
	followupHandler := followups.NewHandler(logger, followupService)

	statutoryRepo := statutory.NewRepository(pool)
	advancer := statutory.NewAdvancer(statutoryRepo, numbers, logger, cfg.SweepHorizonDays)

	paymentRepo := payments.NewRepository(pool)
	paymentService := payments.NewService(paymentRepo, invoiceRepo, numbers, logger)
	paymentHandler := payments.NewHandler(logger, paymentService, advancer)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		FollowupsHandler:     followupHandler,
		PaymentsHandler:      paymentHandler,
		SubscriptionsHandler: subsHandler,
		JobsHandler:          jobsHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
