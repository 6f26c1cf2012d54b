package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/moinfo/MoBilling-sub001/internal/app"
	"github.com/moinfo/MoBilling-sub001/internal/billing/escalation"
	"github.com/moinfo/MoBilling-sub001/internal/billing/invoicing"
	"github.com/moinfo/MoBilling-sub001/internal/billing/ledger"
	"github.com/moinfo/MoBilling-sub001/internal/billing/reminders"
	"github.com/moinfo/MoBilling-sub001/internal/billing/statutory"
	"github.com/moinfo/MoBilling-sub001/internal/billing/sweep"
	"github.com/moinfo/MoBilling-sub001/internal/clients"
	"github.com/moinfo/MoBilling-sub001/internal/notify"
	"github.com/moinfo/MoBilling-sub001/internal/numbering"
	"github.com/moinfo/MoBilling-sub001/internal/platform/cache"
	"github.com/moinfo/MoBilling-sub001/internal/platform/db"
	"github.com/moinfo/MoBilling-sub001/internal/shared"
	"github.com/moinfo/MoBilling-sub001/internal/subscriptions"
	"github.com/moinfo/MoBilling-sub001/internal/tenants"
	"github.com/moinfo/MoBilling-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, tenant access cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	notifyRouter := notify.NewRouter(map[notify.Channel]notify.Dispatcher{
		notify.ChannelEmail: &notify.SMTPDispatcher{Host: cfg.SMTPHost, Port: cfg.SMTPPort, From: cfg.SMTPFrom},
		notify.ChannelSMS:   &notify.LogDispatcher{Logger: logger},
	})

	access := tenants.NewAccessChecker(tenants.NewPGDirectory(pool), redisClient)
	numbers := numbering.NewGenerator(pool)
	auditLogger := shared.NewAuditLogger(pool)

	ledgerRepo := ledger.NewRepository(pool)
	invoiceRepo := invoicing.NewRepository(pool, ledgerRepo)
	clientRepo := clients.NewRepository(pool)
	subsRepo := subscriptions.NewRepository(pool)

	generator := invoicing.NewGenerator(invoiceRepo, subsRepo, ledgerRepo, access, numbers, clientRepo, notifyRouter, logger, invoicing.GeneratorConfig{
		HorizonDays: cfg.SweepHorizonDays,
		Currency:    cfg.Currency,
	})
	scheduler := reminders.NewScheduler(ledgerRepo, invoiceRepo, clientRepo, notifyRouter, logger)
	engine := escalation.NewEngine(invoiceRepo, clientRepo, access, notifyRouter, auditLogger, logger, escalation.Config{
		LateFeeAfterDays:     cfg.LateFeeAfterDays,
		TerminationAfterDays: cfg.TerminationAfterDays,
		LateFeePercent:       decimal.NewFromInt(int64(cfg.LateFeePercent)),
	})
	statutoryRepo := statutory.NewRepository(pool)
	advancer := statutory.NewAdvancer(statutoryRepo, numbers, logger, cfg.SweepHorizonDays)

	runner := sweep.NewRunner(generator, scheduler, engine, advancer, sweep.NewMetrics(nil), logger, sweep.Config{
		TimeBudget: cfg.SweepTimeBudget,
	})
	sweepJob := jobs.NewBillingSweepJob(runner, logger, nil)

	sweepTask, err := jobs.NewBillingSweepTask(jobs.BillingSweepPayload{})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBillingSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
