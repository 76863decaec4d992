package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ledgerlane/invoicer/internal/app"
	"github.com/ledgerlane/invoicer/internal/income"
	"github.com/ledgerlane/invoicer/internal/invoice"
	jobmetrics "github.com/ledgerlane/invoicer/internal/jobs"
	"github.com/ledgerlane/invoicer/internal/platform/cache"
	"github.com/ledgerlane/invoicer/internal/platform/db"
	"github.com/ledgerlane/invoicer/internal/store"
	"github.com/ledgerlane/invoicer/jobs"
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

	backend, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		PostgresDSN: cfg.PGDSN,
		SQLitePath:  cfg.SQLitePath,
		AutoMigrate: cfg.DBAutoMigrate,
		Pool:        db.PoolOptions{MaxConns: cfg.PGMaxConns},
	}, logger)
	if err != nil {
		logger.Error("open invoice store", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	queue := jobs.NewClient(redisOpts)
	defer queue.Close()

	metrics := jobmetrics.NewMetrics(nil)
	incomeService := income.NewService(backend, income.NewCache(redisClient, cfg.IncomeCacheTTL))
	invoiceService := invoice.NewService(backend, nil, incomeService, logger)

	mailJob := &jobs.MailJob{
		Mailer:  jobs.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom),
		Logger:  logger,
		Metrics: metrics,
	}
	reminderJob := &jobs.DueReminderJob{
		Invoices:  invoiceService,
		Mail:      queue,
		Recipient: cfg.ReminderTo,
		Location:  cfg.Location(),
		Logger:    logger,
		Metrics:   metrics,
	}
	warmupJob := &jobs.IncomeWarmupJob{
		Reports:  incomeService,
		Location: cfg.Location(),
		Logger:   logger,
		Metrics:  metrics,
	}

	var schedule []jobs.CronRegistration
	if cfg.ReminderCron != "" {
		task, err := jobs.NewDueReminderTask(jobs.DueReminderPayload{})
		if err != nil {
			logger.Error("build reminder task", slog.Any("error", err))
			os.Exit(1)
		}
		schedule = append(schedule, jobs.CronRegistration{Spec: cfg.ReminderCron, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}
	if cfg.WarmupCron != "" {
		task, err := jobs.NewIncomeWarmupTask(jobs.IncomeWarmupPayload{})
		if err != nil {
			logger.Error("build warmup task", slog.Any("error", err))
			os.Exit(1)
		}
		schedule = append(schedule, jobs.CronRegistration{Spec: cfg.WarmupCron, Task: task, Options: []asynq.Option{asynq.MaxRetry(1)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Location:  cfg.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSendEmail, Handler: mailJob.Handle},
			{Type: jobs.TaskDueReminder, Handler: reminderJob.Handle},
			{Type: jobs.TaskIncomeWarmup, Handler: warmupJob.Handle},
		},
		Cron: schedule,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
