package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/ledgerlane/invoicer/internal/app"
	"github.com/ledgerlane/invoicer/internal/auth"
	"github.com/ledgerlane/invoicer/internal/board"
	"github.com/ledgerlane/invoicer/internal/events"
	"github.com/ledgerlane/invoicer/internal/income"
	"github.com/ledgerlane/invoicer/internal/income/export"
	incomehttp "github.com/ledgerlane/invoicer/internal/income/http"
	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/observability"
	"github.com/ledgerlane/invoicer/internal/platform/cache"
	"github.com/ledgerlane/invoicer/internal/platform/db"
	"github.com/ledgerlane/invoicer/internal/shared"
	"github.com/ledgerlane/invoicer/internal/store"
	"github.com/ledgerlane/invoicer/internal/view"
	"github.com/ledgerlane/invoicer/jobs"
	"github.com/ledgerlane/invoicer/report"
)

const (
	sessionCookie   = "invoicer_session"
	shutdownTimeout = 10 * time.Second
	issuerName      = "Invoicer"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return nil
	}
	ctx := cmd.Context()

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg)

	backend, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open invoice store", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("store close", slog.Any("error", err))
		}
	}()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	publisher, err := events.New(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		logger.Warn("amqp unavailable, events disabled", slog.Any("error", err))
		publisher = events.Nop{}
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("amqp close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		return err
	}
	metrics := observability.NewMetrics()
	location := cfg.Location()

	incomeCache := income.NewCache(redisClient, cfg.IncomeCacheTTL)
	if err := incomeCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("income cache invalidation listener", slog.Any("error", err))
	}
	incomeService := income.NewService(backend, incomeCache)
	invoiceService := invoice.NewService(backend, publisher, incomeService, logger)

	demoUsers, err := auth.NewDemoRepository(cfg.DemoEmail, cfg.DemoPassword)
	if err != nil {
		return err
	}
	authHandler := auth.NewHandler(logger, auth.NewService(demoUsers), templates, sessionManager, csrfManager)

	invoicePDF := invoice.NewPDF(issuerName)
	reportClient := report.NewClient(cfg.GotenbergURL, nil)

	inspector := asynq.NewInspector(redisOpt(cfg))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		InvoiceHandler: invoice.NewHandler(logger, invoiceService, templates, csrfManager, invoicePDF),
		InvoiceAPI:     invoice.NewAPI(logger, invoiceService, invoicePDF),
		BoardHandler:   board.NewHandler(logger, board.ServiceStore{Service: invoiceService}, templates, csrfManager, location, metrics),
		IncomeHandler:  incomehttp.NewHandler(logger, incomeService, templates, csrfManager, export.NewPDFExporter(reportClient), location),
		ReportHandler:  report.NewHandler(reportClient, logger),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server", slog.Any("error", err))
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg *app.Config, logger *slog.Logger) (store.Backend, error) {
	return store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		PostgresDSN: cfg.PGDSN,
		SQLitePath:  cfg.SQLitePath,
		AutoMigrate: cfg.DBAutoMigrate,
		Pool:        db.PoolOptions{MaxConns: cfg.PGMaxConns},
	}, logger)
}
