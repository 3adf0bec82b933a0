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

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/storekeep/storekeep/cmd/storekeep/cli"
	"github.com/storekeep/storekeep/internal/app"
	"github.com/storekeep/storekeep/internal/audit"
	"github.com/storekeep/storekeep/internal/catalog"
	"github.com/storekeep/storekeep/internal/expenses"
	"github.com/storekeep/storekeep/internal/observability"
	"github.com/storekeep/storekeep/internal/parties"
	"github.com/storekeep/storekeep/internal/platform/cache"
	"github.com/storekeep/storekeep/internal/platform/db"
	"github.com/storekeep/storekeep/internal/recorder"
	"github.com/storekeep/storekeep/internal/reports"
	"github.com/storekeep/storekeep/internal/settings"
	"github.com/storekeep/storekeep/internal/shared"
	"github.com/storekeep/storekeep/jobs"
	"github.com/storekeep/storekeep/report"
)

const usage = `usage: storekeep [serve | migrate | jobs trigger <task> | jobs stats]`

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

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = db.Migrate(cfg.PGDSN, logger)
	case "jobs":
		err = runJobs(ctx, cfg, args[1:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	c := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() { _ = c.Close() }()
	switch {
	case len(args) == 2 && args[0] == "trigger":
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s as %s\n", info.Type, info.ID)
		return nil
	case len(args) == 1 && args[0] == "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		return cli.WriteStats(os.Stdout, stats)
	}
	return errors.New(usage)
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.PGDSN, logger); err != nil {
			return err
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		logger.Warn("redis unavailable, report caching disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	settingsService := settings.NewService(settings.NewRepository(pool), logger)
	catalogService := catalog.NewService(catalog.NewRepository(pool), settingsService, logger)
	partiesService := parties.NewService(parties.NewRepository(pool))

	reportCache := cache.NewVersioned(redisClient, "reports", cfg.ReportCacheTTL)
	reportsService := reports.NewService(reports.NewPGSource(pool), reportCache, logger)
	expensesService := expenses.NewService(expenses.NewRepository(pool), reportsService, logger)

	recorderService := recorder.NewService(recorder.NewRepository(pool), catalogService, partiesService, recorder.Options{
		Audit:       auditLogger,
		Observer:    metrics,
		Invalidator: reportsService,
		Logger:      logger,
	})

	gotenberg := report.NewClient(cfg.GotenbergURL)
	renderer := report.NewRenderer(gotenberg)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Metrics:         metrics,
		Health:          healthChecks(pool, redisClient),
		CatalogHandler:  catalog.NewHandler(logger, catalogService),
		PartiesHandler:  parties.NewHandler(logger, partiesService),
		RecorderHandler: recorder.NewHandler(logger, recorderService, renderer, settingsService),
		ExpensesHandler: expenses.NewHandler(logger, expensesService),
		SettingsHandler: settings.NewHandler(logger, settingsService),
		ReportsHandler:  reports.NewHandler(logger, reportsService, renderer, settingsService),
		AuditHandler:    audit.NewHandler(logger, audit.NewService(audit.NewRepository(pool))),
		JobHandler:      jobs.NewHandler(inspector, logger),
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
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func healthChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]app.HealthCheck {
	checks := map[string]app.HealthCheck{
		"postgres": pool.Ping,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
