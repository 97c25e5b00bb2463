package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lotkeeper/lotkeeper/internal/app"
	"github.com/lotkeeper/lotkeeper/internal/imports"
	"github.com/lotkeeper/lotkeeper/internal/inventory"
	"github.com/lotkeeper/lotkeeper/internal/observability"
	"github.com/lotkeeper/lotkeeper/internal/planner"
	"github.com/lotkeeper/lotkeeper/internal/platform/cache"
	"github.com/lotkeeper/lotkeeper/internal/platform/db"
	"github.com/lotkeeper/lotkeeper/internal/shared"
	"github.com/lotkeeper/lotkeeper/jobs"
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, planner cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, metrics)

	plannerRepo := planner.NewRepository(pool)
	plannerCache := planner.NewCache(redisClient, cfg.PlannerCacheTTL)
	plannerService := planner.NewService(plannerRepo, plannerCache, logger)

	importsRepo := imports.NewRepository(pool)
	importsService := imports.NewService(importsRepo, inventoryService, auditLogger, logger)

	snapshotJob := jobs.NewPlannerSnapshotJob(plannerService, logger, cfg.DefaultWarehouse)
	reconcileJob := jobs.NewLedgerReconcileJob(inventoryService, metrics, logger)
	cleanupJob := jobs.NewImportsCleanupJob(importsService, cfg.ImportDedupeTTL, logger)

	snapshotTask, err := jobs.NewPlannerSnapshotTask(jobs.PlannerSnapshotPayload{WarehouseID: cfg.DefaultWarehouse})
	if err != nil {
		logger.Error("build snapshot task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPlannerSnapshot, Handler: snapshotJob.Handle},
			{Type: jobs.TaskLedgerReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskImportsDedupeCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.PlannerSnapshotCron, Task: snapshotTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.LedgerReconcileCron, Task: jobs.NewLedgerReconcileTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 4 * * *", Task: jobs.NewImportsDedupeCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
