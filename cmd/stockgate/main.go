package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockgate/cmd/stockgate/cli"
	"github.com/odyssey-erp/stockgate/internal/app"
	"github.com/odyssey-erp/stockgate/internal/auth"
	"github.com/odyssey-erp/stockgate/internal/backend"
	"github.com/odyssey-erp/stockgate/internal/dashboard"
	"github.com/odyssey-erp/stockgate/internal/masterdata"
	"github.com/odyssey-erp/stockgate/internal/observability"
	"github.com/odyssey-erp/stockgate/internal/operations"
	"github.com/odyssey-erp/stockgate/internal/platform/cache"
	"github.com/odyssey-erp/stockgate/internal/platform/db"
	"github.com/odyssey-erp/stockgate/internal/rbac"
	"github.com/odyssey-erp/stockgate/internal/shared"
	"github.com/odyssey-erp/stockgate/internal/snapshot"
	"github.com/odyssey-erp/stockgate/jobs"
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
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		ops := cli.NewJobsCLI(redisOpts)
		code := ops.Run(ctx, os.Args[2:], os.Stdout, os.Stderr)
		_ = ops.Close()
		os.Exit(code)
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var pool *pgxpool.Pool
	if cfg.AuditPersisted() {
		pool, err = db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ApplicationName: "stockgate"})
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			logger.Error("ensure schema", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("audit trail disabled, guard decisions are only logged")
	}

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "stockgate_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)

	backendClient, err := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, logger)
	if err != nil {
		logger.Error("init backend client", slog.Any("error", err))
		os.Exit(1)
	}

	snapshotCache := snapshot.NewCache(redisClient, cfg.SnapshotTTL)
	snapshots := snapshot.NewService(backendClient, snapshotCache, logger, metrics).WithServiceToken(cfg.BackendServiceToken)

	rbacMiddleware := rbac.Middleware{Logger: logger, Observer: metrics}
	relay := auth.Relay{Sessions: sessionManager, Logger: logger, Observer: metrics}

	var authRepo auth.Repository = auth.NopRepository{}
	if pool != nil {
		authRepo = auth.NewRepository(pool)
	}
	authService := auth.NewService(backendClient, authRepo, logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, relay, rbacMiddleware)

	operationsService := operations.NewService(backendClient, snapshots, auditLogger, metrics, logger)
	operationsHandler := operations.NewHandler(logger, operationsService, relay)
	masterDataHandler := masterdata.NewHandler(logger, masterdata.NewService(backendClient, snapshots, auditLogger, logger), relay, rbacMiddleware)
	dashboardHandler := dashboard.NewHandler(logger, dashboard.NewService(backendClient, snapshots), relay, rbacMiddleware)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	if cfg.BackendServiceToken != "" {
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = jobClient.Close() }()
		snapshotCache.Subscribe(ctx, func(version int64) {
			if _, err := jobClient.EnqueueSnapshotWarmup(ctx, "invalidated"); err != nil {
				logger.Warn("enqueue snapshot warmup", slog.Int64("version", version), slog.Any("error", err))
			}
		})
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        authHandler,
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacMiddleware),
		OperationsHandler:  operationsHandler,
		DashboardHandler:   dashboardHandler,
		MasterDataHandler:  masterDataHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
