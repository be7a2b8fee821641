package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bugtrap/bugtrap/internal/admin"
	"github.com/bugtrap/bugtrap/internal/app"
	"github.com/bugtrap/bugtrap/internal/auth"
	"github.com/bugtrap/bugtrap/internal/bugs"
	"github.com/bugtrap/bugtrap/internal/observability"
	"github.com/bugtrap/bugtrap/internal/platform/cache"
	"github.com/bugtrap/bugtrap/internal/platform/db"
	"github.com/bugtrap/bugtrap/internal/rbac"
	"github.com/bugtrap/bugtrap/internal/shared"
	"github.com/bugtrap/bugtrap/internal/token"
	"github.com/bugtrap/bugtrap/internal/users"
	"github.com/bugtrap/bugtrap/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(pool)
	if cfg.SeedOnStart {
		if err := rbacService.Seed(ctx, logger); err != nil {
			logger.Error("seed rbac catalog", slog.Any("error", err))
			os.Exit(1)
		}
	}

	usersRepo := users.NewRepository(pool)
	denylist := token.NewDenylist(redisClient)
	tokens, err := token.NewManager(cfg.JWTSecret, cfg.TokenTTL, denylist, usersRepo)
	if err != nil {
		logger.Error("init token manager", slog.Any("error", err))
		os.Exit(1)
	}

	mw := rbac.NewMiddleware(tokens, metrics)
	auditLogger := shared.NewAuditLogger(pool)

	authRepo := auth.NewPostgresRepository(pool)
	authService := auth.NewService(authRepo, rbacService)
	authHandler := auth.NewHandler(logger, authService, tokens, mw, cfg.IsProduction())

	notifier, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	bugsRepo := bugs.NewRepository(pool)
	bugsService := bugs.NewService(bugsRepo, notifier, auditLogger, logger)
	bugsHandler := bugs.NewHandler(logger, bugsService, mw)

	usersService := users.NewService(usersRepo, auditLogger)
	usersHandler := users.NewHandler(logger, usersService, mw)

	adminService := admin.NewService(admin.NewPostgresRepository(pool))
	adminHandler := admin.NewHandler(logger, adminService, mw)

	permissionsHandler := rbac.NewPermissionsHandler(rbacService, mw, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        authHandler,
		BugsHandler:        bugsHandler,
		UsersHandler:       usersHandler,
		AdminHandler:       adminHandler,
		PermissionsHandler: permissionsHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("smtp", net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort))))
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
