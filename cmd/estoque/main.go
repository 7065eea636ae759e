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
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/evolury/estoque/internal/adjustment"
	"github.com/evolury/estoque/internal/app"
	"github.com/evolury/estoque/internal/auth"
	"github.com/evolury/estoque/internal/currency"
	"github.com/evolury/estoque/internal/devproxy"
	"github.com/evolury/estoque/internal/observability"
	"github.com/evolury/estoque/internal/platform/cache"
	"github.com/evolury/estoque/internal/shared"
	"github.com/evolury/estoque/internal/shell"
	"github.com/evolury/estoque/internal/supabase"
	"github.com/evolury/estoque/internal/view"
	"github.com/evolury/estoque/internal/webhook"
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

	sessionManager := shared.NewSessionManager(redisClient, "estoque_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	clock := clockwork.NewRealClock()
	identity := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.AuthTimeout)
	authService := auth.NewService(identity, clock, logger)
	authHandler := auth.NewHandler(logger, authService, templates, csrfManager)

	appShell := shell.New(logger, authService, sessionManager, metrics)
	appShell.Start()
	defer appShell.Close()

	target := devproxy.ResolveTarget(cfg.WebhookURL, logger)
	var proxy http.Handler
	if cfg.DevProxy() {
		proxy, err = devproxy.NewHandler(target, logger)
		if err != nil {
			logger.Error("dev proxy", slog.Any("error", err))
			os.Exit(1)
		}
	}

	adjustmentService := adjustment.NewService(
		webhook.NewClient(target.URL(), cfg.WebhookTimeout),
		shared.NewLocker(redisClient),
		metrics,
		clock,
		logger,
		adjustment.ServiceConfig{
			Formatter: currency.NewFormatter(currency.ParseLocale(cfg.CurrencyLocale)),
			Location:  cfg.Location(),
			LockTTL:   cfg.WebhookTimeout + 5*time.Second,
		},
	)
	adjustmentHandler := adjustment.NewHandler(logger, adjustmentService, templates, csrfManager)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Redis:             redisClient,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		Shell:             appShell,
		AuthHandler:       authHandler,
		AdjustmentHandler: adjustmentHandler,
		DevProxy:          proxy,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("env", cfg.AppEnv),
			slog.Bool("dev_proxy", proxy != nil))
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
