package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/evolury/estoque/internal/adjustment"
	"github.com/evolury/estoque/internal/auth"
	"github.com/evolury/estoque/internal/devproxy"
	"github.com/evolury/estoque/internal/observability"
	"github.com/evolury/estoque/internal/platform/httpx"
	"github.com/evolury/estoque/internal/shared"
	"github.com/evolury/estoque/internal/shell"
	"github.com/evolury/estoque/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Redis             *redis.Client
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	Shell             *shell.Shell
	AuthHandler       *auth.Handler
	AdjustmentHandler *adjustment.Handler
	// DevProxy is mounted under /api-n8n when set.
	DevProxy http.Handler
	Metrics  *observability.Metrics
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	mwConfig := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}
	for _, mw := range BaseMiddlewares(mwConfig) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, fmt.Errorf("%s: %w", r.URL.Path, shared.ErrNotFound))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Redis != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Redis.Ping(ctx).Err(); err != nil {
				params.Logger.Warn("health check redis", slog.Any("error", err))
				httpx.RespondError(w, fmt.Errorf("redis: %w", httpx.ErrUpstream))
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Served outside the session chain: no cookie, no CSRF, no rate limit.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	if params.DevProxy != nil {
		r.Handle(devproxy.Prefix, params.DevProxy)
		r.Handle(devproxy.Prefix+"/*", params.DevProxy)
	}

	r.Group(func(r chi.Router) {
		for _, mw := range SessionMiddlewares(mwConfig) {
			r.Use(mw)
		}
		r.Route("/auth", params.AuthHandler.MountRoutes)
		params.Shell.MountRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(params.Shell.RequireUser)
			params.AdjustmentHandler.MountRoutes(r)
		})
	})

	return r
}

// staticCacheHandler lets browsers keep static assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
