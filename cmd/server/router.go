package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmetrics "github.com/AstraSyncAI/astrasync-api/internal/platform/metrics"
	"github.com/AstraSyncAI/astrasync-api/internal/platform/middleware"
	platformredis "github.com/AstraSyncAI/astrasync-api/internal/platform/redis"
	registryhandler "github.com/AstraSyncAI/astrasync-api/internal/registry/handler"
	"github.com/AstraSyncAI/astrasync-api/pkg/platform/httputil"
)

const requestTimeout = 15 * time.Second

// newRouter assembles the middleware chain and mounts the registry
// endpoints plus the operational ones.
func newRouter(h *registryhandler.Handler, log *slog.Logger, m *platformmetrics.Metrics, db *sql.DB, cache *platformredis.Client) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.Latency(m))

	h.Register(r)

	r.Get("/healthz", healthHandler(db, cache))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// healthHandler pings the hard dependencies. Redis is optional and only
// checked when configured; a degraded cache does not fail liveness.
func healthHandler(db *sql.DB, cache *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok", "database": "ok"}
		code := http.StatusOK

		if err := db.PingContext(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
		if cache != nil {
			status["cache"] = "ok"
			if err := cache.Health(ctx); err != nil {
				status["cache"] = "unreachable"
			}
		}
		httputil.WriteJSON(w, code, status)
	}
}
