package controllers

import (
	"context"
	"net/http"

	"github.com/evermark/servicedesk-backend/api/responses"
	"github.com/evermark/servicedesk-backend/pkg/config"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ServiceDesk-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the row store and redis answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ServiceDesk-Env", cfg.App.Env)

		checks := map[string]string{"db": "ok", "redis": "ok"}
		failed := ""

		if db == nil {
			checks["db"] = "not configured"
			failed = "db"
		} else if err := db.Ping(r.Context()); err != nil {
			checks["db"] = err.Error()
			failed = "db"
			logError(r.Context(), logg, "readiness db ping failed", err)
		}

		if cache == nil {
			checks["redis"] = "not configured"
			if failed == "" {
				failed = "redis"
			}
		} else if err := cache.Ping(r.Context()); err != nil {
			checks["redis"] = err.Error()
			if failed == "" {
				failed = "redis"
			}
			logError(r.Context(), logg, "readiness redis ping failed", err)
		}

		if failed != "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, failed+" not ready").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
