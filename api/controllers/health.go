package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/manafoundation/wishlist-backend/api/responses"
	"github.com/manafoundation/wishlist-backend/pkg/config"
	"github.com/manafoundation/wishlist-backend/pkg/db"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Mana-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the hard dependencies; any failure flips the check to 503.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Mana-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{
			"db":    pingStatus(ctx, dbP),
			"redis": pingStatus(ctx, redisP),
		}

		healthy := true
		for name, status := range checks {
			if status != "ok" && status != "skipped" {
				healthy = false
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{"dependency": name, "status": status})
					logg.Warn(logCtx, "readiness check failed")
				}
			}
		}

		statusText := "ready"
		statusCode := http.StatusOK
		if !healthy {
			statusText = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, statusCode, map[string]any{
			"status": statusText,
			"checks": checks,
		})
	}
}

func pingStatus(ctx context.Context, p db.Pinger) string {
	if p == nil {
		return "skipped"
	}
	if err := p.Ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}
