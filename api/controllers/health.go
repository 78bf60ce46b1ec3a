package controllers

import (
	"net/http"

	"github.com/assetdeck/assetdeck-backend/api/responses"
	"github.com/assetdeck/assetdeck-backend/pkg/config"
	"github.com/assetdeck/assetdeck-backend/pkg/db"
	pkgerrors "github.com/assetdeck/assetdeck-backend/pkg/errors"
	"github.com/assetdeck/assetdeck-backend/pkg/logger"
	"github.com/assetdeck/assetdeck-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AssetDeck-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the backing stores so orchestrators stop routing to an
// instance that lost its database or Redis.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AssetDeck-Env", cfg.App.Env)

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
