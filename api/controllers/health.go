package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/config"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

const readyTimeout = 3 * time.Second

// Pinger is any dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency names a Pinger in the readiness output.
type Dependency struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MultiLab-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and reports 503 when any of them fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps ...Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MultiLab-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		var failed []string
		for _, dep := range deps {
			if dep.Pinger == nil {
				continue
			}
			if err := dep.Pinger.Ping(ctx); err != nil {
				logg.Warn(logg.WithField(ctx, "dependency", dep.Name), "readiness check failed: "+err.Error())
				checks[dep.Name] = "down"
				failed = append(failed, dep.Name)
				continue
			}
			checks[dep.Name] = "up"
		}

		if len(failed) > 0 {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"checks": checks}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
