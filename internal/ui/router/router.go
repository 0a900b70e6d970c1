// Package router sets up HTTP routes for the UI server.
package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
	graphFeature "github.com/leapstack-labs/leaplineage/internal/ui/features/graph"
	homeFeature "github.com/leapstack-labs/leaplineage/internal/ui/features/home"
	runsFeature "github.com/leapstack-labs/leaplineage/internal/ui/features/runs"
	"github.com/leapstack-labs/leaplineage/internal/ui/notifier"
	"github.com/leapstack-labs/leaplineage/internal/ui/resources"
)

// Deps are the collaborators shared by the feature routes.
type Deps struct {
	Source       common.Source
	Store        state.Store
	SessionStore sessions.Store
	Notifier     *notifier.Notifier
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// SetupRoutes configures all routes for the UI server.
func SetupRoutes(router chi.Router, deps Deps) error {
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics)
	}

	// Static assets
	router.Handle("/static/*", resources.Handler())

	// Feature routes
	if err := homeFeature.SetupRoutes(router, deps.Source, deps.SessionStore, deps.Notifier, deps.Logger); err != nil {
		return err
	}

	if err := graphFeature.SetupRoutes(router, deps.Source, deps.SessionStore, deps.Notifier, deps.Logger); err != nil {
		return err
	}

	if deps.Store != nil {
		if err := runsFeature.SetupRoutes(router, deps.Store, deps.Source.Name(), deps.Notifier); err != nil {
			return err
		}
	}

	return nil
}
