// Package runs provides harvest run history handlers for the UI.
package runs

import (
	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/ui/notifier"
)

// SetupRoutes registers the runs history feature routes.
func SetupRoutes(router chi.Router, store state.Store, source string, notify *notifier.Notifier) error {
	handlers := NewHandlers(store, source, notify)

	router.Get("/runs", handlers.RunsPage)
	router.Get("/runs/updates", handlers.RunsPageUpdates)

	return nil
}
