package graph

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
	"github.com/leapstack-labs/leaplineage/internal/ui/notifier"
)

// SetupRoutes registers the graph feature routes.
func SetupRoutes(
	router chi.Router,
	source common.Source,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	logger *slog.Logger,
) error {
	handlers := NewHandlers(source, sessionStore, notify, logger)

	// Page route (full page render with content)
	router.Get("/graph", handlers.GraphPage)

	// SSE route (live updates only)
	router.Get("/graph/updates", handlers.GraphPageUpdates)

	router.Get("/api/graph", handlers.GraphJSON)

	return nil
}
