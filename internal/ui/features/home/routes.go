// Package home provides the dashboard feature for the UI.
package home

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
	"github.com/leapstack-labs/leaplineage/internal/ui/notifier"
)

// SetupRoutes configures routes for the home feature.
func SetupRoutes(
	router chi.Router,
	source common.Source,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	logger *slog.Logger,
) error {
	handlers := NewHandlers(source, sessionStore, notify, logger)

	router.Get("/", handlers.HomePage)
	router.Get("/updates", handlers.HomePageUpdates)
	router.Post("/filter", handlers.Filter)

	return nil
}
