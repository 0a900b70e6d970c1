package home

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/leaplineage/internal/dag"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/home/pages"
	"github.com/leapstack-labs/leaplineage/internal/ui/notifier"
)

// Handlers provides HTTP handlers for the home feature.
type Handlers struct {
	source       common.Source
	sessionStore sessions.Store
	notifier     *notifier.Notifier
	logger       *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(source common.Source, sessionStore sessions.Store, notify *notifier.Notifier, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		source:       source,
		sessionStore: sessionStore,
		notifier:     notify,
		logger:       logger,
	}
}

// HomePage renders the dashboard with full content.
func (h *Handlers) HomePage(w http.ResponseWriter, r *http.Request) {
	d, err := h.buildDashboard(r.Context(), common.SelectedProject(h.sessionStore, r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	shell := common.ShellData{
		Title:       "Dashboard",
		CurrentPath: "/",
		UpdatesURL:  "/updates",
		Source:      h.source.Name(),
	}
	if err := pages.HomePage(shell, d).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HomePageUpdates is the long-lived SSE endpoint for the dashboard.
// Content is server-rendered by HomePage, so nothing is sent until the
// first broadcast.
func (h *Handlers) HomePageUpdates(w http.ResponseWriter, r *http.Request) {
	selected := common.SelectedProject(h.sessionStore, r)
	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			d, err := h.buildDashboard(ctx, selected)
			if err == nil {
				err = sse.PatchElementTempl(pages.HomeContent(d))
			}
			if err != nil {
				h.logger.Debug("dashboard update failed", "error", err)
				_ = sse.ConsoleError(err)
			}
		}
	}
}

// Filter stores the selected project and sends the browser back to the dashboard.
func (h *Handlers) Filter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	project := strings.TrimSpace(r.PostFormValue("project"))
	if err := common.SaveSelectedProject(h.sessionStore, w, r, project); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) buildDashboard(ctx context.Context, selected string) (*pages.Dashboard, error) {
	snap, err := h.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	view := snap.Filter(selected)

	g := dag.FromLineage(view.Lineage, view.Datasources, h.logger)
	return &pages.Dashboard{
		Run:          snap.Run,
		Selected:     selected,
		AllProjects:  snap.Projects,
		ProjectCount: len(view.Projects),
		SourceCount:  len(view.Datasources),
		EdgeCount:    len(view.Lineage),
		Roots:        g.GetRoots(),
		Leaves:       g.GetLeaves(),
		Datasources:  view.Datasources,
		Lineage:      view.Lineage,
	}, nil
}
