// Package graph provides the lineage graph handlers for the UI.
package graph

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/leaplineage/internal/dag"
	"github.com/leapstack-labs/leaplineage/internal/render"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/graph/pages"
	"github.com/leapstack-labs/leaplineage/internal/ui/notifier"
)

const nodeSize = 12

// Handlers provides HTTP handlers for the graph feature.
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

// GraphPage renders the interactive graph with its data inlined.
func (h *Handlers) GraphPage(w http.ResponseWriter, r *http.Request) {
	data, err := h.graphData(r.Context(), common.SelectedProject(h.sessionStore, r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	shell := common.ShellData{
		Title:       "Graph",
		CurrentPath: "/graph",
		UpdatesURL:  "/graph/updates",
		Source:      h.source.Name(),
	}
	if err := pages.GraphPage(shell, pages.NewGraphView(data)).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GraphPageUpdates re-sends the graph data on every broadcast.
func (h *Handlers) GraphPageUpdates(w http.ResponseWriter, r *http.Request) {
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
			if err := h.sendGraph(ctx, sse, selected); err != nil {
				h.logger.Debug("graph update failed", "error", err)
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func (h *Handlers) sendGraph(ctx context.Context, sse *datastar.ServerSentEventGenerator, selected string) error {
	data, err := h.graphData(ctx, selected)
	if err != nil {
		return err
	}
	script, err := pages.UpdateScript(data)
	if err != nil {
		return err
	}
	return sse.ExecuteScript(script)
}

// GraphJSON returns the graph as {nodes, edges}.
func (h *Handlers) GraphJSON(w http.ResponseWriter, r *http.Request) {
	data, err := h.graphData(r.Context(), common.SelectedProject(h.sessionStore, r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("failed to write graph json", "error", err)
	}
}

func (h *Handlers) graphData(ctx context.Context, selected string) (render.GraphData, error) {
	snap, err := h.source.Snapshot(ctx)
	if err != nil {
		return render.GraphData{}, err
	}
	view := snap.Filter(selected)
	return render.Data(dag.FromLineage(view.Lineage, view.Datasources, h.logger), nodeSize), nil
}
