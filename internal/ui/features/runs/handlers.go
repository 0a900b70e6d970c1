package runs

import (
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/runs/pages"
	"github.com/leapstack-labs/leaplineage/internal/ui/notifier"
)

const historyLimit = 50

// Handlers provides HTTP handlers for the runs history feature.
type Handlers struct {
	store    state.Store
	source   string
	notifier *notifier.Notifier
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store state.Store, source string, notify *notifier.Notifier) *Handlers {
	return &Handlers{store: store, source: source, notifier: notify}
}

// RunsPage renders the runs history page with full content.
func (h *Handlers) RunsPage(w http.ResponseWriter, r *http.Request) {
	rows, err := h.buildRows()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	shell := common.ShellData{
		Title:       "Run History",
		CurrentPath: "/runs",
		UpdatesURL:  "/runs/updates",
		Source:      h.source,
	}
	if err := pages.RunsPage(shell, rows).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// RunsPageUpdates is the long-lived SSE endpoint for the runs page.
func (h *Handlers) RunsPageUpdates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			rows, err := h.buildRows()
			if err == nil {
				err = sse.PatchElementTempl(pages.RunsContent(rows))
			}
			if err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func (h *Handlers) buildRows() ([]pages.RunRow, error) {
	runs, err := h.store.ListRuns(historyLimit)
	if err != nil {
		return nil, err
	}

	rows := make([]pages.RunRow, 0, len(runs))
	for _, run := range runs {
		started := run.StartedAt
		rows = append(rows, pages.RunRow{
			ID:          run.ID,
			ShortID:     truncateID(run.ID),
			Status:      string(run.Status),
			StatusClass: runStatusBadgeClass(run.Status),
			Started:     common.FormatTime(&started),
			Completed:   common.FormatTime(run.CompletedAt),
			Projects:    run.Projects,
			Datasources: run.Datasources,
			Edges:       run.Edges,
			Error:       run.Error,
		})
	}
	return rows, nil
}
