package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/render"
	"github.com/leapstack-labs/leaplineage/internal/testutil"
	"github.com/leapstack-labs/leaplineage/internal/ui/features"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/graph/pages"
)

func setupTestHandlers(t *testing.T, harvested bool) (*Handlers, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t, harvested)
	return NewHandlers(fixture.Source, fixture.SessionStore, fixture.Notifier, testutil.NewTestLogger(t)), fixture
}

func TestGraphPage(t *testing.T) {
	h, _ := setupTestHandlers(t, true)

	rec := httptest.NewRecorder()
	h.GraphPage(rec, httptest.NewRequest(http.MethodGet, "/graph", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Graph - leaplineage</title>")
	assert.Contains(t, body, render.VisNetworkURL)
	assert.Contains(t, body, `<div id="lineage"`)
	assert.Contains(t, body, "window.renderLineage")
	assert.Contains(t, body, "/graph/updates")
	assert.Contains(t, body, `"id":"marts.revenue"`)
}

func TestGraphJSON(t *testing.T) {
	tests := []struct {
		name      string
		harvested bool
		wantNodes int
		wantEdges int
	}{
		{name: "harvested fixture", harvested: true, wantNodes: 4, wantEdges: 3},
		{name: "no harvest yet", harvested: false, wantNodes: 0, wantEdges: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupTestHandlers(t, tt.harvested)

			rec := httptest.NewRecorder()
			h.GraphJSON(rec, httptest.NewRequest(http.MethodGet, "/api/graph", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var data render.GraphData
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
			assert.Len(t, data.Nodes, tt.wantNodes)
			assert.Len(t, data.Edges, tt.wantEdges)
			for _, e := range data.Edges {
				assert.Equal(t, "to", e.Arrows)
			}
		})
	}
}

func TestGraphPageUpdates_ExecutesScriptOnBroadcast(t *testing.T) {
	h, fixture := setupTestHandlers(t, true)

	req := httptest.NewRequest(http.MethodGet, "/graph/updates", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.GraphPageUpdates(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	fixture.Notifier.Broadcast()
	<-done

	body := rec.Body.String()
	assert.GreaterOrEqual(t, strings.Count(body, "event:"), 1)
	assert.Contains(t, body, "window.renderLineage(")
	assert.Contains(t, body, "stripe.charges")
}

func TestUpdateScript(t *testing.T) {
	script, err := pages.UpdateScript(render.GraphData{Nodes: []render.GraphNode{}, Edges: []render.GraphEdge{}})
	require.NoError(t, err)
	assert.Equal(t, `window.renderLineage({"nodes":[],"edges":[]})`, script)
}
