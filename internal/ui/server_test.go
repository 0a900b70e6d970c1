package ui

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/testutil"
	"github.com/leapstack-labs/leaplineage/internal/ui/features"
)

func newTestServer(t *testing.T, harvested bool) (*Server, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t, harvested)
	srv := NewServer(Config{
		Port:          0,
		ReposDir:      fixture.ReposDir,
		SessionSecret: "test-secret-key-32-bytes-long!!",
		Source:        fixture.Source,
		Store:         fixture.Store,
		Pipeline:      fixture.Pipeline,
		Logger:        testutil.NewTestLogger(t),
	})
	return srv, fixture
}

func get(t *testing.T, ts *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Routes(t *testing.T) {
	srv, _ := newTestServer(t, true)
	handler, err := srv.Handler()
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	tests := []struct {
		path     string
		wantBody string
	}{
		{path: "/healthz", wantBody: "ok"},
		{path: "/", wantBody: `id="ui-content"`},
		{path: "/graph", wantBody: `<div id="lineage"`},
		{path: "/api/graph", wantBody: `"nodes"`},
		{path: "/runs", wantBody: "Harvest runs"},
		{path: "/static/style.css", wantBody: ".nav"},
		{path: "/metrics", wantBody: "leaplineage_lineage_edges"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := get(t, ts, tt.path)
			assert.Equal(t, http.StatusOK, status)
			assert.Contains(t, body, tt.wantBody)
		})
	}
}

func TestServer_RefreshRecordsRunAndMetrics(t *testing.T) {
	srv, fixture := newTestServer(t, false)
	handler, err := srv.Handler()
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	ch := srv.Notifier().Subscribe()
	defer srv.Notifier().Unsubscribe(ch)

	srv.Refresh(context.Background(), "test")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("refresh did not broadcast")
	}

	run, err := fixture.Store.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, 3, run.Edges)

	_, body := get(t, ts, "/metrics")
	assert.Contains(t, body, `leaplineage_harvest_runs_total{status="completed"} 1`)
	assert.Contains(t, body, "leaplineage_lineage_edges 3")
	assert.Contains(t, body, "leaplineage_datasources 3")
	assert.Contains(t, body, "leaplineage_harvest_duration_seconds_count 1")
	assert.Contains(t, body, "leaplineage_ui_sse_clients 1")
}

func TestServer_WatchRefreshesOnManifestChange(t *testing.T) {
	srv, fixture := newTestServer(t, false)
	ch := srv.Notifier().Subscribe()
	defer srv.Notifier().Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.watchFiles(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// let the watcher register before writing
	time.Sleep(100 * time.Millisecond)
	manifest := filepath.Join(fixture.ReposDir, "orders", "project.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(testutil.OrdersManifest+"\n"), 0o600))

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("manifest change did not trigger a refresh")
	}

	_, err := fixture.Store.LatestRun()
	assert.NoError(t, err)
}

func TestServer_IsManifest(t *testing.T) {
	srv := NewServer(Config{ManifestName: "lineage.yaml", Source: nil})

	assert.True(t, srv.isManifest("/repos/a/lineage.yaml"))
	assert.True(t, srv.isManifest("/repos/a/other.YML"))
	assert.False(t, srv.isManifest("/repos/a/README.md"))
}
