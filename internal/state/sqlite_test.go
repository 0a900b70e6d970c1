package state

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore()
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult() *harvest.Result {
	return &harvest.Result{
		Repos: 1,
		Projects: []harvest.ProjectRow{{
			Repo: "orders", Key: "ORD", Name: "Orders", Owner: "data-eng",
			Tags:        []string{"orders"},
			Connections: []harvest.Connection{{Tool: "dbt", Prop: "project", Value: "orders"}},
		}},
		Datasources: []harvest.Datasource{
			{Repo: "orders", ProjectKey: "ORD", ProjectName: "Orders", DiscoveredVia: harvest.ViaDataAssets,
				SourceName: "raw.orders", System: "postgres", Type: "table", URL: "postgres://db/orders"},
			{Repo: "orders", ProjectKey: "ORD", ProjectName: "Orders", DiscoveredVia: harvest.ViaLineage,
				SourceName: "staging.orders"},
		},
		Lineage: []harvest.Lineage{
			{Repo: "orders", ProjectKey: "ORD", ProjectName: "Orders",
				Src: "raw.orders", Dst: "staging.orders", Tool: "dbt", Frequency: "daily"},
			{Repo: "orders", ProjectKey: "ORD", ProjectName: "Orders",
				Src: "staging.orders", Dst: "marts.revenue", Tool: "dbt"},
		},
	}
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore()
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_OpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	store := NewSQLiteStore()
	require.NoError(t, store.Open(path))
	defer func() { _ = store.Close() }()
	require.NoError(t, store.Migrate())

	assert.Equal(t, path, store.Path())
	assert.FileExists(t, path)
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"harvest_runs", "projects", "datasources", "lineage_edges"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
			continue
		}
		_ = rows.Close()
	}

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// migrating again is a no-op
	assert.NoError(t, store.Migrate())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()

	_, err := store.CreateRun("repos")
	assert.Error(t, err)
	assert.Error(t, store.Migrate())
	assert.Error(t, store.SaveSnapshot("x", sampleResult()))
	assert.NoError(t, store.Close())
}

// --- Run lifecycle tests ---

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name   string
		status RunStatus
		errMsg string
	}{
		{name: "completed", status: RunStatusCompleted},
		{name: "failed with error", status: RunStatusFailed, errMsg: "repos directory missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)

			run, err := store.CreateRun("repos")
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, RunStatusRunning, run.Status)

			require.NoError(t, store.CompleteRun(run.ID, tt.status, tt.errMsg))

			got, err := store.GetRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, "repos", got.ReposDir)
			assert.Equal(t, tt.errMsg, got.Error)
			require.NotNil(t, got.CompletedAt)
			assert.False(t, got.CompletedAt.Before(got.StartedAt))
		})
	}
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun("missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = store.CompleteRun("missing", RunStatusCompleted, "")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = store.LatestRun()
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = store.SaveSnapshot("missing", sampleResult())
	assert.Error(t, err)
}

func TestSQLiteStore_LatestRun(t *testing.T) {
	store := setupTestStore(t)

	first, err := store.CreateRun("repos")
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(first.ID, RunStatusCompleted, ""))

	second, err := store.CreateRun("repos")
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(second.ID, RunStatusCompleted, ""))

	// failed and running runs are never the latest
	failed, err := store.CreateRun("repos")
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(failed.ID, RunStatusFailed, "boom"))
	_, err = store.CreateRun("repos")
	require.NoError(t, err)

	latest, err := store.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := store.CreateRun("repos")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")

	runs, err = store.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

// --- Snapshot tests ---

func TestSQLiteStore_SnapshotRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	res := sampleResult()

	run, err := store.CreateRun("repos")
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(run.ID, res))

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Projects)
	assert.Equal(t, 2, got.Datasources)
	assert.Equal(t, 2, got.Edges)

	projects, err := store.ListProjects(run.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Projects, projects)

	datasources, err := store.ListDatasources(run.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Datasources, datasources)
	assert.True(t, datasources[1].URL.IsNull())

	lineage, err := store.ListLineage(run.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Lineage, lineage)
}

func TestSQLiteStore_SnapshotReplaces(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("repos")
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(run.ID, sampleResult()))

	smaller := sampleResult()
	smaller.Lineage = smaller.Lineage[:1]
	require.NoError(t, store.SaveSnapshot(run.ID, smaller))

	lineage, err := store.ListLineage(run.ID)
	require.NoError(t, err)
	assert.Len(t, lineage, 1)

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Edges)
}

func TestSQLiteStore_EmptySnapshot(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("repos")
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(run.ID, &harvest.Result{}))

	lineage, err := store.ListLineage(run.ID)
	require.NoError(t, err)
	assert.Empty(t, lineage)

	assert.Error(t, store.SaveSnapshot(run.ID, nil))
}
