package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/state"
)

type stubEdges struct {
	rows []harvest.Lineage
	err  error
}

func (s stubEdges) LineageEdges(context.Context) ([]harvest.Lineage, error) {
	return s.rows, s.err
}

func openStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store := state.NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStateSource_Empty(t *testing.T) {
	src := &StateSource{Store: openStore(t)}

	snap, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.Run)
	assert.Empty(t, snap.Lineage)
	assert.Equal(t, SourceState, src.Name())
}

func TestStateSource_Latest(t *testing.T) {
	store := openStore(t)
	run, err := store.CreateRun("repos")
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(run.ID, &harvest.Result{
		Projects: []harvest.ProjectRow{{Repo: "orders", Key: "ORD", Name: "Orders", Tags: []string{}}},
		Lineage:  []harvest.Lineage{{Repo: "orders", ProjectKey: "ORD", ProjectName: "Orders", Src: "a", Dst: "b"}},
	}))
	require.NoError(t, store.CompleteRun(run.ID, state.RunStatusCompleted, ""))

	snap, err := (&StateSource{Store: store}).Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Run)
	assert.Equal(t, run.ID, snap.Run.ID)
	assert.Len(t, snap.Projects, 1)
	assert.Len(t, snap.Lineage, 1)
}

func TestWarehouseSource(t *testing.T) {
	edges := []harvest.Lineage{{Repo: "billing", ProjectKey: "billing", Src: "x", Dst: "y"}}
	src := &WarehouseSource{Edges: stubEdges{rows: edges}, State: &StateSource{Store: openStore(t)}}

	snap, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, edges, snap.Lineage)
	assert.Equal(t, SourceWarehouse, src.Name())

	src.Edges = stubEdges{err: errors.New("connection refused")}
	_, err = src.Snapshot(context.Background())
	assert.ErrorContains(t, err, "failed to read warehouse edges")
}

func TestWarehouseSource_FilterByProjectKey(t *testing.T) {
	store := openStore(t)
	run, err := store.CreateRun("repos")
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(run.ID, &harvest.Result{
		Projects: []harvest.ProjectRow{{Repo: "orders", Key: "ORD", Name: "Orders", Tags: []string{}}},
	}))
	require.NoError(t, store.CompleteRun(run.ID, state.RunStatusCompleted, ""))

	src := &WarehouseSource{
		Edges: stubEdges{rows: []harvest.Lineage{
			{Repo: "orders", ProjectKey: "orders", ProjectName: "orders", Src: "raw.orders", Dst: "staging.orders"},
			{Repo: "legacy", ProjectKey: "legacy", ProjectName: "legacy", Src: "x", Dst: "y"},
		}},
		State: &StateSource{Store: store},
	}

	snap, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Lineage, 2)
	assert.Equal(t, "ORD", snap.Lineage[0].ProjectKey)
	assert.Equal(t, "Orders", snap.Lineage[0].ProjectName)
	assert.Equal(t, "legacy", snap.Lineage[1].ProjectKey, "repos without a state project keep the repo")

	filtered := snap.Filter("ORD")
	assert.Len(t, filtered.Projects, 1)
	require.Len(t, filtered.Lineage, 1)
	assert.Equal(t, "raw.orders", filtered.Lineage[0].Src)
}

func TestSnapshot_Filter(t *testing.T) {
	snap := &Snapshot{
		Projects: []harvest.ProjectRow{{Repo: "orders", Key: "ORD"}, {Repo: "billing", Key: "BIL"}},
		Datasources: []harvest.Datasource{
			{Repo: "orders", ProjectKey: "ORD", SourceName: "raw.orders"},
			{Repo: "billing", ProjectKey: "BIL", SourceName: "stripe.charges"},
		},
		Lineage: []harvest.Lineage{
			{Repo: "orders", ProjectKey: "ORD", Src: "a", Dst: "b"},
			{Repo: "billing", ProjectKey: "BIL", Src: "c", Dst: "b"},
		},
	}

	assert.Same(t, snap, snap.Filter(""))

	byKey := snap.Filter("ORD")
	require.Len(t, byKey.Projects, 1)
	assert.Equal(t, "orders", byKey.Projects[0].Repo)
	assert.Len(t, byKey.Datasources, 1)
	assert.Len(t, byKey.Lineage, 1)

	byRepo := snap.Filter("billing")
	require.Len(t, byRepo.Lineage, 1)
	assert.Equal(t, "c", byRepo.Lineage[0].Src)

	assert.Empty(t, snap.Filter("nope").Lineage)
}

func TestSelectedProject_RoundTrip(t *testing.T) {
	store := sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))

	req := httptest.NewRequest(http.MethodPost, "/filter", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, SaveSelectedProject(store, rec, req, "ORD"))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	assert.Equal(t, "ORD", SelectedProject(store, next))

	assert.Equal(t, "", SelectedProject(store, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, "", SelectedProject(nil, next))
}
