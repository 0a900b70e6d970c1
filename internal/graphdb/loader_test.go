package graphdb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/tabular"
	"github.com/leapstack-labs/leaplineage/internal/testutil"
)

type call struct {
	cypher string
	params map[string]any
}

// fakeWriter records every statement; each Write is one transaction.
type fakeWriter struct {
	txs    [][]call
	failOn string
}

func (w *fakeWriter) Write(ctx context.Context, work func(Tx) error) error {
	tx := &fakeTx{w: w}
	err := work(tx)
	w.txs = append(w.txs, tx.calls)
	return err
}

func (w *fakeWriter) Close(context.Context) error { return nil }

type fakeTx struct {
	w     *fakeWriter
	calls []call
}

func (t *fakeTx) Run(_ context.Context, cypher string, params map[string]any) error {
	if t.w.failOn != "" && strings.Contains(cypher, t.w.failOn) {
		return errors.New("boom")
	}
	t.calls = append(t.calls, call{cypher: cypher, params: params})
	return nil
}

func (w *fakeWriter) all() []call {
	var out []call
	for _, tx := range w.txs {
		out = append(out, tx...)
	}
	return out
}

func TestLoader_EnsureConstraints(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewLoader(w, afero.NewMemMapFs(), nil).EnsureConstraints(context.Background()))

	require.Len(t, w.txs, 1)
	require.Len(t, w.txs[0], 2)
	assert.Contains(t, w.txs[0][0].cypher, "a.name IS UNIQUE")
	assert.Contains(t, w.txs[0][1].cypher, "p.key IS UNIQUE")
}

func TestLoader_LoadDatasources(t *testing.T) {
	w := &fakeWriter{}
	l := NewLoader(w, afero.NewMemMapFs(), testutil.NewTestLogger(t))

	loaded, skipped, err := l.LoadDatasources(context.Background(), []harvest.Datasource{
		{Repo: "orders", ProjectKey: "ORD", ProjectName: "Orders", SourceName: "raw.orders", System: "postgres"},
		{Repo: "orders", SourceName: ""},
		{Repo: "billing", SourceName: "stripe.charges"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 1, skipped)

	calls := w.all()
	require.Len(t, calls, 6)

	assert.Equal(t, cypherMergeProject, calls[0].cypher)
	assert.Equal(t, map[string]any{"key": "ORD", "name": "Orders", "repo": "orders"}, calls[0].params)
	assert.Equal(t, map[string]any{"src": "raw.orders", "system": "postgres", "type": nil, "url": nil}, calls[1].params)
	assert.Equal(t, cypherUses, calls[2].cypher)

	assert.Equal(t, map[string]any{"key": "billing", "name": "billing", "repo": "billing"}, calls[3].params, "key and name fall back to repo")
}

func TestLoader_LoadLineage(t *testing.T) {
	w := &fakeWriter{}
	l := NewLoader(w, afero.NewMemMapFs(), nil)

	loaded, err := l.LoadLineage(context.Background(), []harvest.Lineage{
		{Repo: "orders", ProjectKey: "ORD", Src: "raw.orders", Dst: "staging.orders", Tool: "dbt"},
		{Src: "a", Dst: ""},
		{Src: "x", Dst: "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	calls := w.all()
	require.Len(t, calls, 7)
	assert.Equal(t, cypherMergeAsset, calls[0].cypher)
	assert.Equal(t, map[string]any{"name": "raw.orders"}, calls[0].params)
	assert.Equal(t, map[string]any{"name": "staging.orders"}, calls[1].params)
	assert.Equal(t, map[string]any{
		"src": "raw.orders", "dst": "staging.orders",
		"tool": "dbt", "frequency": nil, "description": nil,
	}, calls[2].params)
	assert.Equal(t, cypherContains, calls[3].cypher)
	assert.Equal(t, "ORD", calls[3].params["key"])

	// no project context: no CONTAINS
	assert.Equal(t, cypherFeeds, calls[6].cypher)
}

func TestLoader_Load(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, tabular.WriteDatasources(fsys, "data/datasources.csv", "", []harvest.Datasource{
		{Repo: "orders", ProjectKey: "ORD", ProjectName: "Orders", DiscoveredVia: "data_assets", SourceName: "raw.orders"},
	}))
	require.NoError(t, tabular.WriteLineage(fsys, "data/lineage.csv", "", []harvest.Lineage{
		{Repo: "orders", ProjectKey: "ORD", ProjectName: "Orders", Src: "raw.orders", Dst: "staging.orders"},
	}))

	w := &fakeWriter{}
	stats, err := NewLoader(w, fsys, testutil.NewTestLogger(t)).Load(context.Background(), "data/datasources.csv", "data/lineage.csv")
	require.NoError(t, err)

	assert.Equal(t, &Stats{Datasources: 1, Edges: 1}, stats)
	assert.Len(t, w.txs, 3, "constraints, datasources and lineage each run in their own transaction")
}

func TestLoader_Load_MissingTables(t *testing.T) {
	w := &fakeWriter{}
	stats, err := NewLoader(w, afero.NewMemMapFs(), testutil.NewTestLogger(t)).Load(context.Background(), "nope.csv", "nope2.csv")
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, stats)
	assert.Len(t, w.txs, 1, "only constraints run")
}

func TestLoader_PropagatesErrors(t *testing.T) {
	w := &fakeWriter{failOn: "FEEDS"}
	_, err := NewLoader(w, afero.NewMemMapFs(), nil).LoadLineage(context.Background(), []harvest.Lineage{{Src: "a", Dst: "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> b")
}
