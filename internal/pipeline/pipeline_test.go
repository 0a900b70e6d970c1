package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/manifest"
	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/tabular"
	"github.com/leapstack-labs/leaplineage/internal/testutil"
)

type recordingObserver struct {
	statuses []state.RunStatus
	edges    int
}

func (o *recordingObserver) ObserveRun(status state.RunStatus, _ time.Duration, res *harvest.Result) {
	o.statuses = append(o.statuses, status)
	if res != nil {
		o.edges = len(res.Lineage)
	}
}

func newStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store := state.NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newPipeline(t *testing.T, reposDir string, store state.Store) (*Pipeline, afero.Fs) {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	fsys := afero.NewMemMapFs()
	p := &Pipeline{
		Harvester:       harvest.New(manifest.NewReader(reposDir, logger), logger),
		Fs:              fsys,
		ReposDir:        reposDir,
		DatasourcesPath: "data/datasources.csv",
		LineagePath:     "data/lineage.csv",
		WriteJSON:       true,
		Logger:          logger,
	}
	if store != nil {
		p.Store = store
	}
	return p, fsys
}

func TestPipeline_Run(t *testing.T) {
	root := testutil.SetupRepos(t)
	store := newStore(t)
	obs := &recordingObserver{}

	p, fsys := newPipeline(t, filepath.Join(root, "repos"), store)
	p.Observer = obs

	out, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out.Run)
	assert.Equal(t, state.RunStatusCompleted, out.Run.Status)
	assert.Equal(t, 3, out.Run.Edges)
	assert.Equal(t, 2, out.Run.Projects)

	for _, path := range []string{"data/datasources.csv", "data/datasources.json", "data/lineage.csv", "data/lineage.json"} {
		exists, err := afero.Exists(fsys, path)
		require.NoError(t, err)
		assert.True(t, exists, path)
	}

	rows, err := tabular.ReadLineage(fsys, "data/lineage.csv")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	latest, err := store.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, out.Run.ID, latest.ID)

	assert.Equal(t, []state.RunStatus{state.RunStatusCompleted}, obs.statuses)
	assert.Equal(t, 3, obs.edges)
}

func TestPipeline_RunWithoutStore(t *testing.T) {
	root := testutil.SetupRepos(t)
	p, fsys := newPipeline(t, filepath.Join(root, "repos"), nil)
	p.WriteJSON = false

	out, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, out.Run)
	assert.Len(t, out.Result.Datasources, 3)

	exists, _ := afero.Exists(fsys, "data/lineage.json")
	assert.False(t, exists)
}

func TestPipeline_RunRecordsFailure(t *testing.T) {
	store := newStore(t)
	obs := &recordingObserver{}

	p, _ := newPipeline(t, filepath.Join(t.TempDir(), "missing"), store)
	p.Observer = obs

	out, err := p.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, out.Run)
	assert.Equal(t, state.RunStatusFailed, out.Run.Status)
	assert.Contains(t, out.Run.Error, "failed to read repos directory")
	assert.Equal(t, []state.RunStatus{state.RunStatusFailed}, obs.statuses)

	_, err = store.LatestRun()
	assert.ErrorIs(t, err, state.ErrRunNotFound)
}
