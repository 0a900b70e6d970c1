// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/manifest"
	"github.com/leapstack-labs/leaplineage/internal/pipeline"
	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/testutil"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
	"github.com/leapstack-labs/leaplineage/internal/ui/notifier"
)

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Store        *state.SQLiteStore
	Source       common.Source
	Notifier     *notifier.Notifier
	SessionStore *sessions.CookieStore
	Pipeline     *pipeline.Pipeline
	ReposDir     string
}

// SetupTestFixture creates an in-memory store. With harvested set, the
// orders and billing fixture repos are harvested into it once.
func SetupTestFixture(t *testing.T, harvested bool) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	root := testutil.SetupRepos(t)
	reposDir := filepath.Join(root, "repos")

	store := state.NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })

	p := &pipeline.Pipeline{
		Harvester:       harvest.New(manifest.NewReader(reposDir, logger), logger),
		Fs:              afero.NewMemMapFs(),
		ReposDir:        reposDir,
		DatasourcesPath: "data/datasources.csv",
		LineagePath:     "data/lineage.csv",
		Store:           store,
		Logger:          logger,
	}
	if harvested {
		_, err := p.Run(context.Background())
		require.NoError(t, err)
	}

	return &TestFixture{
		Store:        store,
		Source:       &common.StateSource{Store: store},
		Notifier:     notifier.New(),
		SessionStore: NewTestSessionStore(),
		Pipeline:     p,
		ReposDir:     reposDir,
	}
}

// RequestWithTimeout wraps a request with a context timeout.
func RequestWithTimeout(t *testing.T, r *http.Request, timeout time.Duration) *http.Request {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	t.Cleanup(cancel)
	return r.WithContext(ctx)
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}
