// Package state records harvest runs and the tables they produced in SQLite,
// so the dashboard and later commands can read the last known lineage.
package state

import (
	"errors"
	"time"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
)

// ErrRunNotFound is returned when a requested run does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a harvest run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded harvest.
type Run struct {
	ID          string     `json:"id"`
	ReposDir    string     `json:"repos_dir"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Projects    int        `json:"projects"`
	Datasources int        `json:"datasources"`
	Edges       int        `json:"edges"`
}

// Store persists harvest runs and their snapshots.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(reposDir string) (*Run, error)
	SaveSnapshot(runID string, res *harvest.Result) error
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetRun(id string) (*Run, error)
	LatestRun() (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	ListProjects(runID string) ([]harvest.ProjectRow, error)
	ListDatasources(runID string) ([]harvest.Datasource, error)
	ListLineage(runID string) ([]harvest.Lineage, error)
}

var _ Store = (*SQLiteStore)(nil)
