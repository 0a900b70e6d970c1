package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/state"
)

// Source names.
const (
	SourceState     = "state"
	SourceWarehouse = "warehouse"
)

// Source provides the snapshot the dashboard renders.
type Source interface {
	Name() string
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// StateSource reads the latest completed run from the state store.
type StateSource struct {
	Store state.Store
}

// Name implements Source.
func (s *StateSource) Name() string { return SourceState }

// Snapshot implements Source. With no completed run it returns an empty snapshot.
func (s *StateSource) Snapshot(_ context.Context) (*Snapshot, error) {
	run, err := s.Store.LatestRun()
	if errors.Is(err, state.ErrRunNotFound) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Run: run}
	if snap.Projects, err = s.Store.ListProjects(run.ID); err != nil {
		return nil, err
	}
	if snap.Datasources, err = s.Store.ListDatasources(run.ID); err != nil {
		return nil, err
	}
	if snap.Lineage, err = s.Store.ListLineage(run.ID); err != nil {
		return nil, err
	}
	return snap, nil
}

// EdgeReader reads lineage edges from a warehouse.
type EdgeReader interface {
	LineageEdges(ctx context.Context) ([]harvest.Lineage, error)
}

// WarehouseSource takes lineage edges from the warehouse LINEAGE_EDGES table.
// Projects and datasources still come from State when it is set.
type WarehouseSource struct {
	Edges EdgeReader
	State *StateSource
}

// Name implements Source.
func (s *WarehouseSource) Name() string { return SourceWarehouse }

// Snapshot implements Source. LINEAGE_EDGES only stores the repo, so edge
// project keys and names are taken from the state projects of the same repo.
func (s *WarehouseSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	if s.State != nil {
		var err error
		if snap, err = s.State.Snapshot(ctx); err != nil {
			return nil, err
		}
	}

	edges, err := s.Edges.LineageEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read warehouse edges: %w", err)
	}

	byRepo := make(map[string]harvest.ProjectRow, len(snap.Projects))
	for _, p := range snap.Projects {
		byRepo[p.Repo] = p
	}
	for i := range edges {
		if p, ok := byRepo[edges[i].Repo]; ok {
			edges[i].ProjectKey = p.Key
			edges[i].ProjectName = p.Name
		}
	}
	snap.Lineage = edges
	return snap, nil
}

func matchesProject(project, repo, key string) bool {
	return project == "" || project == key || project == repo
}

// Filter keeps only the rows of one project, matched by key or repo.
// An empty project returns the snapshot unchanged.
func (s *Snapshot) Filter(project string) *Snapshot {
	if project == "" {
		return s
	}

	out := &Snapshot{Run: s.Run}
	for _, p := range s.Projects {
		if matchesProject(project, p.Repo, p.Key) {
			out.Projects = append(out.Projects, p)
		}
	}
	for _, d := range s.Datasources {
		if matchesProject(project, d.Repo, d.ProjectKey) {
			out.Datasources = append(out.Datasources, d)
		}
	}
	for _, l := range s.Lineage {
		if matchesProject(project, l.Repo, l.ProjectKey) {
			out.Lineage = append(out.Lineage, l)
		}
	}
	return out
}
