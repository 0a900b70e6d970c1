package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
)

func nullString(o harvest.Optional) sql.NullString {
	return sql.NullString{String: o.String(), Valid: !o.IsNull()}
}

// SaveSnapshot stores the tables of a harvest against a run and updates the
// run counters, all in one transaction. Saving twice replaces the snapshot.
func (s *SQLiteStore) SaveSnapshot(runID string, res *harvest.Result) (err error) {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if res == nil {
		return fmt.Errorf("nil harvest result")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"projects", "datasources", "lineage_edges"} {
		if _, err = tx.Exec(`DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	projStmt, err := tx.Prepare(`INSERT INTO projects
		(run_id, repo, project_key, project_name, owner, status, domain, tags, connections)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare project insert: %w", err)
	}
	defer func() { _ = projStmt.Close() }()

	for _, p := range res.Projects {
		tags, jerr := json.Marshal(p.Tags)
		if jerr != nil {
			return fmt.Errorf("failed to encode tags: %w", jerr)
		}
		conns := p.Connections
		if conns == nil {
			conns = []harvest.Connection{}
		}
		connJSON, jerr := json.Marshal(conns)
		if jerr != nil {
			return fmt.Errorf("failed to encode connections: %w", jerr)
		}
		if _, err = projStmt.Exec(runID, p.Repo, p.Key, p.Name, p.Owner, p.Status, p.Domain, string(tags), string(connJSON)); err != nil {
			return fmt.Errorf("failed to insert project %s: %w", p.Repo, err)
		}
	}

	dsStmt, err := tx.Prepare(`INSERT INTO datasources
		(run_id, position, repo, project_key, project_name, discovered_via, source_name, system, type, url, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare datasource insert: %w", err)
	}
	defer func() { _ = dsStmt.Close() }()

	for i, d := range res.Datasources {
		if _, err = dsStmt.Exec(runID, i, d.Repo, d.ProjectKey, d.ProjectName, d.DiscoveredVia,
			nullString(d.SourceName), nullString(d.System), nullString(d.Type), nullString(d.URL), d.Notes); err != nil {
			return fmt.Errorf("failed to insert datasource: %w", err)
		}
	}

	lnStmt, err := tx.Prepare(`INSERT INTO lineage_edges
		(run_id, position, repo, project_key, project_name, src, dst, tool, frequency, description, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare lineage insert: %w", err)
	}
	defer func() { _ = lnStmt.Close() }()

	for i, l := range res.Lineage {
		if _, err = lnStmt.Exec(runID, i, l.Repo, l.ProjectKey, l.ProjectName, l.Src, l.Dst,
			nullString(l.Tool), nullString(l.Frequency), nullString(l.Description), l.Notes); err != nil {
			return fmt.Errorf("failed to insert lineage edge: %w", err)
		}
	}

	result, err := tx.Exec(`UPDATE harvest_runs SET projects = ?, datasources = ?, edges = ? WHERE id = ?`,
		len(res.Projects), len(res.Datasources), len(res.Lineage), runID)
	if err != nil {
		return fmt.Errorf("failed to update run counters: %w", err)
	}
	if n, rerr := result.RowsAffected(); rerr == nil && n == 0 {
		err = fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// ListProjects returns the projects of a run ordered by repo.
func (s *SQLiteStore) ListProjects(runID string) ([]harvest.ProjectRow, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(`SELECT repo, project_key, project_name, owner, status, domain, tags, connections
		FROM projects WHERE run_id = ? ORDER BY repo`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []harvest.ProjectRow
	for rows.Next() {
		var p harvest.ProjectRow
		var tags, conns string
		if err := rows.Scan(&p.Repo, &p.Key, &p.Name, &p.Owner, &p.Status, &p.Domain, &tags, &conns); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags of %s: %w", p.Repo, err)
		}
		if err := json.Unmarshal([]byte(conns), &p.Connections); err != nil {
			return nil, fmt.Errorf("failed to decode connections of %s: %w", p.Repo, err)
		}
		if len(p.Connections) == 0 {
			p.Connections = nil
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListDatasources returns the datasources of a run in harvest order.
func (s *SQLiteStore) ListDatasources(runID string) ([]harvest.Datasource, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(`SELECT repo, project_key, project_name, discovered_via, source_name, system, type, url, notes
		FROM datasources WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []harvest.Datasource
	for rows.Next() {
		var d harvest.Datasource
		var name, system, typ, url sql.NullString
		if err := rows.Scan(&d.Repo, &d.ProjectKey, &d.ProjectName, &d.DiscoveredVia, &name, &system, &typ, &url, &d.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan datasource: %w", err)
		}
		d.SourceName = harvest.Optional(name.String)
		d.System = harvest.Optional(system.String)
		d.Type = harvest.Optional(typ.String)
		d.URL = harvest.Optional(url.String)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListLineage returns the lineage rows of a run in harvest order.
func (s *SQLiteStore) ListLineage(runID string) ([]harvest.Lineage, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(`SELECT repo, project_key, project_name, src, dst, tool, frequency, description, notes
		FROM lineage_edges WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lineage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []harvest.Lineage
	for rows.Next() {
		var l harvest.Lineage
		var tool, freq, desc sql.NullString
		if err := rows.Scan(&l.Repo, &l.ProjectKey, &l.ProjectName, &l.Src, &l.Dst, &tool, &freq, &desc, &l.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan lineage edge: %w", err)
		}
		l.Tool = harvest.Optional(tool.String)
		l.Frequency = harvest.Optional(freq.String)
		l.Description = harvest.Optional(desc.String)
		out = append(out, l)
	}
	return out, rows.Err()
}
