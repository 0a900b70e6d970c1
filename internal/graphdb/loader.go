// Package graphdb loads the datasources and lineage tables into Neo4j as
// Project and Asset nodes joined by USES, FEEDS and CONTAINS relationships.
package graphdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/tabular"
)

// Cypher statements.
const (
	cypherAssetConstraint   = "CREATE CONSTRAINT asset_name IF NOT EXISTS FOR (a:Asset) REQUIRE a.name IS UNIQUE"
	cypherProjectConstraint = "CREATE CONSTRAINT project_key IF NOT EXISTS FOR (p:Project) REQUIRE p.key IS UNIQUE"

	cypherMergeProject = `MERGE (p:Project {key:$key})
SET p.name = COALESCE($name, p.name),
    p.repo = COALESCE($repo, p.repo)`

	cypherMergeSourceAsset = `MERGE (a:Asset {name:$src})
SET a.system = COALESCE($system, a.system),
    a.type   = COALESCE($type, a.type),
    a.url    = COALESCE($url, a.url)`

	cypherUses = `MATCH (p:Project {key:$key}), (a:Asset {name:$src})
MERGE (p)-[:USES]->(a)`

	cypherMergeAsset = "MERGE (a:Asset {name:$name})"

	cypherFeeds = `MATCH (a:Asset {name:$src}), (b:Asset {name:$dst})
MERGE (a)-[r:FEEDS]->(b)
SET r.tool = $tool, r.frequency = $frequency, r.description = $description`

	cypherContains = `MERGE (p:Project {key:$key})
WITH p
MATCH (a:Asset {name:$src}), (b:Asset {name:$dst})
MERGE (p)-[:CONTAINS]->(a)
MERGE (p)-[:CONTAINS]->(b)`
)

// Stats counts what a load wrote.
type Stats struct {
	Datasources int `json:"datasources"`
	Skipped     int `json:"skipped"`
	Edges       int `json:"edges"`
}

// Loader writes tables through a Writer.
type Loader struct {
	writer Writer
	fs     afero.Fs
	logger *slog.Logger
}

// NewLoader creates a loader. A nil fs uses the OS filesystem.
func NewLoader(writer Writer, fs afero.Fs, logger *slog.Logger) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{writer: writer, fs: fs, logger: logger}
}

// nullable maps the empty string to a cypher null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// EnsureConstraints creates the uniqueness constraints.
func (l *Loader) EnsureConstraints(ctx context.Context) error {
	return l.writer.Write(ctx, func(tx Tx) error {
		for _, stmt := range []string{cypherAssetConstraint, cypherProjectConstraint} {
			if err := tx.Run(ctx, stmt, nil); err != nil {
				return fmt.Errorf("failed to create constraint: %w", err)
			}
		}
		return nil
	})
}

// LoadDatasources merges projects and assets and links them with USES.
// Rows without a source name are skipped.
func (l *Loader) LoadDatasources(ctx context.Context, rows []harvest.Datasource) (loaded, skipped int, err error) {
	err = l.writer.Write(ctx, func(tx Tx) error {
		loaded, skipped = 0, 0
		for _, row := range rows {
			src := row.SourceName.String()
			if src == "" {
				skipped++
				continue
			}
			key := row.ProjectKey
			if key == "" {
				key = row.Repo
			}
			name := row.ProjectName
			if name == "" {
				name = row.Repo
			}

			if err := tx.Run(ctx, cypherMergeProject, map[string]any{
				"key": key, "name": nullable(name), "repo": nullable(row.Repo),
			}); err != nil {
				return fmt.Errorf("failed to merge project %s: %w", key, err)
			}
			if err := tx.Run(ctx, cypherMergeSourceAsset, map[string]any{
				"src":    src,
				"system": nullable(row.System.String()),
				"type":   nullable(row.Type.String()),
				"url":    nullable(row.URL.String()),
			}); err != nil {
				return fmt.Errorf("failed to merge asset %s: %w", src, err)
			}
			if err := tx.Run(ctx, cypherUses, map[string]any{"key": key, "src": src}); err != nil {
				return fmt.Errorf("failed to link %s to %s: %w", key, src, err)
			}
			loaded++
		}
		return nil
	})
	return loaded, skipped, err
}

// LoadLineage merges FEEDS edges between assets and ties both ends to the
// owning project with CONTAINS. Rows without src or dst are skipped.
func (l *Loader) LoadLineage(ctx context.Context, rows []harvest.Lineage) (int, error) {
	var loaded int
	err := l.writer.Write(ctx, func(tx Tx) error {
		loaded = 0
		for _, row := range rows {
			if row.Src == "" || row.Dst == "" {
				continue
			}
			for _, n := range []string{row.Src, row.Dst} {
				if err := tx.Run(ctx, cypherMergeAsset, map[string]any{"name": n}); err != nil {
					return fmt.Errorf("failed to merge asset %s: %w", n, err)
				}
			}
			if err := tx.Run(ctx, cypherFeeds, map[string]any{
				"src":         row.Src,
				"dst":         row.Dst,
				"tool":        nullable(row.Tool.String()),
				"frequency":   nullable(row.Frequency.String()),
				"description": nullable(row.Description.String()),
			}); err != nil {
				return fmt.Errorf("failed to merge edge %s -> %s: %w", row.Src, row.Dst, err)
			}

			key := row.ProjectKey
			if key == "" {
				key = row.Repo
			}
			if key != "" {
				if err := tx.Run(ctx, cypherContains, map[string]any{
					"key": key, "src": row.Src, "dst": row.Dst,
				}); err != nil {
					return fmt.Errorf("failed to link project %s: %w", key, err)
				}
			}
			loaded++
		}
		return nil
	})
	return loaded, err
}

// Load reads both tables and loads constraints, datasources then lineage.
// A missing table is logged and its phase skipped.
func (l *Loader) Load(ctx context.Context, datasourcesPath, lineagePath string) (*Stats, error) {
	if err := l.EnsureConstraints(ctx); err != nil {
		return nil, err
	}

	stats := &Stats{}

	datasources, err := tabular.ReadDatasources(l.fs, datasourcesPath)
	switch {
	case errors.Is(err, tabular.ErrNotFound):
		l.logger.Warn("datasources table not found; skipping datasources", slog.String("path", datasourcesPath))
	case err != nil:
		return nil, err
	default:
		stats.Datasources, stats.Skipped, err = l.LoadDatasources(ctx, datasources)
		if err != nil {
			return nil, err
		}
	}

	lineage, err := tabular.ReadLineage(l.fs, lineagePath)
	switch {
	case errors.Is(err, tabular.ErrNotFound):
		l.logger.Warn("lineage table not found; skipping lineage", slog.String("path", lineagePath))
	case err != nil:
		return nil, err
	default:
		stats.Edges, err = l.LoadLineage(ctx, lineage)
		if err != nil {
			return nil, err
		}
	}

	l.logger.Info("loaded datasources & lineage into neo4j",
		slog.Int("datasources", stats.Datasources),
		slog.Int("edges", stats.Edges),
	)
	return stats, nil
}
