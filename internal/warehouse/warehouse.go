// Package warehouse upserts harvested projects, tool connections and lineage
// edges into a SQL warehouse and reads the edges back for the dashboard.
//
// Dialects register themselves from their own packages. Import them with a
// blank identifier to make them available:
//
//	import _ "github.com/leapstack-labs/leaplineage/internal/warehouse/snowflake"
package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
)

// Warehouse is an open connection speaking one dialect.
type Warehouse struct {
	DB      *sql.DB
	Dialect Dialect
	Logger  *slog.Logger
}

// Open connects to the warehouse named by cfg.Type.
func Open(ctx context.Context, cfg TargetConfig, logger *slog.Logger) (*Warehouse, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("warehouse type not specified")
	}
	d, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownTypeError{Type: cfg.Type, Available: List()}
	}
	if cfg.Schema == "" {
		cfg.Schema = d.DefaultSchema
	}

	dsn, err := d.DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s connection string: %w", d.Name, err)
	}

	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", d.Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", d.Name, err)
	}

	return New(db, d, logger), nil
}

// New wraps an open database handle.
func New(db *sql.DB, d Dialect, logger *slog.Logger) *Warehouse {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if d.Placeholder == nil {
		d.Placeholder = QuestionPlaceholder
	}
	if d.TextType == "" {
		d.TextType = "VARCHAR"
	}
	if d.JSONType == "" {
		d.JSONType = d.TextType
	}
	return &Warehouse{DB: db, Dialect: d, Logger: logger}
}

// Close closes the database connection.
func (w *Warehouse) Close() error {
	if w.DB == nil {
		return nil
	}
	w.Logger.Debug("closing warehouse connection")
	return w.DB.Close()
}

// binds returns n comma separated placeholders.
func (w *Warehouse) binds(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = w.Dialect.Placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

// TableDDL returns the CREATE TABLE statements for the three tables.
func (w *Warehouse) TableDDL() []string {
	t, j := w.Dialect.TextType, w.Dialect.JSONType
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS PROJECTS (REPO %[1]s, KEY %[1]s, NAME %[1]s, OWNER %[1]s, STATUS %[1]s, DOMAIN %[1]s, TAGS %[2]s, RAW_VARIANT %[2]s)", t, j),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS CONNECTIONS (REPO %[1]s, TOOL %[1]s, PROP %[1]s, VALUE %[1]s)", t),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS LINEAGE_EDGES (REPO %[1]s, SRC %[1]s, DST %[1]s, TOOL %[1]s, FREQ %[1]s, DESCRIPTION %[1]s)", t),
	}
}

// EnsureTables creates the PROJECTS, CONNECTIONS and LINEAGE_EDGES tables.
func (w *Warehouse) EnsureTables(ctx context.Context) error {
	for _, stmt := range w.TableDDL() {
		if _, err := w.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// projectPayload is the JSON document stored in RAW_VARIANT.
func projectPayload(p harvest.ProjectRow) (string, string, error) {
	payload := map[string]any{"repo": p.Repo}
	for k, v := range map[string]string{
		"key": p.Key, "name": p.Name, "owner": p.Owner, "status": p.Status, "domain": p.Domain,
	} {
		if v != "" {
			payload[k] = v
		}
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	payload["tags"] = tags

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", "", err
	}
	return string(raw), string(tagsJSON), nil
}

// Upsert writes each project in its own transaction: the PROJECTS row is
// upserted, then the repo's CONNECTIONS and LINEAGE_EDGES are replaced.
func (w *Warehouse) Upsert(ctx context.Context, projects []harvest.ProjectRow) error {
	for _, p := range projects {
		if err := w.upsertProject(ctx, p); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", p.Repo, err)
		}
		w.Logger.Debug("upserted project",
			slog.String("repo", p.Repo),
			slog.Int("connections", len(p.Connections)),
			slog.Int("edges", len(p.Edges)),
		)
	}
	return nil
}

func (w *Warehouse) upsertProject(ctx context.Context, p harvest.ProjectRow) (err error) {
	raw, tags, err := projectPayload(p)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ph := w.Dialect.Placeholder
	if w.Dialect.MergeProjects {
		// Snowflake path; s.v:<field> reads from the parsed payload
		stmt := fmt.Sprintf(`MERGE INTO PROJECTS t USING (SELECT PARSE_JSON(%s) v) s
ON t.REPO = s.v:repo
WHEN MATCHED THEN UPDATE SET KEY=s.v:key, NAME=s.v:name, OWNER=s.v:owner, STATUS=s.v:status, DOMAIN=s.v:domain, TAGS=s.v:tags, RAW_VARIANT=s.v
WHEN NOT MATCHED THEN INSERT (REPO, KEY, NAME, OWNER, STATUS, DOMAIN, TAGS, RAW_VARIANT)
VALUES (s.v:repo, s.v:key, s.v:name, s.v:owner, s.v:status, s.v:domain, s.v:tags, s.v)`, ph(1))
		if _, err = tx.ExecContext(ctx, stmt, raw); err != nil {
			return fmt.Errorf("failed to merge project: %w", err)
		}
	} else {
		if _, err = tx.ExecContext(ctx, "DELETE FROM PROJECTS WHERE REPO = "+ph(1), p.Repo); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		stmt := "INSERT INTO PROJECTS (REPO, KEY, NAME, OWNER, STATUS, DOMAIN, TAGS, RAW_VARIANT) VALUES (" + w.binds(8) + ")"
		if _, err = tx.ExecContext(ctx, stmt, p.Repo, p.Key, p.Name, p.Owner, p.Status, p.Domain, tags, raw); err != nil {
			return fmt.Errorf("failed to insert project: %w", err)
		}
	}

	for _, table := range []string{"CONNECTIONS", "LINEAGE_EDGES"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE REPO = "+ph(1), p.Repo); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	connStmt := "INSERT INTO CONNECTIONS (REPO, TOOL, PROP, VALUE) VALUES (" + w.binds(4) + ")"
	for _, c := range p.Connections {
		if _, err = tx.ExecContext(ctx, connStmt, p.Repo, c.Tool, c.Prop, c.Value); err != nil {
			return fmt.Errorf("failed to insert connection %s.%s: %w", c.Tool, c.Prop, err)
		}
	}

	edgeStmt := "INSERT INTO LINEAGE_EDGES (REPO, SRC, DST, TOOL, FREQ, DESCRIPTION) VALUES (" + w.binds(6) + ")"
	for _, e := range p.Edges {
		if _, err = tx.ExecContext(ctx, edgeStmt, p.Repo, e.From, e.To, e.Tool, e.Frequency, e.Description); err != nil {
			return fmt.Errorf("failed to insert edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// LineageEdges reads every stored edge as lineage rows ordered by repo, src, dst.
// Rows with an empty src or dst are dropped.
func (w *Warehouse) LineageEdges(ctx context.Context) ([]harvest.Lineage, error) {
	rows, err := w.DB.QueryContext(ctx, "SELECT REPO, SRC, DST, TOOL, FREQ, DESCRIPTION FROM LINEAGE_EDGES ORDER BY REPO, SRC, DST")
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []harvest.Lineage
	for rows.Next() {
		var repo, src, dst, tool, freq, desc sql.NullString
		if err := rows.Scan(&repo, &src, &dst, &tool, &freq, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan lineage edge: %w", err)
		}
		row := harvest.Lineage{
			Repo:        repo.String,
			ProjectKey:  repo.String,
			ProjectName: repo.String,
			Src:         strings.TrimSpace(src.String),
			Dst:         strings.TrimSpace(dst.String),
			Tool:        harvest.Opt(tool.String),
			Frequency:   harvest.Opt(freq.String),
			Description: harvest.Opt(desc.String),
		}
		if row.Src == "" || row.Dst == "" {
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lineage edges: %w", err)
	}
	return out, nil
}
