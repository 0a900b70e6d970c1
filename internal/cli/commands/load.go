package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/graphdb"
	"github.com/leapstack-labs/leaplineage/internal/warehouse"
)

// NewLoadCommand creates the load command group.
func NewLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load lineage into a graph database or warehouse",
	}

	cmd.AddCommand(newLoadNeo4jCommand())
	cmd.AddCommand(newLoadWarehouseCommand())

	return cmd
}

func newLoadNeo4jCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neo4j",
		Short: "Load the datasources and lineage tables into Neo4j",
		Long: `Load the harvested tables into Neo4j as

  (:Project)-[:USES]->(:Asset)
  (:Asset)-[:FEEDS]->(:Asset)
  (:Project)-[:CONTAINS]->(:Asset)

Connection settings come from neo4j.* in leaplineage.yaml or from
NEO4J_URI, NEO4J_USER and NEO4J_PASS.`,
		Example: `  # Load the default tables
  leaplineage load neo4j

  # Load tables from elsewhere
  leaplineage load neo4j --datasources exports/ds.csv --lineage exports/edges.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadNeo4j(cmd)
		},
	}

	cmd.Flags().String("datasources", "", "Path to the datasources table (default: <output-dir>/datasources.csv)")
	cmd.Flags().String("lineage", "", "Path to the lineage table (default: <output-dir>/lineage.csv)")

	return cmd
}

func runLoadNeo4j(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	ctx := cmd.Context()

	writer, err := graphdb.Connect(ctx, cfg.Neo4j, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = writer.Close(ctx) }()

	stats, err := graphdb.NewLoader(writer, cmdCtx.Fs, cmdCtx.Logger).Load(ctx, cfg.DatasourcesPath, cfg.LineagePath)
	if err != nil {
		return err
	}

	return loadReport(cmdCtx.Renderer, output.LoadOutput{
		Target:      cfg.Neo4j.URI,
		Datasources: stats.Datasources,
		Skipped:     stats.Skipped,
		Edges:       stats.Edges,
	})
}

func newLoadWarehouseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warehouse",
		Short: "Harvest manifests and upsert them into the warehouse",
		Long: `Harvest manifests and upsert the PROJECTS, CONNECTIONS and LINEAGE_EDGES
tables of the configured warehouse. Tables are created when missing.

Each repository is replaced in one transaction, so re-running is safe.`,
		Example: `  # Load into the configured warehouse (default: snowflake)
  leaplineage load warehouse

  # Load into a local DuckDB file
  leaplineage load warehouse --type duckdb`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadWarehouse(cmd)
		},
	}

	cmd.Flags().String("type", "", fmt.Sprintf("Warehouse type (%v)", warehouse.List()))
	_ = cmd.RegisterFlagCompletionFunc("type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return warehouse.List(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runLoadWarehouse(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	ctx := cmd.Context()

	res, err := cmdCtx.Harvester().Run(ctx)
	if err != nil {
		return err
	}

	wh, err := warehouse.Open(ctx, cfg.Warehouse, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = wh.Close() }()

	if err := wh.EnsureTables(ctx); err != nil {
		return err
	}
	if err := wh.Upsert(ctx, res.Projects); err != nil {
		return err
	}

	edges := 0
	for _, p := range res.Projects {
		edges += len(p.Edges)
	}
	return loadReport(cmdCtx.Renderer, output.LoadOutput{
		Target:   cfg.Warehouse.Type,
		Projects: len(res.Projects),
		Edges:    edges,
	})
}

func loadReport(r *output.Renderer, out output.LoadOutput) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Load")
	r.KeyValue("Target", out.Target)
	if out.Projects > 0 {
		r.KeyValue("Projects", strconv.Itoa(out.Projects))
	}
	if out.Datasources > 0 || out.Skipped > 0 {
		r.KeyValue("Datasources", strconv.Itoa(out.Datasources))
		r.KeyValue("Skipped", strconv.Itoa(out.Skipped))
	}
	r.KeyValue("Edges", strconv.Itoa(out.Edges))
	r.Println("")
	r.Success("load complete")
	return nil
}
