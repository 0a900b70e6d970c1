package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/pipeline"
	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/tabular"
)

// HarvestOptions holds options for the harvest command.
type HarvestOptions struct {
	NoState bool
}

// NewHarvestCommand creates the harvest command.
func NewHarvestCommand() *cobra.Command {
	opts := &HarvestOptions{}

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest manifests into the datasources and lineage tables",
		Long: `Read every repository manifest under the repos directory and write the
datasources and lineage tables as CSV and JSON.

Each harvest is recorded in the state database so the dashboard and
'leaplineage list' can show it. Use --no-state to skip recording.`,
		Example: `  # Harvest ./repos into ./data
  leaplineage harvest

  # Harvest another directory
  leaplineage harvest --repos-dir ../platform/repos

  # Output as JSON
  leaplineage harvest --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHarvest(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoState, "no-state", false, "Don't record the harvest in the state database")

	return cmd
}

func runHarvest(cmd *cobra.Command, opts *HarvestOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	var store *state.SQLiteStore
	if !opts.NoState {
		store, err = cmdCtx.OpenStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	outcome, err := cmdCtx.Pipeline(store).Run(cmd.Context())
	if err != nil {
		return err
	}

	out := harvestOutput(cmdCtx, outcome)
	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	default:
		harvestReport(r, out)
		return nil
	}
}

func harvestOutput(cmdCtx *CommandContext, outcome *pipeline.Outcome) output.HarvestOutput {
	res := outcome.Result
	bySystem := make(map[string]int)
	for _, ds := range res.Datasources {
		system := ds.System.String()
		if system == "" {
			system = "unknown"
		}
		bySystem[system]++
	}

	out := output.HarvestOutput{
		Repos:           res.Repos,
		Projects:        len(res.Projects),
		Sources:         len(res.Datasources),
		Edges:           len(res.Lineage),
		SourcesBySystem: bySystem,
		Files: map[string]string{
			"datasources_csv":  cmdCtx.Cfg.DatasourcesPath,
			"datasources_json": tabular.JSONPath(cmdCtx.Cfg.DatasourcesPath),
			"lineage_csv":      cmdCtx.Cfg.LineagePath,
			"lineage_json":     tabular.JSONPath(cmdCtx.Cfg.LineagePath),
		},
		ElapsedMS: outcome.Elapsed.Milliseconds(),
	}
	if outcome.Run != nil {
		out.RunID = outcome.Run.ID
	}
	return out
}

func harvestReport(r *output.Renderer, out output.HarvestOutput) {
	r.Header(1, "Harvest")
	r.KeyValue("Repositories", strconv.Itoa(out.Repos))
	r.KeyValue("Projects", strconv.Itoa(out.Projects))
	r.KeyValue("Lineage edges", strconv.Itoa(out.Edges))
	if out.RunID != "" {
		r.KeyValue("Run", out.RunID)
	}
	r.Println("")

	if len(out.SourcesBySystem) > 0 {
		systems := make([]string, 0, len(out.SourcesBySystem))
		for s := range out.SourcesBySystem {
			systems = append(systems, s)
		}
		sort.Strings(systems)
		rows := make([][]string, len(systems))
		for i, s := range systems {
			rows[i] = []string{s, strconv.Itoa(out.SourcesBySystem[s])}
		}
		r.Table([]string{"System", "Sources"}, rows)
		r.Println("")
	}

	for _, key := range []string{"datasources_csv", "datasources_json", "lineage_csv", "lineage_json"} {
		r.Success(fmt.Sprintf("wrote %s", out.Files[key]))
	}
	r.Println("")
	r.Printf("Total sources: %d\n", out.Sources)
}
