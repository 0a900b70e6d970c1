package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/render"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the lineage graph as HTML and PNG",
		Long: `Build the static lineage site from the lineage table:

  <docs>/graph.html    interactive vis-network graph
  <docs>/index.html    redirect to graph.html
  <assets>/graph.png   spring-layout image

When the lineage table is missing a placeholder index.html is written
and the command fails.`,
		Example: `  # Render after a harvest
  leaplineage harvest && leaplineage graph

  # Write the site somewhere else
  leaplineage graph --docs-dir public --assets-dir public/img`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGraph(cmd)
		},
	}

	cmd.Flags().String("docs-dir", "", "Directory for graph.html and index.html (default: docs)")
	cmd.Flags().String("assets-dir", "", "Directory for graph.png (default: assets)")

	return cmd
}

func runGraph(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg

	site := &render.Site{
		Fs:              cmdCtx.Fs,
		LineagePath:     cfg.LineagePath,
		DatasourcesPath: cfg.DatasourcesPath,
		DocsDir:         cfg.DocsDir,
		AssetsDir:       cfg.AssetsDir,
		HTML:            cfg.Render.HTMLOptions(),
		PNG:             cfg.Render.PNGOptions(),
		Logger:          cmdCtx.Logger,
	}

	summary, err := site.Build(cmd.Context())
	if errors.Is(err, render.ErrNoLineage) {
		return fmt.Errorf("no %s; wrote placeholder index.html", cfg.LineagePath)
	}
	if err != nil {
		return fmt.Errorf("failed to render graph: %w", err)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(output.GraphOutput{
			Nodes:    summary.Nodes,
			Edges:    summary.Edges,
			HTMLPath: summary.HTMLPath,
			PNGPath:  summary.PNGPath,
		})
	}

	r.Header(1, "Lineage graph")
	r.KeyValue("Nodes", strconv.Itoa(summary.Nodes))
	r.KeyValue("Edges", strconv.Itoa(summary.Edges))
	r.Println("")
	r.Success("wrote " + summary.HTMLPath)
	r.Success("wrote " + summary.PNGPath)
	return nil
}
