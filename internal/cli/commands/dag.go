package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/output"
)

// GraphQuerier provides read-only access to DAG structure.
type GraphQuerier interface {
	GetParents(string) []string
	GetChildren(string) []string
	NodeCount() int
	EdgeCount() int
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the lineage layers",
		Long: `Display the lineage graph grouped into layers.

Level 0 holds pure sources; every other asset sits one level below its
deepest upstream. A cycle in the declared lineage is reported as an error.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the layers
  leaplineage dag

  # Output as JSON
  leaplineage dag --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd)
		},
	}

	return cmd
}

func runDAG(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	graph, err := loadGraph(cmdCtx)
	if err != nil {
		return err
	}

	levels, err := graph.GetExecutionLevels()
	if err != nil {
		return fmt.Errorf("failed to get lineage levels: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return dagJSON(r, graph, levels)
	case output.ModeMarkdown:
		dagMarkdown(r, graph, levels)
	default:
		dagText(r, graph, levels)
	}
	return nil
}

// dagText outputs DAG in styled text format.
func dagText(r *output.Renderer, graph GraphQuerier, levels [][]string) {
	styles := r.Styles()

	r.Header(1, "Lineage Layers")

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, asset := range level {
			deps := graph.GetParents(asset)
			children := graph.GetChildren(asset)

			r.Printf("  %s\n", styles.Asset.Render(asset))
			if len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("fed by:"), strings.Join(deps, ", "))
			}
			if len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("feeds:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d assets, %d edges", graph.NodeCount(), graph.EdgeCount())))
}

// dagMarkdown outputs DAG in markdown format.
func dagMarkdown(r *output.Renderer, graph GraphQuerier, levels [][]string) {
	r.Println(output.FormatHeader(1, "Lineage Layers"))
	r.Println("")

	for i, level := range levels {
		levelName := fmt.Sprintf("Level %d", i)
		if i == 0 {
			levelName = "Level 0 (Sources)"
		}
		r.Println(output.FormatHeader(2, levelName))

		for _, asset := range level {
			deps := graph.GetParents(asset)
			children := graph.GetChildren(asset)

			r.Printf("- %s\n", asset)
			if len(deps) > 0 {
				r.Printf("  - fed by: %s\n", strings.Join(deps, ", "))
			}
			if len(children) > 0 {
				r.Printf("  - feeds: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Assets", strconv.Itoa(graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Edges", strconv.Itoa(graph.EdgeCount())))
}

// dagJSON outputs DAG in JSON format.
func dagJSON(r *output.Renderer, graph GraphQuerier, levels [][]string) error {
	dagOutput := output.DAGOutput{
		Levels:      make([]output.DAGLevel, 0, len(levels)),
		TotalAssets: graph.NodeCount(),
		TotalEdges:  graph.EdgeCount(),
	}

	for i, level := range levels {
		dagLevel := output.DAGLevel{
			Level:  i,
			Assets: make([]output.DAGNode, 0, len(level)),
		}

		for _, asset := range level {
			dagLevel.Assets = append(dagLevel.Assets, output.DAGNode{
				Name:      asset,
				DependsOn: nonNil(graph.GetParents(asset)),
				UsedBy:    nonNil(graph.GetChildren(asset)),
			})
		}

		dagOutput.Levels = append(dagOutput.Levels, dagLevel)
	}

	return r.JSON(dagOutput)
}
