package commands

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/dag"
	"github.com/leapstack-labs/leaplineage/internal/tabular"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Upstream   bool
	Downstream bool
	Depth      int
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <asset>",
		Short: "Show lineage for an asset",
		Long: `Display the upstream sources and downstream consumers of an asset,
read from the harvested lineage table.

The lineage shows how data flows between systems, helping you understand
the impact of changes and trace where a dataset comes from.`,
		Example: `  # Show full lineage for an asset
  leaplineage lineage staging.orders

  # Show only upstream sources
  leaplineage lineage staging.orders --downstream=false

  # Limit traversal depth
  leaplineage lineage staging.orders --depth 1

  # Output as JSON
  leaplineage lineage staging.orders --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "Include upstream dependencies")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "Include downstream dependents")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max traversal depth (0 = unlimited)")

	return cmd
}

// loadGraph builds the lineage graph from the harvested tables.
func loadGraph(cmdCtx *CommandContext) (*dag.Graph, error) {
	cfg := cmdCtx.Cfg
	rows, err := tabular.ReadLineage(cmdCtx.Fs, cfg.LineagePath)
	if errors.Is(err, tabular.ErrNotFound) {
		return nil, fmt.Errorf("no lineage table at %s\nHint: run 'leaplineage harvest' first", cfg.LineagePath)
	}
	if err != nil {
		return nil, err
	}

	datasources, err := tabular.ReadDatasources(cmdCtx.Fs, cfg.DatasourcesPath)
	if err != nil && !errors.Is(err, tabular.ErrNotFound) {
		return nil, err
	}
	return dag.FromLineage(rows, datasources, cmdCtx.Logger), nil
}

func runLineage(cmd *cobra.Command, asset string, opts *LineageOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	graph, err := loadGraph(cmdCtx)
	if err != nil {
		return err
	}
	if _, ok := graph.GetNode(asset); !ok {
		return fmt.Errorf("asset not found: %s", asset)
	}

	var upstream, downstream []string
	if opts.Upstream {
		upstream = getUpstreamWithDepth(graph, asset, opts.Depth)
	}
	if opts.Downstream {
		downstream = getDownstreamWithDepth(graph, asset, opts.Depth)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(lineageOutput(graph, asset, upstream, downstream))
	case output.ModeMarkdown:
		lineageMarkdown(r, asset, opts, upstream, downstream)
	default:
		lineageText(r, asset, opts, upstream, downstream)
	}
	return nil
}

// lineageText outputs lineage in styled text format.
func lineageText(r *output.Renderer, asset string, opts *LineageOptions, upstream, downstream []string) {
	styles := r.Styles()

	r.Header(1, "Lineage for "+asset)

	if opts.Upstream {
		r.Println(styles.Header2.Render(fmt.Sprintf("Upstream (%d):", len(upstream))))
		for _, node := range upstream {
			r.Printf("  %s\n", styles.Asset.Render(node))
		}
		r.Println("")
	}

	if opts.Downstream {
		r.Println(styles.Header2.Render(fmt.Sprintf("Downstream (%d):", len(downstream))))
		for _, node := range downstream {
			r.Printf("  %s\n", styles.Asset.Render(node))
		}
	}
}

// lineageMarkdown outputs lineage in markdown format.
func lineageMarkdown(r *output.Renderer, asset string, opts *LineageOptions, upstream, downstream []string) {
	r.Println(output.FormatHeader(1, "Lineage for "+asset))
	r.Println("")

	if opts.Upstream {
		r.Println(output.FormatHeader(2, "Upstream ("+strconv.Itoa(len(upstream))+")"))
		r.Println(output.FormatList(upstream))
		r.Println("")
	}
	if opts.Downstream {
		r.Println(output.FormatHeader(2, "Downstream ("+strconv.Itoa(len(downstream))+")"))
		r.Println(output.FormatList(downstream))
	}
}

// lineageOutput builds the JSON form: the asset, its neighbours and the edges between them.
func lineageOutput(graph *dag.Graph, asset string, upstream, downstream []string) output.LineageOutput {
	out := output.LineageOutput{
		Root:       asset,
		Nodes:      []output.LineageNode{},
		Edges:      []output.LineageEdge{},
		Upstream:   nonNil(upstream),
		Downstream: nonNil(downstream),
	}

	nodeSet := map[string]bool{asset: true}
	for _, n := range upstream {
		nodeSet[n] = true
	}
	for _, n := range downstream {
		nodeSet[n] = true
	}
	ids := make([]string, 0, len(nodeSet))
	for id := range nodeSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		node, _ := graph.GetNode(id)
		ln := output.LineageNode{ID: id, Type: "asset"}
		if node != nil && node.Info.System != "" {
			ln.Type = "source"
			ln.System = node.Info.System
		}
		if node != nil {
			ln.Projects = node.Info.Projects
		}
		out.Nodes = append(out.Nodes, ln)

		// edges only between nodes in the result
		for _, parent := range graph.GetParents(id) {
			if nodeSet[parent] {
				out.Edges = append(out.Edges, output.LineageEdge{From: parent, To: id})
			}
		}
	}

	out.Stats = output.LineageStats{
		TotalNodes:      len(out.Nodes),
		UpstreamCount:   len(upstream),
		DownstreamCount: len(downstream),
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// getUpstreamWithDepth returns upstream nodes with optional depth limit.
func getUpstreamWithDepth(graph *dag.Graph, nodeID string, maxDepth int) []string {
	if maxDepth == 0 {
		return graph.GetUpstreamNodes(nodeID)
	}
	return walkWithDepth(nodeID, maxDepth, graph.GetParents)
}

// getDownstreamWithDepth returns downstream nodes with optional depth limit.
func getDownstreamWithDepth(graph *dag.Graph, nodeID string, maxDepth int) []string {
	if maxDepth == 0 {
		var result []string
		for _, id := range graph.GetAffectedNodes([]string{nodeID}) {
			if id != nodeID {
				result = append(result, id)
			}
		}
		return result
	}
	return walkWithDepth(nodeID, maxDepth, graph.GetChildren)
}

// walkWithDepth collects neighbours reachable within maxDepth hops, sorted.
func walkWithDepth(start string, maxDepth int, next func(string) []string) []string {
	visited := map[string]bool{start: true}
	var result []string

	var traverse func(id string, depth int)
	traverse = func(id string, depth int) {
		if depth > maxDepth {
			return
		}
		for _, n := range next(id) {
			if !visited[n] {
				visited[n] = true
				result = append(result, n)
				traverse(n, depth+1)
			}
		}
	}

	traverse(start, 1)
	sort.Strings(result)
	return result
}
