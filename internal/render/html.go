package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/leapstack-labs/leaplineage/internal/dag"
)

// VisNetworkURL is the vis-network bundle the interactive page loads.
const VisNetworkURL = "https://unpkg.com/vis-network@9.1.9/standalone/umd/vis-network.min.js"

// HTMLOptions controls the interactive page.
type HTMLOptions struct {
	Title      string
	Height     string
	Width      string
	Background string
	NodeSize   int
	// Minify runs the bootstrap script through esbuild.
	Minify bool
}

// DefaultHTMLOptions returns an 800px high, full width page on white.
func DefaultHTMLOptions() HTMLOptions {
	return HTMLOptions{
		Title:      "Lineage graph",
		Height:     "800px",
		Width:      "100%",
		Background: "#ffffff",
		NodeSize:   12,
		Minify:     true,
	}
}

// GraphNode is a vis-network node.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Title string `json:"title,omitempty"`
	Shape string `json:"shape"`
	Size  int    `json:"size"`
}

// GraphEdge is a vis-network edge.
type GraphEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Arrows string `json:"arrows"`
}

// GraphData is the payload handed to vis-network.
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Data converts the graph into vis-network nodes and edges, in insertion order.
func Data(g *dag.Graph, nodeSize int) GraphData {
	data := GraphData{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	for _, node := range g.Nodes() {
		data.Nodes = append(data.Nodes, GraphNode{
			ID:    node.ID,
			Label: node.ID,
			Title: tooltip(node.Info),
			Shape: "dot",
			Size:  nodeSize,
		})
	}
	for _, e := range g.Edges() {
		data.Edges = append(data.Edges, GraphEdge{From: e[0], To: e[1], Arrows: "to"})
	}
	return data
}

func tooltip(info dag.AssetInfo) string {
	var parts []string
	if info.System != "" {
		parts = append(parts, "system: "+info.System)
	}
	if info.Type != "" {
		parts = append(parts, "type: "+info.Type)
	}
	if info.URL != "" {
		parts = append(parts, "url: "+info.URL)
	}
	if len(info.Projects) > 0 {
		parts = append(parts, "projects: "+strings.Join(info.Projects, ", "))
	}
	return strings.Join(parts, "\n")
}

// BootstrapScript creates the network inside #lineage from window.LINEAGE_DATA.
const BootstrapScript = `
(function () {
  var container = document.getElementById("lineage");
  var data = window.LINEAGE_DATA || { nodes: [], edges: [] };
  var nodes = new vis.DataSet(data.nodes);
  var edges = new vis.DataSet(data.edges);
  var options = {
    edges: { arrows: { to: { enabled: true } }, smooth: false },
    physics: { stabilization: { iterations: 200 } },
    interaction: { hover: true, navigationButtons: true }
  };
  window.lineageNetwork = new vis.Network(container, { nodes: nodes, edges: edges }, options);
})();
`

var pageTemplate = template.Must(template.New("graph").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.Library}}"></script>
<style>
  body { margin: 0; background: {{.Background}}; }
  #lineage { width: {{.Width}}; height: {{.Height}}; background-color: {{.Background}}; border: 1px solid lightgray; }
</style>
</head>
<body>
<div id="lineage"></div>
<script>window.LINEAGE_DATA = {{.Data}};</script>
<script>{{.Script}}</script>
</body>
</html>
`))

// HTML renders the interactive vis-network page for the graph.
func HTML(g *dag.Graph, opts HTMLOptions) ([]byte, error) {
	script := BootstrapScript
	if opts.Minify {
		minified, err := MinifyJS(script)
		if err != nil {
			return nil, err
		}
		script = minified
	}

	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, map[string]any{
		"Title":      opts.Title,
		"Library":    VisNetworkURL,
		"Background": template.CSS(opts.Background),
		"Width":      template.CSS(opts.Width),
		"Height":     template.CSS(opts.Height),
		"Data":       Data(g, opts.NodeSize),
		"Script":     template.JS(script),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render graph page: %w", err)
	}
	return buf.Bytes(), nil
}

// MinifyJS minifies a browser script with esbuild.
func MinifyJS(src string) (string, error) {
	result := api.Transform(src, api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ES2020,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LogLevel:          api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		var errMsg string
		for _, err := range result.Errors {
			line, col := 0, 0
			if err.Location != nil {
				line, col = err.Location.Line, err.Location.Column
			}
			errMsg += fmt.Sprintf("%d:%d: %s\n", line, col, err.Text)
		}
		return "", fmt.Errorf("esbuild errors:\n%s", errMsg)
	}

	return strings.TrimSpace(string(result.Code)), nil
}
