// Package pages renders the interactive lineage graph page.
package pages

import (
	"encoding/json"
	"html/template"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/leaplineage/internal/render"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
)

// GraphView is the data behind the graph page.
type GraphView struct {
	Library string
	Height  string
	Data    render.GraphData
	Script  template.JS
}

// liveScript draws the network once and exposes window.renderLineage so
// SSE updates can replace the data in place.
const liveScript = `
window.renderLineage = function (data) {
  var container = document.getElementById("lineage");
  if (!window.lineageNetwork) {
    var options = {
      edges: { arrows: { to: { enabled: true } }, smooth: false },
      physics: { stabilization: { iterations: 200 } },
      interaction: { hover: true, navigationButtons: true }
    };
    window.lineageNetwork = new vis.Network(container, data, options);
    return;
  }
  window.lineageNetwork.setData(data);
};
window.renderLineage(window.LINEAGE_DATA);
`

const pageHTML = `{{define "head"}}<script src="{{.Data.Library}}"></script>{{end}}
{{define "content"}}<div id="graph-content">
<div id="lineage" style="height: {{.Height}}"></div>
<script>window.LINEAGE_DATA = {{.Data}};</script>
<script>{{.Script}}</script>
</div>{{end}}`

var templates = common.ParsePages(pageHTML)

// NewGraphView prepares the view for data.
func NewGraphView(data render.GraphData) *GraphView {
	return &GraphView{
		Library: render.VisNetworkURL,
		Height:  "800px",
		Data:    data,
		Script:  template.JS(liveScript),
	}
}

// GraphPage renders the full graph page.
func GraphPage(shell common.ShellData, v *GraphView) templ.Component {
	return common.Component(templates, "layout", common.NewPageData(shell, v))
}

// UpdateScript returns the script that swaps the graph data in an open page.
func UpdateScript(data render.GraphData) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return "window.renderLineage(" + string(payload) + ")", nil
}
