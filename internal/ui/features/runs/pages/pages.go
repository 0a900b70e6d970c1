// Package pages renders the harvest run history.
package pages

import (
	"github.com/a-h/templ"

	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
)

// RunRow is one line of the history table.
type RunRow struct {
	ID          string
	ShortID     string
	Status      string
	StatusClass string
	Started     string
	Completed   string
	Projects    int
	Datasources int
	Edges       int
	Error       string
}

const pageHTML = `{{define "content"}}{{template "runs" .}}{{end}}
{{define "runs"}}<div id="runs-content">
<h2>Harvest runs</h2>
<table class="runs">
<thead><tr><th>run</th><th>status</th><th>started</th><th>completed</th><th>projects</th><th>sources</th><th>edges</th><th>error</th></tr></thead>
<tbody>
{{range .}}<tr><td title="{{.ID}}">{{.ShortID}}</td><td class="{{.StatusClass}}">{{.Status}}</td><td>{{.Started}}</td><td>{{.Completed}}</td><td>{{.Projects}}</td><td>{{.Datasources}}</td><td>{{.Edges}}</td><td>{{.Error}}</td></tr>
{{else}}<tr><td colspan="8">No runs recorded.</td></tr>
{{end}}</tbody>
</table>
</div>{{end}}`

var templates = common.ParsePages(pageHTML)

// RunsPage renders the full run history page.
func RunsPage(shell common.ShellData, rows []RunRow) templ.Component {
	return common.Component(templates, "layout", common.NewPageData(shell, rows))
}

// RunsContent renders only #runs-content for SSE patches.
func RunsContent(rows []RunRow) templ.Component {
	return common.Component(templates, "runs", rows)
}
