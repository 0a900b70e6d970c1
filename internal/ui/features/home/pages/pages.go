// Package pages renders the dashboard.
package pages

import (
	"github.com/a-h/templ"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
)

// Dashboard holds everything shown in #ui-content.
type Dashboard struct {
	Run      *state.Run
	Selected string
	// AllProjects fills the filter select and ignores the filter.
	AllProjects  []harvest.ProjectRow
	ProjectCount int
	SourceCount  int
	EdgeCount    int
	Roots        []string
	Leaves       []string
	Datasources  []harvest.Datasource
	Lineage      []harvest.Lineage
}

const pageHTML = `{{define "content"}}{{template "dashboard" .}}{{end}}
{{define "dashboard"}}<div id="ui-content">
<section class="stats">
<div class="stat"><span class="value">{{.ProjectCount}}</span><span class="label">projects</span></div>
<div class="stat"><span class="value">{{.SourceCount}}</span><span class="label">sources</span></div>
<div class="stat"><span class="value">{{.EdgeCount}}</span><span class="label">edges</span></div>
</section>
{{with .Run}}<p class="last-harvest">Last harvest {{formatTime .CompletedAt}} from {{.ReposDir}}</p>{{else}}<p class="last-harvest">No harvest recorded yet.</p>{{end}}
<form method="post" action="/filter" class="filter">
<select name="project">
<option value="">All projects</option>
{{range .AllProjects}}<option value="{{.Key}}"{{if eq .Key $.Selected}} selected{{end}}>{{.Name}}</option>
{{end}}</select>
<button type="submit">Filter</button>
</form>
<section class="ends">
<div><h2>Roots</h2><ul class="roots">{{range .Roots}}<li>{{.}}</li>{{else}}<li>-</li>{{end}}</ul></div>
<div><h2>Leaves</h2><ul class="leaves">{{range .Leaves}}<li>{{.}}</li>{{else}}<li>-</li>{{end}}</ul></div>
</section>
<h2>Lineage</h2>
<table class="lineage">
<thead><tr><th>repo</th><th>src</th><th>dst</th><th>tool</th><th>frequency</th><th>description</th></tr></thead>
<tbody>
{{range .Lineage}}<tr><td>{{.Repo}}</td><td>{{.Src}}</td><td>{{.Dst}}</td><td>{{orDash .Tool}}</td><td>{{orDash .Frequency}}</td><td>{{orDash .Description}}</td></tr>
{{else}}<tr><td colspan="6">No lineage edges.</td></tr>
{{end}}</tbody>
</table>
<h2>Datasources</h2>
<table class="datasources">
<thead><tr><th>repo</th><th>source</th><th>system</th><th>type</th><th>via</th></tr></thead>
<tbody>
{{range .Datasources}}<tr><td>{{.Repo}}</td><td>{{orDash .SourceName}}</td><td>{{orDash .System}}</td><td>{{orDash .Type}}</td><td>{{.DiscoveredVia}}</td></tr>
{{end}}</tbody>
</table>
</div>{{end}}`

var templates = common.ParsePages(pageHTML)

// HomePage renders the full dashboard page.
func HomePage(shell common.ShellData, d *Dashboard) templ.Component {
	return common.Component(templates, "layout", common.NewPageData(shell, d))
}

// HomeContent renders only #ui-content for SSE patches.
func HomeContent(d *Dashboard) templ.Component {
	return common.Component(templates, "dashboard", d)
}
