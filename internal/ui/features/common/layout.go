package common

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/leaplineage/internal/ui/resources"
)

// DatastarURL is the client bundle that consumes the SSE patches.
const DatastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

// LayoutHTML defines the "layout" template. Feature pages define "content"
// and optionally "head", then execute "layout" with a PageData value.
const LayoutHTML = `{{define "layout"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Shell.Title}} - leaplineage</title>
<link rel="stylesheet" href="{{.StylePath}}">
<script type="module" src="{{.DatastarURL}}"></script>
{{block "head" .}}{{end}}
</head>
<body>
<nav class="nav">
<span class="brand">leaplineage</span>
<a href="/"{{if eq .Shell.CurrentPath "/"}} class="active"{{end}}>Dashboard</a>
<a href="/graph"{{if eq .Shell.CurrentPath "/graph"}} class="active"{{end}}>Graph</a>
<a href="/runs"{{if eq .Shell.CurrentPath "/runs"}} class="active"{{end}}>Runs</a>
<span class="source">edges: {{.Shell.Source}}</span>
</nav>
<main data-init="@get('{{.Shell.UpdatesURL}}')">
{{template "content" .Data}}
</main>
</body>
</html>
{{end}}`

// PageData is passed to the "layout" template.
type PageData struct {
	Shell       ShellData
	Data        any
	StylePath   string
	DatastarURL string
}

// NewPageData fills in the layout constants.
func NewPageData(shell ShellData, data any) PageData {
	return PageData{
		Shell:       shell,
		Data:        data,
		StylePath:   resources.StaticPath("style.css"),
		DatastarURL: DatastarURL,
	}
}

// ParsePages returns a template set holding the layout plus the given
// page definitions.
func ParsePages(pages string) *template.Template {
	t := template.Must(template.New("layout").Funcs(Funcs()).Parse(LayoutHTML))
	return template.Must(t.New("page").Parse(pages))
}

// Funcs are the helpers available to page templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"orDash":     OrDash,
		"countLabel": CountLabel,
		"formatTime": FormatTime,
	}
}

// Component adapts a named template to templ so pages can be rendered
// directly or patched over SSE.
func Component(t *template.Template, name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return t.ExecuteTemplate(w, name, data)
	})
}
