// Package render draws the lineage graph as a static PNG and an interactive
// HTML page, and writes the small static site that links them.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/leapstack-labs/leaplineage/internal/dag"
	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/tabular"
)

// ErrNoLineage is returned by Site.Build when the lineage table is missing.
var ErrNoLineage = errors.New("no lineage table")

// PlaceholderHTML is written as index.html when there is nothing to draw.
const PlaceholderHTML = "<h1>No lineage.csv found</h1><p>Place a data/lineage.csv with src,dst headers.</p>"

// RedirectHTML sends the site index to the graph page.
const RedirectHTML = `<meta http-equiv="refresh" content="0; url=graph.html">`

// Site writes graph.html, index.html and graph.png from a lineage table.
type Site struct {
	Fs          afero.Fs
	LineagePath string
	// DatasourcesPath is optional; when present its rows enrich node tooltips.
	DatasourcesPath string
	DocsDir         string
	AssetsDir       string
	HTML            HTMLOptions
	PNG             PNGOptions
	Logger          *slog.Logger
}

// Summary describes a built site.
type Summary struct {
	Nodes    int    `json:"nodes"`
	Edges    int    `json:"edges"`
	HTMLPath string `json:"html_path"`
	PNGPath  string `json:"png_path"`
}

// Build renders the site. When the lineage table does not exist it writes
// the placeholder index and returns an error wrapping ErrNoLineage.
func (s *Site) Build(ctx context.Context) (*Summary, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsys := s.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	indexPath := filepath.Join(s.DocsDir, "index.html")

	rows, err := tabular.ReadLineage(fsys, s.LineagePath)
	if err != nil {
		if errors.Is(err, tabular.ErrNotFound) {
			if werr := writeFile(fsys, indexPath, []byte(PlaceholderHTML)); werr != nil {
				return nil, werr
			}
			return nil, fmt.Errorf("%w: %s", ErrNoLineage, s.LineagePath)
		}
		return nil, err
	}

	var datasources []harvest.Datasource
	if s.DatasourcesPath != "" {
		datasources, err = tabular.ReadDatasources(fsys, s.DatasourcesPath)
		if err != nil && !errors.Is(err, tabular.ErrNotFound) {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := dag.FromLineage(rows, datasources, logger)
	logger.Debug("built lineage graph", slog.Int("nodes", g.NodeCount()), slog.Int("edges", g.EdgeCount()))

	page, err := HTML(g, s.HTML)
	if err != nil {
		return nil, err
	}
	htmlPath := filepath.Join(s.DocsDir, "graph.html")
	if err := writeFile(fsys, htmlPath, page); err != nil {
		return nil, err
	}
	if err := writeFile(fsys, indexPath, []byte(RedirectHTML)); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := PNG(g, s.PNG)
	if err != nil {
		return nil, err
	}
	pngPath := filepath.Join(s.AssetsDir, "graph.png")
	if err := writeFile(fsys, pngPath, img); err != nil {
		return nil, err
	}

	logger.Info("wrote lineage site", slog.String("html", htmlPath), slog.String("png", pngPath))

	return &Summary{
		Nodes:    g.NodeCount(),
		Edges:    g.EdgeCount(),
		HTMLPath: htmlPath,
		PNGPath:  pngPath,
	}, nil
}

func writeFile(fsys afero.Fs, path string, data []byte) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
