// Package config provides configuration management for the leaplineage CLI.
//
// Values are layered from defaults, the leaplineage.yaml config file, legacy
// environment variables, LEAPLINEAGE_ environment variables and finally
// explicitly set flags.
package config

import (
	"github.com/leapstack-labs/leaplineage/internal/graphdb"
	"github.com/leapstack-labs/leaplineage/internal/render"
	"github.com/leapstack-labs/leaplineage/internal/warehouse"
)

// TargetConfig is an alias for the warehouse target configuration.
type TargetConfig = warehouse.TargetConfig

// Neo4jConfig is an alias for the graph database connection settings.
type Neo4jConfig = graphdb.Config

// RenderConfig controls the static graph outputs.
type RenderConfig struct {
	MaxLabels int     `koanf:"max_labels"`
	Seed      uint64  `koanf:"seed"`
	SpringK   float64 `koanf:"spring_k"`
	WidthIn   float64 `koanf:"width_in"`
	HeightIn  float64 `koanf:"height_in"`
	DPI       float64 `koanf:"dpi"`
	Minify    bool    `koanf:"minify"`
}

// PNGOptions converts the render settings into PNG options.
func (r RenderConfig) PNGOptions() render.PNGOptions {
	opts := render.DefaultPNGOptions()
	if r.MaxLabels > 0 {
		opts.MaxLabels = r.MaxLabels
	}
	if r.SpringK > 0 {
		opts.SpringK = r.SpringK
	}
	if r.WidthIn > 0 {
		opts.WidthIn = r.WidthIn
	}
	if r.HeightIn > 0 {
		opts.HeightIn = r.HeightIn
	}
	if r.DPI > 0 {
		opts.DPI = r.DPI
	}
	opts.Seed = r.Seed
	return opts
}

// HTMLOptions converts the render settings into HTML options.
func (r RenderConfig) HTMLOptions() render.HTMLOptions {
	opts := render.DefaultHTMLOptions()
	opts.Minify = r.Minify
	return opts
}

// UIConfig holds configuration for the UI server.
type UIConfig struct {
	Port     int    `koanf:"port"`
	AutoOpen bool   `koanf:"auto_open"`
	Watch    bool   `koanf:"watch"`
	Refresh  string `koanf:"refresh"`
	Source   string `koanf:"source"`
}

// Config holds all CLI configuration options.
type Config struct {
	ReposDir        string       `koanf:"repos_dir"`
	ManifestName    string       `koanf:"manifest_name"`
	OutputDir       string       `koanf:"output_dir"`
	DatasourcesPath string       `koanf:"datasources_path"`
	LineagePath     string       `koanf:"lineage_path"`
	DocsDir         string       `koanf:"docs_dir"`
	AssetsDir       string       `koanf:"assets_dir"`
	StatePath       string       `koanf:"state_path"`
	OutputFormat    string       `koanf:"output"`
	LogLevel        string       `koanf:"log_level"`
	Verbose         bool         `koanf:"verbose"`
	Neo4j           Neo4jConfig  `koanf:"neo4j"`
	Warehouse       TargetConfig `koanf:"warehouse"`
	Render          RenderConfig `koanf:"render"`
	UI              UIConfig     `koanf:"ui"`

	// ProjectRoot is the directory holding the config file, else the working directory.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultReposDir     = "repos"
	DefaultManifestName = "project.yaml"
	DefaultOutputDir    = "data"
	DefaultDocsDir      = "docs"
	DefaultAssetsDir    = "assets"
	DefaultStateFile    = ".leaplineage/state.db"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel     = "info"
	DefaultUIPort       = 8765

	DatasourcesFile = "datasources.csv"
	LineageFile     = "lineage.csv"
)

// UI edge sources.
const (
	SourceState     = "state"
	SourceWarehouse = "warehouse"
)

// defaults returns the flat default map loaded first into koanf.
func defaults() map[string]any {
	return map[string]any{
		"repos_dir":         DefaultReposDir,
		"manifest_name":     DefaultManifestName,
		"output_dir":        DefaultOutputDir,
		"docs_dir":          DefaultDocsDir,
		"assets_dir":        DefaultAssetsDir,
		"state_path":        DefaultStateFile,
		"output":            DefaultOutput,
		"log_level":         DefaultLogLevel,
		"verbose":           false,
		"neo4j.uri":         "bolt://localhost:7687",
		"neo4j.user":        "neo4j",
		"neo4j.password":    "neo4jPW",
		"warehouse.type":    "snowflake",
		"render.max_labels": 50,
		"render.seed":       42,
		"render.spring_k":   0.4,
		"render.width_in":   10.0,
		"render.height_in":  8.0,
		"render.dpi":        150.0,
		"render.minify":     true,
		"ui.port":           DefaultUIPort,
		"ui.auto_open":      true,
		"ui.watch":          true,
		"ui.refresh":        "",
		"ui.source":         SourceState,
	}
}
