// Package commands implements the leaplineage subcommands.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/config"
	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/manifest"
	"github.com/leapstack-labs/leaplineage/internal/pipeline"
	"github.com/leapstack-labs/leaplineage/internal/state"

	// Register the warehouse dialects.
	_ "github.com/leapstack-labs/leaplineage/internal/warehouse/duckdb"
	_ "github.com/leapstack-labs/leaplineage/internal/warehouse/postgres"
	_ "github.com/leapstack-labs/leaplineage/internal/warehouse/snowflake"
)

// CommandContext holds common dependencies for command execution.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Fs       afero.Fs
}

// NewCommandContext returns the config loaded by the root command, loading it
// from the command's flags when the command runs on its own.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		cfgFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.LoadConfig(cfgFile, cmd.Flags())
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
		Fs:       afero.NewOsFs(),
	}, nil
}

// Harvester builds a manifest harvester over the configured repos directory.
func (c *CommandContext) Harvester() *harvest.Harvester {
	reader := manifest.NewReader(c.Cfg.ReposDir, c.Logger)
	reader.Fs = c.Fs
	reader.FileName = c.Cfg.ManifestName
	return harvest.New(reader, c.Logger)
}

// Pipeline builds a harvest pipeline writing all four tables. A nil store
// skips run recording.
func (c *CommandContext) Pipeline(store *state.SQLiteStore) *pipeline.Pipeline {
	p := &pipeline.Pipeline{
		Harvester:       c.Harvester(),
		Fs:              c.Fs,
		ReposDir:        c.Cfg.ReposDir,
		DatasourcesPath: c.Cfg.DatasourcesPath,
		LineagePath:     c.Cfg.LineagePath,
		WriteJSON:       true,
		Logger:          c.Logger,
	}
	if store != nil {
		p.Store = store
	}
	return p
}

// OpenStore opens and migrates the state database.
func (c *CommandContext) OpenStore() (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore()
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state store: %w", err)
	}
	return store, nil
}
