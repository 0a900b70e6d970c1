package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/config"
	"github.com/leapstack-labs/leaplineage/internal/ui"
	"github.com/leapstack-labs/leaplineage/internal/ui/features/common"
	"github.com/leapstack-labs/leaplineage/internal/warehouse"
)

// UIOptions holds options for the ui command.
type UIOptions struct {
	NoBrowser bool
}

// NewUICommand creates the ui command.
func NewUICommand() *cobra.Command {
	opts := &UIOptions{}

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Start the lineage dashboard",
		Long: `Start a local web server with the lineage dashboard.

The dashboard provides:
- Project, source and edge counts with roots and leaves
- The lineage table, filterable by project
- An interactive lineage graph
- Harvest run history

Manifests are re-harvested when they change (--watch) and optionally on a
cron schedule (--refresh). Edges come from the latest harvest (state) or
from the warehouse LINEAGE_EDGES table (--source warehouse).`,
		Example: `  # Start UI on default port
  leaplineage ui

  # Start on custom port without opening a browser
  leaplineage ui --port 3000 --no-browser

  # Re-harvest every 15 minutes
  leaplineage ui --refresh "*/15 * * * *"

  # Read edges from the warehouse
  leaplineage ui --source warehouse`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd, opts)
		},
	}

	cmd.Flags().Int("port", config.DefaultUIPort, "Port to serve on")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().Bool("watch", true, "Re-harvest when manifests change")
	cmd.Flags().String("refresh", "", "Cron schedule for periodic re-harvests (empty disables)")
	cmd.Flags().String("source", config.SourceState, "Edge source (state|warehouse)")
	_ = cmd.RegisterFlagCompletionFunc("source", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.SourceState, config.SourceWarehouse}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runUI(cmd *cobra.Command, opts *UIOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stateSource := &common.StateSource{Store: store}
	var source common.Source = stateSource
	if cfg.UI.Source == config.SourceWarehouse {
		wh, err := warehouse.Open(ctx, cfg.Warehouse, logger)
		if err != nil {
			return err
		}
		defer func() { _ = wh.Close() }()
		source = &common.WarehouseSource{Edges: wh, State: stateSource}
	}

	server := ui.NewServer(ui.Config{
		Port:          cfg.UI.Port,
		Watch:         cfg.UI.Watch,
		ReposDir:      cfg.ReposDir,
		ManifestName:  cfg.ManifestName,
		Refresh:       cfg.UI.Refresh,
		SessionSecret: os.Getenv(config.EnvPrefix + "SESSION_SECRET"),
		Source:        source,
		Store:         store,
		Pipeline:      cmdCtx.Pipeline(store),
		Logger:        logger,
	})

	// harvest once so the first page shows current manifests
	server.Refresh(ctx, "startup")

	url := fmt.Sprintf("http://localhost:%d", cfg.UI.Port)
	if cfg.UI.AutoOpen && !opts.NoBrowser {
		go openBrowser(ctx, url)
	}

	r := cmdCtx.Renderer
	r.Printf("Starting UI server on %s\n", url)
	r.Println("Press Ctrl+C to stop")

	return server.Serve(ctx)
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(ctx context.Context, url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return
	}

	_ = cmd.Start()
}
