package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/config"
	"github.com/leapstack-labs/leaplineage/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leaplineage project",
		Long: `Initialize a new leaplineage project with a configuration file and an
example repository manifest.

This creates:
  - leaplineage.yaml configuration file
  - repos/example/project.yaml manifest
  - .gitignore for generated tables and sites`,
		Example: `  # Initialize in current directory
  leaplineage init

  # Initialize in a new directory
  leaplineage init lineage-catalog

  # Force overwrite existing files
  leaplineage init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			// init runs before any config exists
			mode, err := output.ParseMode(outputFlag(cmd))
			if err != nil {
				return err
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

// outputFlag returns --output when the root defines it.
func outputFlag(cmd *cobra.Command) string {
	if cfg := config.FromContext(cmd.Context()); cfg != nil {
		return cfg.OutputFormat
	}
	if f := cmd.Flags().Lookup("output"); f != nil {
		return f.Value.String()
	}
	return ""
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "leaplineage.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("leaplineage.yaml already exists. Use --force to overwrite")
	}

	files, err := copyTemplate("minimal", dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	for _, f := range files {
		r.StatusLine(f, "created")
	}

	r.Println("")
	r.Success("leaplineage project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Add one directory per repository under repos/ with a project.yaml")
	r.Println("  2. Run 'leaplineage harvest' to build the lineage tables")
	r.Println("  3. Run 'leaplineage graph' to render the lineage graph")
	r.Println("  4. Run 'leaplineage ui' to browse the dashboard")

	return nil
}
