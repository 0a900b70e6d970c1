package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/harvest"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects with their sources and lineage edges",
		Long: `List every project declared under the repos directory with its owner,
status, domain and the number of sources and lineage edges it contributes.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown table (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all projects (auto-detect output format)
  leaplineage list

  # List projects as JSON
  leaplineage list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	res, err := cmdCtx.Harvester().Run(cmd.Context())
	if err != nil {
		return err
	}
	projects := projectInfos(res)

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(output.ListOutput{Projects: projects, Total: len(projects)})
	}

	r.Header(1, fmt.Sprintf("Projects (%d total)", len(projects)))
	if len(projects) == 0 {
		r.Println("No projects found.")
		return nil
	}

	rows := make([][]string, len(projects))
	for i, p := range projects {
		rows[i] = []string{
			p.Key, p.Name, p.Repo, dash(p.Owner), dash(p.Status), dash(p.Domain),
			strconv.Itoa(p.Sources), strconv.Itoa(p.Edges),
		}
	}
	r.Table([]string{"Key", "Name", "Repo", "Owner", "Status", "Domain", "Sources", "Edges"}, rows)
	return nil
}

// projectInfos joins projects with their source and edge counts by repo.
func projectInfos(res *harvest.Result) []output.ProjectInfo {
	sources := make(map[string]int)
	for _, ds := range res.Datasources {
		sources[ds.Repo]++
	}
	edges := make(map[string]int)
	for _, ln := range res.Lineage {
		edges[ln.Repo]++
	}

	infos := make([]output.ProjectInfo, 0, len(res.Projects))
	for _, p := range res.Projects {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		infos = append(infos, output.ProjectInfo{
			Repo:    p.Repo,
			Key:     p.Key,
			Name:    p.Name,
			Owner:   p.Owner,
			Status:  p.Status,
			Domain:  p.Domain,
			Tags:    tags,
			Sources: sources[p.Repo],
			Edges:   edges[p.Repo],
		})
	}
	return infos
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
