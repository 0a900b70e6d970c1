package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/cli/output"
	"github.com/leapstack-labs/leaplineage/internal/cli/testutil"
	"github.com/leapstack-labs/leaplineage/internal/dag"
	"github.com/leapstack-labs/leaplineage/internal/harvest"
	lineagetest "github.com/leapstack-labs/leaplineage/internal/testutil"
)

func TestNewDAGCommand(t *testing.T) {
	cmd := NewDAGCommand()

	if cmd.Use != "dag" {
		t.Errorf("Use = %q, want %q", cmd.Use, "dag")
	}

	if cmd.Short == "" {
		t.Error("Short should not be empty")
	}

	if cmd.Long == "" {
		t.Error("Long should not be empty")
	}

	if cmd.Example == "" {
		t.Error("Example should not be empty")
	}
}

func TestDAGCommand_Markdown(t *testing.T) {
	harvestedProject(t)

	out, err := execute(t, NewDAGCommand())
	require.NoError(t, err)

	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Lineage Layers")
	assert.Contains(t, out, "## Level 0 (Sources)")
	assert.Contains(t, out, "- raw.orders")
	assert.Contains(t, out, "  - feeds: staging.orders")
	assert.Contains(t, out, "  - feeds: marts.revenue")
	assert.Contains(t, out, "  - fed by: staging.orders")
	assert.Contains(t, out, "## Level 2")
	assert.Contains(t, out, "- **Total Assets:** 4")
	assert.Contains(t, out, "- **Total Edges:** 3")
}

func TestDAGCommand_JSON(t *testing.T) {
	harvestedProject(t)
	t.Setenv("LEAPLINEAGE_OUTPUT", "json")

	out, err := execute(t, NewDAGCommand())
	require.NoError(t, err)

	var got output.DAGOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Levels, 3)
	assert.Equal(t, 4, got.TotalAssets)
	assert.Equal(t, 3, got.TotalEdges)

	names := func(level output.DAGLevel) []string {
		var ns []string
		for _, a := range level.Assets {
			ns = append(ns, a.Name)
		}
		return ns
	}
	assert.Equal(t, []string{"raw.orders", "stripe.charges"}, names(got.Levels[0]))
	assert.Equal(t, []string{"staging.orders"}, names(got.Levels[1]))
	assert.Equal(t, []string{"marts.revenue"}, names(got.Levels[2]))
	assert.Equal(t, []string{}, got.Levels[0].Assets[0].DependsOn)
}

func TestDAGText(t *testing.T) {
	graph := dag.FromLineage([]harvest.Lineage{
		{Src: "a", Dst: "b"},
		{Src: "b", Dst: "c"},
	}, nil, lineagetest.NewTestLogger(t))
	levels, err := graph.GetExecutionLevels()
	require.NoError(t, err)

	tr := testutil.NewTestRendererText()
	dagText(tr.Renderer, graph, levels)

	out := tr.Output()
	assert.Contains(t, out, "Lineage Layers")
	assert.Contains(t, out, "Level 2:")
	assert.Contains(t, out, "fed by:")
	assert.Contains(t, out, "Total: 3 assets, 2 edges")
}

func TestDAGCommand_Cycle(t *testing.T) {
	root := testutil.SetupTestProject(t)
	lineagetest.WriteFiles(t, root, map[string]string{
		"data/lineage.csv": "src,dst\na,b\nb,a\n",
	})
	t.Chdir(root)

	_, err := execute(t, NewDAGCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle detected")
}
