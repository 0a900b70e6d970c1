package dag

import (
	"reflect"
	"testing"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
	"github.com/leapstack-labs/leaplineage/internal/testutil"
)

func chain(ids ...string) *Graph {
	g := NewGraph()
	for _, id := range ids {
		g.AddNode(id, AssetInfo{})
	}
	for i := 1; i < len(ids); i++ {
		_ = g.AddEdge(ids[i-1], ids[i])
	}
	return g
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := NewGraph()

	g.AddNode("raw.orders", AssetInfo{System: "postgres"})
	g.AddNode("staging.orders", AssetInfo{})
	g.AddNode("marts.revenue", AssetInfo{})

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}

	if err := g.AddEdge("raw.orders", "staging.orders"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}
	if err := g.AddEdge("staging.orders", "marts.revenue"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}

	node, ok := g.GetNode("raw.orders")
	if !ok {
		t.Fatal("expected raw.orders to exist")
	}
	if node.Info.Name != "raw.orders" {
		t.Errorf("expected name to default to id, got %q", node.Info.Name)
	}
}

func TestGraph_AddNode_Merges(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", AssetInfo{Projects: []string{"P2"}})
	g.AddNode("a", AssetInfo{System: "s3", Projects: []string{"P1", "P2"}})
	g.AddNode("a", AssetInfo{System: "gcs"})

	node, _ := g.GetNode("a")
	if node.Info.System != "s3" {
		t.Errorf("expected first non-empty system to stick, got %q", node.Info.System)
	}
	if !reflect.DeepEqual(node.Info.Projects, []string{"P1", "P2"}) {
		t.Errorf("expected unioned projects, got %v", node.Info.Projects)
	}
	if g.NodeCount() != 1 {
		t.Errorf("expected 1 node, got %d", g.NodeCount())
	}
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", AssetInfo{})

	if err := g.AddEdge("a", "nonexistent"); err == nil {
		t.Error("expected error for nonexistent destination node")
	}
	if err := g.AddEdge("nonexistent", "a"); err == nil {
		t.Error("expected error for nonexistent source node")
	}
}

func TestGraph_AddEdge_SelfLoop(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", AssetInfo{})

	if err := g.AddEdge("a", "a"); err == nil {
		t.Error("expected error for self-loop")
	}
}

func TestGraph_SelfLoops(t *testing.T) {
	g := FromLineage([]harvest.Lineage{
		{Src: "tbl", Dst: "tbl"},
		{Src: "a", Dst: "tbl"},
	}, nil, testutil.NewTestLogger(t))

	if g.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
	want := [][2]string{{"tbl", "tbl"}, {"a", "tbl"}}
	if got := g.Edges(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected edges %v, got %v", want, got)
	}
	if hasCycle, _ := g.HasCycle(); hasCycle {
		t.Error("self loops must not count as cycles")
	}
	if up := g.GetUpstreamNodes("tbl"); !reflect.DeepEqual(up, []string{"a"}) {
		t.Errorf("expected upstream [a], got %v", up)
	}
	if leaves := g.GetLeaves(); !reflect.DeepEqual(leaves, []string{"tbl"}) {
		t.Errorf("expected leaves [tbl], got %v", leaves)
	}

	sub := g.Subgraph([]string{"tbl"})
	if sub.EdgeCount() != 1 || !sub.HasSelfLoop("tbl") {
		t.Error("expected subgraph to keep the self loop")
	}
	if err := g.AddSelfLoop("missing"); err == nil {
		t.Error("expected error for self loop on a missing node")
	}
}

func TestGraph_GetParentsAndChildren(t *testing.T) {
	g := chain("a", "b", "c")
	_ = g.AddEdge("a", "c")

	if parents := g.GetParents("c"); len(parents) != 2 {
		t.Errorf("expected c to have 2 parents, got %d", len(parents))
	}
	if children := g.GetChildren("a"); len(children) != 2 {
		t.Errorf("expected a to have 2 children, got %d", len(children))
	}
}

func TestGraph_Nodes_InsertionOrder(t *testing.T) {
	g := chain("zeta", "alpha", "mid")

	var got []string
	for _, n := range g.Nodes() {
		got = append(got, n.ID)
	}
	if !reflect.DeepEqual(got, []string{"zeta", "alpha", "mid"}) {
		t.Errorf("expected insertion order, got %v", got)
	}

	var sorted []string
	for _, n := range g.GetAllNodes() {
		sorted = append(sorted, n.ID)
	}
	if !reflect.DeepEqual(sorted, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("expected sorted order, got %v", sorted)
	}

	want := [][2]string{{"zeta", "alpha"}, {"alpha", "mid"}}
	if edges := g.Edges(); !reflect.DeepEqual(edges, want) {
		t.Errorf("expected edges %v, got %v", want, edges)
	}
}

func TestGraph_HasCycle(t *testing.T) {
	g := chain("a", "b", "c")
	if hasCycle, path := g.HasCycle(); hasCycle {
		t.Errorf("expected no cycle, but found: %v", path)
	}

	_ = g.AddEdge("c", "a")
	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected cycle to be detected")
	}
	if len(path) == 0 || path[0] != path[len(path)-1] {
		t.Errorf("expected closed cycle path, got %v", path)
	}
}

func TestGraph_GetExecutionLevels(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"raw1", "raw2", "staging1", "staging2", "mart"} {
		g.AddNode(id, AssetInfo{})
	}
	_ = g.AddEdge("raw1", "staging1")
	_ = g.AddEdge("raw2", "staging2")
	_ = g.AddEdge("staging1", "mart")
	_ = g.AddEdge("staging2", "mart")
	_ = g.AddEdge("raw1", "mart")

	levels, err := g.GetExecutionLevels()
	if err != nil {
		t.Fatalf("failed to get levels: %v", err)
	}

	want := [][]string{{"raw1", "raw2"}, {"staging1", "staging2"}, {"mart"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("expected %v, got %v", want, levels)
	}
}

func TestGraph_GetExecutionLevels_Empty(t *testing.T) {
	levels, err := NewGraph().GetExecutionLevels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(levels) != 0 {
		t.Errorf("expected no levels, got %v", levels)
	}
}

func TestGraph_GetExecutionLevels_Cycle(t *testing.T) {
	g := chain("a", "b")
	_ = g.AddEdge("b", "a")

	if _, err := g.GetExecutionLevels(); err == nil {
		t.Error("expected error for cyclic graph")
	}
}

func TestGraph_GetAffectedNodes(t *testing.T) {
	g := chain("a", "b", "c")
	g.AddNode("d", AssetInfo{})

	affected := g.GetAffectedNodes([]string{"a", "missing"})
	if !reflect.DeepEqual(affected, []string{"a", "b", "c"}) {
		t.Errorf("expected [a b c], got %v", affected)
	}
}

func TestGraph_GetUpstreamNodes(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(id, AssetInfo{})
	}
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "d")

	upstream := g.GetUpstreamNodes("d")
	if !reflect.DeepEqual(upstream, []string{"a", "b", "c"}) {
		t.Errorf("expected [a b c], got %v", upstream)
	}
}

func TestGraph_RootsAndLeaves(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(id, AssetInfo{})
	}
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "d")

	if roots := g.GetRoots(); !reflect.DeepEqual(roots, []string{"a", "b"}) {
		t.Errorf("expected roots [a b], got %v", roots)
	}
	if leaves := g.GetLeaves(); !reflect.DeepEqual(leaves, []string{"d"}) {
		t.Errorf("expected leaves [d], got %v", leaves)
	}
}

func TestGraph_Subgraph(t *testing.T) {
	g := chain("a", "b", "c", "d")

	sub := g.Subgraph([]string{"c", "b"})

	if sub.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", sub.NodeCount())
	}
	if sub.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", sub.EdgeCount())
	}
	if children := sub.GetChildren("b"); len(children) != 1 || children[0] != "c" {
		t.Error("expected edge from b to c")
	}
	if nodes := sub.Nodes(); nodes[0].ID != "b" {
		t.Errorf("expected original insertion order, got %s first", nodes[0].ID)
	}
}

func TestGraph_DuplicateEdges(t *testing.T) {
	g := chain("a", "b")
	_ = g.AddEdge("a", "b")

	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge (no duplicates), got %d", g.EdgeCount())
	}
}

func TestFromLineage(t *testing.T) {
	rows := []harvest.Lineage{
		{Repo: "orders", ProjectKey: "ORD", Src: "raw.orders", Dst: "staging.orders"},
		{Repo: "billing", ProjectKey: "BIL", Src: "stripe.charges", Dst: "staging.orders"},
		{Repo: "orders", ProjectKey: "ORD", Src: "staging.orders", Dst: "staging.orders"},
		{Repo: "orders", ProjectKey: "ORD", Src: "staging.orders", Dst: "marts.revenue"},
	}
	datasources := []harvest.Datasource{
		{Repo: "orders", ProjectKey: "ORD", SourceName: "raw.orders", System: "postgres", Type: "table", URL: "postgres://db"},
		{Repo: "other", ProjectKey: "OTH", SourceName: "unrelated"},
	}

	g := FromLineage(rows, datasources, testutil.NewTestLogger(t))

	if g.NodeCount() != 4 {
		t.Errorf("expected 4 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 4 {
		t.Errorf("expected 4 edges including the self loop, got %d", g.EdgeCount())
	}
	if !g.HasSelfLoop("staging.orders") {
		t.Error("expected staging.orders to keep its self loop")
	}
	for _, parent := range g.GetParents("staging.orders") {
		if parent == "staging.orders" {
			t.Error("self loop must not appear as a parent")
		}
	}
	if _, err := g.GetExecutionLevels(); err != nil {
		t.Errorf("self loops must not make levels fail: %v", err)
	}
	if _, ok := g.GetNode("unrelated"); ok {
		t.Error("datasources must not add nodes")
	}

	raw, _ := g.GetNode("raw.orders")
	if raw.Info.System != "postgres" || raw.Info.URL != "postgres://db" {
		t.Errorf("expected raw.orders enriched from datasources, got %+v", raw.Info)
	}

	staging, _ := g.GetNode("staging.orders")
	if !reflect.DeepEqual(staging.Info.Projects, []string{"BIL", "ORD"}) {
		t.Errorf("expected staging.orders shared by BIL and ORD, got %v", staging.Info.Projects)
	}

	var order []string
	for _, n := range g.Nodes() {
		order = append(order, n.ID)
	}
	want := []string{"raw.orders", "staging.orders", "stripe.charges", "marts.revenue"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected insertion order %v, got %v", want, order)
	}
}
