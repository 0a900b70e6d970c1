// Package dag provides the directed lineage graph between data assets.
// It supports cycle detection, lineage layers and upstream/downstream traversal.
package dag

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
)

// AssetInfo describes a data asset. Fields are filled from the datasources
// table when the asset is also a declared source.
type AssetInfo struct {
	Name     string   `json:"name"`
	System   string   `json:"system,omitempty"`
	Type     string   `json:"type,omitempty"`
	URL      string   `json:"url,omitempty"`
	Projects []string `json:"projects,omitempty"`
}

// Node represents an asset in the graph.
type Node struct {
	// ID is the asset name
	ID   string
	Info AssetInfo
}

// Graph is a directed graph of assets. Edges point from src to dst.
type Graph struct {
	nodes   map[string]*Node
	order   []string            // insertion order
	edges   map[string][]string // src -> dsts
	parents map[string][]string // dst -> srcs
	// loops holds assets with a self edge. They are drawn and counted but
	// never take part in traversal, levels or cycle detection.
	loops map[string]bool
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
		loops:   make(map[string]bool),
	}
}

// AddNode adds an asset to the graph. Adding an existing asset merges info:
// empty fields are filled and projects are unioned.
func (g *Graph) AddNode(id string, info AssetInfo) {
	if info.Name == "" {
		info.Name = id
	}
	node, exists := g.nodes[id]
	if !exists {
		info.Projects = uniqueSorted(info.Projects)
		g.nodes[id] = &Node{ID: id, Info: info}
		g.order = append(g.order, id)
		g.edges[id] = []string{}
		g.parents[id] = []string{}
		return
	}

	cur := &node.Info
	if cur.System == "" {
		cur.System = info.System
	}
	if cur.Type == "" {
		cur.Type = info.Type
	}
	if cur.URL == "" {
		cur.URL = info.URL
	}
	cur.Projects = uniqueSorted(append(cur.Projects, info.Projects...))
}

// AddEdge adds a directed edge from src to dst. Both nodes must exist.
func (g *Graph) AddEdge(src, dst string) error {
	if _, exists := g.nodes[src]; !exists {
		return fmt.Errorf("source node %q does not exist", src)
	}
	if _, exists := g.nodes[dst]; !exists {
		return fmt.Errorf("destination node %q does not exist", dst)
	}

	if src == dst {
		return fmt.Errorf("self-loop detected: %s", src)
	}

	if !slices.Contains(g.edges[src], dst) {
		g.edges[src] = append(g.edges[src], dst)
	}
	if !slices.Contains(g.parents[dst], src) {
		g.parents[dst] = append(g.parents[dst], src)
	}

	return nil
}

// AddSelfLoop records an edge from an existing asset to itself.
func (g *Graph) AddSelfLoop(id string) error {
	if _, exists := g.nodes[id]; !exists {
		return fmt.Errorf("node %q does not exist", id)
	}
	g.loops[id] = true
	return nil
}

// HasSelfLoop reports whether the asset has an edge to itself.
func (g *Graph) HasSelfLoop(id string) bool {
	return g.loops[id]
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the direct upstream assets of a node.
func (g *Graph) GetParents(id string) []string {
	return g.parents[id]
}

// GetChildren returns the direct downstream assets of a node.
func (g *Graph) GetChildren(id string) []string {
	return g.edges[id]
}

// GetAllNodes returns all nodes sorted by ID.
func (g *Graph) GetAllNodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Edges returns every edge as a [src, dst] pair, in insertion order of src.
// A self loop follows the other edges of its asset.
func (g *Graph) Edges() [][2]string {
	var out [][2]string
	for _, src := range g.order {
		for _, dst := range g.edges[src] {
			out = append(out, [2]string{src, dst})
		}
		if g.loops[src] {
			out = append(out, [2]string{src, src})
		}
	}
	return out
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := len(g.loops)
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, childID := range g.edges[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if recStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for _, id := range g.order {
		if !visited[id] {
			if dfs(id) {
				return true, cyclePath
			}
		}
	}

	return false, nil
}

// GetExecutionLevels groups assets into lineage layers.
// Level 0 holds pure sources; an asset sits one level below its deepest parent.
func (g *Graph) GetExecutionLevels() ([][]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	assigned := make(map[string]int)

	var getLevel func(id string) int
	getLevel = func(id string) int {
		if level, ok := assigned[id]; ok {
			return level
		}

		level := 0
		for _, parentID := range g.parents[id] {
			if l := getLevel(parentID) + 1; l > level {
				level = l
			}
		}
		assigned[id] = level
		return level
	}

	maxLevel := -1
	for _, id := range g.order {
		if level := getLevel(id); level > maxLevel {
			maxLevel = level
		}
	}

	levels := make([][]string, maxLevel+1)
	for i := range levels {
		levels[i] = []string{}
	}
	for id, level := range assigned {
		levels[level] = append(levels[level], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}

	return levels, nil
}

// GetAffectedNodes returns the given nodes and everything downstream of them.
func (g *Graph) GetAffectedNodes(changedIDs []string) []string {
	affected := make(map[string]bool)

	var markAffected func(id string)
	markAffected = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true
		for _, childID := range g.edges[id] {
			markAffected(childID)
		}
	}

	for _, id := range changedIDs {
		if _, exists := g.nodes[id]; exists {
			markAffected(id)
		}
	}

	return sortedKeys(affected)
}

// GetUpstreamNodes returns all transitive upstream assets of the given node.
func (g *Graph) GetUpstreamNodes(id string) []string {
	upstream := make(map[string]bool)

	var markUpstream func(nodeID string)
	markUpstream = func(nodeID string) {
		for _, parentID := range g.parents[nodeID] {
			if !upstream[parentID] {
				upstream[parentID] = true
				markUpstream(parentID)
			}
		}
	}

	markUpstream(id)
	delete(upstream, id)

	return sortedKeys(upstream)
}

// GetRoots returns assets with no upstream (pure sources).
func (g *Graph) GetRoots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// GetLeaves returns assets with no downstream.
func (g *Graph) GetLeaves() []string {
	var leaves []string
	for id := range g.nodes {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Subgraph returns a new graph containing only the specified nodes and the
// edges between them. Insertion order of the original graph is kept.
func (g *Graph) Subgraph(nodeIDs []string) *Graph {
	subgraph := NewGraph()
	nodeSet := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		nodeSet[id] = true
	}

	for _, id := range g.order {
		if nodeSet[id] {
			subgraph.AddNode(id, g.nodes[id].Info)
		}
	}
	for _, id := range subgraph.order {
		for _, childID := range g.edges[id] {
			if nodeSet[childID] {
				_ = subgraph.AddEdge(id, childID)
			}
		}
		if g.loops[id] {
			subgraph.loops[id] = true
		}
	}

	return subgraph
}

// FromLineage builds the graph from lineage rows. Nodes are added in row
// order (src before dst). Datasource rows enrich nodes that appear in the
// lineage; they do not add nodes of their own. A row whose src equals its dst
// becomes a self loop.
func FromLineage(rows []harvest.Lineage, datasources []harvest.Datasource, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	g := NewGraph()
	for _, row := range rows {
		if row.Src == "" || row.Dst == "" {
			continue
		}
		var projects []string
		if row.ProjectKey != "" {
			projects = []string{row.ProjectKey}
		}
		g.AddNode(row.Src, AssetInfo{Projects: projects})
		g.AddNode(row.Dst, AssetInfo{Projects: projects})
		if row.Src == row.Dst {
			_ = g.AddSelfLoop(row.Src)
			logger.Debug("self loop in lineage", slog.String("asset", row.Src))
			continue
		}
		if err := g.AddEdge(row.Src, row.Dst); err != nil {
			logger.Warn("skipping lineage edge", slog.String("src", row.Src), slog.String("dst", row.Dst), slog.String("error", err.Error()))
		}
	}

	for _, ds := range datasources {
		name := ds.SourceName.String()
		if _, ok := g.nodes[name]; !ok {
			continue
		}
		info := AssetInfo{
			System: ds.System.String(),
			Type:   ds.Type.String(),
			URL:    ds.URL.String(),
		}
		if ds.ProjectKey != "" {
			info.Projects = []string{ds.ProjectKey}
		}
		g.AddNode(name, info)
	}

	return g
}

func sortedKeys(set map[string]bool) []string {
	result := make([]string, 0, len(set))
	for id := range set {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	sort.Strings(out)
	return slices.Compact(out)
}
