package output

// HarvestOutput is the JSON form of a harvest.
type HarvestOutput struct {
	RunID           string            `json:"run_id,omitempty"`
	Repos           int               `json:"repos"`
	Projects        int               `json:"projects"`
	Sources         int               `json:"sources"`
	Edges           int               `json:"edges"`
	SourcesBySystem map[string]int    `json:"sources_by_system"`
	Files           map[string]string `json:"files"`
	ElapsedMS       int64             `json:"elapsed_ms"`
}

// GraphOutput is the JSON form of a built graph site.
type GraphOutput struct {
	Nodes    int    `json:"nodes"`
	Edges    int    `json:"edges"`
	HTMLPath string `json:"html_path"`
	PNGPath  string `json:"png_path"`
}

// LoadOutput is the JSON form of a graph or warehouse load.
type LoadOutput struct {
	Target      string `json:"target"`
	Datasources int    `json:"datasources"`
	Skipped     int    `json:"skipped"`
	Projects    int    `json:"projects"`
	Edges       int    `json:"edges"`
}

// LineageOutput is the JSON form of an asset's lineage.
type LineageOutput struct {
	Root       string        `json:"root"`
	Nodes      []LineageNode `json:"nodes"`
	Edges      []LineageEdge `json:"edges"`
	Upstream   []string      `json:"upstream"`
	Downstream []string      `json:"downstream"`
	Stats      LineageStats  `json:"stats"`
}

// LineageNode is an asset in a lineage result.
type LineageNode struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"` // "source" when declared in a manifest, else "asset"
	System   string   `json:"system,omitempty"`
	Projects []string `json:"projects,omitempty"`
}

// LineageEdge is a src→dst edge in a lineage result.
type LineageEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// LineageStats summarises a lineage result.
type LineageStats struct {
	TotalNodes      int `json:"total_nodes"`
	UpstreamCount   int `json:"upstream_count"`
	DownstreamCount int `json:"downstream_count"`
}

// DAGOutput is the JSON form of the lineage layers.
type DAGOutput struct {
	Levels      []DAGLevel `json:"levels"`
	TotalAssets int        `json:"total_assets"`
	TotalEdges  int        `json:"total_edges"`
}

// DAGLevel is one lineage layer. Level 0 holds pure sources.
type DAGLevel struct {
	Level  int       `json:"level"`
	Assets []DAGNode `json:"assets"`
}

// DAGNode is an asset with its direct neighbours.
type DAGNode struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

// ProjectInfo is one project in list output.
type ProjectInfo struct {
	Repo    string   `json:"repo"`
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Owner   string   `json:"owner"`
	Status  string   `json:"status"`
	Domain  string   `json:"domain"`
	Tags    []string `json:"tags"`
	Sources int      `json:"sources"`
	Edges   int      `json:"edges"`
}

// ListOutput is the JSON form of the project list.
type ListOutput struct {
	Projects []ProjectInfo `json:"projects"`
	Total    int           `json:"total"`
}
