package harvest

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Discovery channels for datasource rows.
const (
	ViaDataAssets = "data_assets"
	ViaLineage    = "lineage"
)

// Optional is a string column that is written as JSON null when empty.
type Optional string

// Opt builds an Optional from a raw value, trimming whitespace.
func Opt(s string) Optional {
	return Optional(strings.TrimSpace(s))
}

// String returns the column value, empty for null.
func (o Optional) String() string {
	return string(o)
}

// IsNull reports whether the column is null.
func (o Optional) IsNull() bool {
	return o == ""
}

// MarshalJSON implements json.Marshaler. The string is not HTML-escaped;
// the calling encoder applies its own escaping setting when compacting.
func (o Optional) MarshalJSON() ([]byte, error) {
	if o == "" {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(string(o)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Optional(s)
	return nil
}

// Datasource is one row of the datasources table.
type Datasource struct {
	Repo          string   `json:"repo"`
	ProjectKey    string   `json:"project_key"`
	ProjectName   string   `json:"project_name"`
	DiscoveredVia string   `json:"discovered_via"`
	SourceName    Optional `json:"source_name"`
	System        Optional `json:"system"`
	Type          Optional `json:"type"`
	URL           Optional `json:"url"`
	Notes         string   `json:"notes"`
}

// Lineage is one row of the lineage table.
type Lineage struct {
	Repo        string   `json:"repo"`
	ProjectKey  string   `json:"project_key"`
	ProjectName string   `json:"project_name"`
	Src         string   `json:"src"`
	Dst         string   `json:"dst"`
	Tool        Optional `json:"tool"`
	Frequency   Optional `json:"frequency"`
	Description Optional `json:"description"`
	Notes       string   `json:"notes"`
}

// ProjectRow is the per-repository project summary kept alongside the tables.
type ProjectRow struct {
	Repo        string
	Key         string
	Name        string
	Owner       string
	Status      string
	Domain      string
	Tags        []string
	Connections []Connection
	Edges       []Edge
}

// Connection is a tool property from the manifest stack block.
type Connection struct {
	Tool  string
	Prop  string
	Value string
}

// Edge is a raw manifest edge as declared, before filtering.
type Edge struct {
	From        string
	To          string
	Tool        string
	Frequency   string
	Description string
}

// Result is the output of one harvest.
type Result struct {
	Projects    []ProjectRow
	Datasources []Datasource
	Lineage     []Lineage
	Repos       int
}
