// Package manifest reads the per-repository project.yaml files that declare
// project metadata, data sources and lineage edges.
package manifest

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the manifest file looked up in every repository directory.
const DefaultFileName = "project.yaml"

// Manifest is the decoded content of a project.yaml file.
type Manifest struct {
	Project    Project        `mapstructure:"project"`
	DataAssets DataAssets     `mapstructure:"data_assets"`
	Lineage    Lineage        `mapstructure:"lineage"`
	Stack      map[string]any `mapstructure:"stack"`
}

// Project holds the project block of a manifest.
type Project struct {
	Key    string   `mapstructure:"key" json:"key,omitempty"`
	Name   string   `mapstructure:"name" json:"name,omitempty"`
	Owner  string   `mapstructure:"owner" json:"owner,omitempty"`
	Status string   `mapstructure:"status" json:"status,omitempty"`
	Domain string   `mapstructure:"domain" json:"domain,omitempty"`
	Tags   []string `mapstructure:"tags" json:"tags"`
}

// DataAssets holds the data_assets block of a manifest.
type DataAssets struct {
	Sources []Source `mapstructure:"sources"`
}

// Source is one declared data source.
type Source struct {
	Name   string `mapstructure:"name"`
	System string `mapstructure:"system"`
	Type   string `mapstructure:"type"`
	URL    string `mapstructure:"url"`
	URI    string `mapstructure:"uri"`
}

// Lineage holds the lineage block of a manifest.
type Lineage struct {
	Edges []Edge `mapstructure:"edges"`
}

// Edge is one declared src -> dst flow.
type Edge struct {
	From        string `mapstructure:"from"`
	To          string `mapstructure:"to"`
	Tool        string `mapstructure:"tool"`
	Frequency   string `mapstructure:"frequency"`
	Description string `mapstructure:"description"`
}

// Connection is a scalar property of a tool listed under the stack block.
type Connection struct {
	Tool  string
	Prop  string
	Value string
}

// Record pairs a manifest with the repository directory it was read from.
type Record struct {
	Repo     string
	Manifest *Manifest
}

// Link returns the source location, preferring url over uri.
func (s Source) Link() string {
	if u := strings.TrimSpace(s.URL); u != "" {
		return u
	}
	return strings.TrimSpace(s.URI)
}

// KeyOr returns the project key, or fallback when the key is empty.
func (p Project) KeyOr(fallback string) string {
	if k := strings.TrimSpace(p.Key); k != "" {
		return k
	}
	return fallback
}

// NameOr returns the project name, or fallback when the name is empty.
func (p Project) NameOr(fallback string) string {
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	return fallback
}

// Parse decodes manifest YAML. Scalars are coerced to strings, so `key: 42`
// and `key: "42"` decode the same way. An empty document yields an empty manifest.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	m := &Manifest{}
	if raw == nil {
		return m, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       scalarToStringHook,
		WeaklyTypedInput: true,
		Result:           m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	return m, nil
}

// Connections flattens the stack block into tool/prop/value triples.
// Tools whose config is not a mapping are ignored, as are the "used" flag
// and non-scalar values. Output is sorted by tool, then prop.
func (m *Manifest) Connections() []Connection {
	if m == nil || len(m.Stack) == 0 {
		return nil
	}

	tools := make([]string, 0, len(m.Stack))
	for tool := range m.Stack {
		tools = append(tools, tool)
	}
	sort.Strings(tools)

	var conns []Connection
	for _, tool := range tools {
		cfg, ok := m.Stack[tool].(map[string]any)
		if !ok {
			continue
		}

		props := make([]string, 0, len(cfg))
		for prop := range cfg {
			props = append(props, prop)
		}
		sort.Strings(props)

		for _, prop := range props {
			if prop == "used" {
				continue
			}
			value, ok := scalarString(cfg[prop])
			if !ok {
				continue
			}
			conns = append(conns, Connection{Tool: tool, Prop: prop, Value: value})
		}
	}
	return conns
}

// scalarToStringHook formats scalars bound for string fields the same way
// Connections does, so `name: true` decodes as "true" rather than "1".
func scalarToStringHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String || from.Kind() == reflect.String {
		return data, nil
	}
	if s, ok := scalarString(data); ok {
		return s, nil
	}
	return data, nil
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}
