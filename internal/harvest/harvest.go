// Package harvest flattens repository manifests into the deduplicated
// datasources and lineage tables.
package harvest

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leaplineage/internal/manifest"
)

type sourceKey struct {
	repo   string
	via    string
	name   string
	system string
	typ    string
	url    string
}

type edgeKey struct {
	repo string
	src  string
	dst  string
}

// Flatten builds the datasources and lineage tables from manifest records.
// Records are expected in repository order; rows are sorted before return.
func Flatten(records []manifest.Record) *Result {
	res := &Result{
		Datasources: []Datasource{},
		Lineage:     []Lineage{},
		Projects:    make([]ProjectRow, 0, len(records)),
		Repos:       len(records),
	}

	seen := make(map[sourceKey]struct{})
	seenEdges := make(map[edgeKey]struct{})
	// repo -> source names already emitted for that repo
	names := make(map[string]map[string]struct{})

	for _, rec := range records {
		m := rec.Manifest
		if m == nil {
			m = &manifest.Manifest{}
		}
		repo := rec.Repo
		key := m.Project.KeyOr(repo)
		name := m.Project.NameOr(repo)

		res.Projects = append(res.Projects, newProject(repo, key, name, m))

		if names[repo] == nil {
			names[repo] = make(map[string]struct{})
		}

		for _, src := range m.DataAssets.Sources {
			row := Datasource{
				Repo:          repo,
				ProjectKey:    key,
				ProjectName:   name,
				DiscoveredVia: ViaDataAssets,
				SourceName:    Opt(src.Name),
				System:        Opt(src.System),
				Type:          Opt(src.Type),
				URL:           Opt(src.Link()),
			}
			k := sourceKey{repo, ViaDataAssets, row.SourceName.String(), row.System.String(), row.Type.String(), row.URL.String()}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			names[repo][row.SourceName.String()] = struct{}{}
			res.Datasources = append(res.Datasources, row)
		}

		for _, e := range m.Lineage.Edges {
			srcName := strings.TrimSpace(e.From)
			if srcName != "" {
				k := sourceKey{repo: repo, via: ViaLineage, name: srcName}
				if _, dup := seen[k]; !dup {
					if _, declared := names[repo][srcName]; !declared {
						seen[k] = struct{}{}
						names[repo][srcName] = struct{}{}
						res.Datasources = append(res.Datasources, Datasource{
							Repo:          repo,
							ProjectKey:    key,
							ProjectName:   name,
							DiscoveredVia: ViaLineage,
							SourceName:    Optional(srcName),
						})
					}
				}
			}

			dst := strings.TrimSpace(e.To)
			if srcName == "" || dst == "" {
				continue
			}
			ek := edgeKey{repo, srcName, dst}
			if _, dup := seenEdges[ek]; dup {
				continue
			}
			seenEdges[ek] = struct{}{}
			res.Lineage = append(res.Lineage, Lineage{
				Repo:        repo,
				ProjectKey:  key,
				ProjectName: name,
				Src:         srcName,
				Dst:         dst,
				Tool:        Opt(e.Tool),
				Frequency:   Opt(e.Frequency),
				Description: Opt(e.Description),
			})
		}
	}

	sort.SliceStable(res.Datasources, func(i, j int) bool {
		a, b := res.Datasources[i], res.Datasources[j]
		if a.Repo != b.Repo {
			return a.Repo < b.Repo
		}
		if a.SourceName != b.SourceName {
			return a.SourceName < b.SourceName
		}
		return a.DiscoveredVia < b.DiscoveredVia
	})
	sort.SliceStable(res.Lineage, func(i, j int) bool {
		a, b := res.Lineage[i], res.Lineage[j]
		if a.Repo != b.Repo {
			return a.Repo < b.Repo
		}
		if a.Src != b.Src {
			return a.Src < b.Src
		}
		return a.Dst < b.Dst
	})

	return res
}

func newProject(repo, key, name string, m *manifest.Manifest) ProjectRow {
	p := ProjectRow{
		Repo:   repo,
		Key:    key,
		Name:   name,
		Owner:  strings.TrimSpace(m.Project.Owner),
		Status: strings.TrimSpace(m.Project.Status),
		Domain: strings.TrimSpace(m.Project.Domain),
		Tags:   m.Project.Tags,
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	for _, c := range m.Connections() {
		p.Connections = append(p.Connections, Connection(c))
	}
	for _, e := range m.Lineage.Edges {
		p.Edges = append(p.Edges, Edge(e))
	}
	return p
}

// Harvester reads manifests and flattens them.
type Harvester struct {
	reader *manifest.Reader
	logger *slog.Logger
}

// New creates a Harvester over the given manifest reader.
func New(reader *manifest.Reader, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Harvester{reader: reader, logger: logger}
}

// Run reads every manifest and returns the flattened tables.
func (h *Harvester) Run(ctx context.Context) (*Result, error) {
	records, err := h.reader.Read(ctx)
	if err != nil {
		return nil, err
	}

	res := Flatten(records)
	h.logger.Info("harvest complete",
		slog.Int("repos", len(records)),
		slog.Int("sources", len(res.Datasources)),
		slog.Int("edges", len(res.Lineage)),
	)
	return res, nil
}
