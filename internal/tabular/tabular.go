// Package tabular writes and reads the datasources and lineage tables as CSV
// and JSON files.
package tabular

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
)

// DatasourceColumns is the column order of the datasources table.
var DatasourceColumns = []string{
	"repo", "project_key", "project_name", "discovered_via",
	"source_name", "system", "type", "url", "notes",
}

// LineageColumns is the column order of the lineage table.
var LineageColumns = []string{
	"repo", "project_key", "project_name", "src", "dst",
	"tool", "frequency", "description", "notes",
}

// ErrNotFound is returned when a table file does not exist.
var ErrNotFound = fmt.Errorf("table not found: %w", fs.ErrNotExist)

// JSONPath returns the .json sibling of a CSV path.
func JSONPath(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".json"
}

func datasourceRecord(r harvest.Datasource) []string {
	return []string{
		r.Repo, r.ProjectKey, r.ProjectName, r.DiscoveredVia,
		r.SourceName.String(), r.System.String(), r.Type.String(), r.URL.String(), r.Notes,
	}
}

func lineageRecord(r harvest.Lineage) []string {
	return []string{
		r.Repo, r.ProjectKey, r.ProjectName, r.Src, r.Dst,
		r.Tool.String(), r.Frequency.String(), r.Description.String(), r.Notes,
	}
}

// WriteDatasources writes the datasources table to csvPath and jsonPath.
// An empty jsonPath skips the JSON copy.
func WriteDatasources(fsys afero.Fs, csvPath, jsonPath string, rows []harvest.Datasource) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = datasourceRecord(r)
	}
	if err := writeCSV(fsys, csvPath, DatasourceColumns, records); err != nil {
		return err
	}
	if jsonPath == "" {
		return nil
	}
	if rows == nil {
		rows = []harvest.Datasource{}
	}
	return writeJSON(fsys, jsonPath, rows)
}

// WriteLineage writes the lineage table to csvPath and jsonPath.
// An empty jsonPath skips the JSON copy.
func WriteLineage(fsys afero.Fs, csvPath, jsonPath string, rows []harvest.Lineage) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = lineageRecord(r)
	}
	if err := writeCSV(fsys, csvPath, LineageColumns, records); err != nil {
		return err
	}
	if jsonPath == "" {
		return nil
	}
	if rows == nil {
		rows = []harvest.Lineage{}
	}
	return writeJSON(fsys, jsonPath, rows)
}

func writeCSV(fsys afero.Fs, path string, header []string, records [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return writeFile(fsys, path, buf.Bytes())
}

func writeJSON(fsys afero.Fs, path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return writeFile(fsys, path, buf.Bytes())
}

func writeFile(fsys afero.Fs, path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadDatasources reads a datasources CSV. Columns are matched by header name.
func ReadDatasources(fsys afero.Fs, path string) ([]harvest.Datasource, error) {
	var rows []harvest.Datasource
	err := readCSV(fsys, path, func(get func(string) string) {
		rows = append(rows, harvest.Datasource{
			Repo:          get("repo"),
			ProjectKey:    get("project_key"),
			ProjectName:   get("project_name"),
			DiscoveredVia: get("discovered_via"),
			SourceName:    harvest.Opt(get("source_name")),
			System:        harvest.Opt(get("system")),
			Type:          harvest.Opt(get("type")),
			URL:           harvest.Opt(get("url")),
			Notes:         get("notes"),
		})
	})
	return rows, err
}

// ReadLineage reads a lineage CSV. Columns are matched by header name, so a
// file with only src,dst headers is accepted.
func ReadLineage(fsys afero.Fs, path string) ([]harvest.Lineage, error) {
	var rows []harvest.Lineage
	err := readCSV(fsys, path, func(get func(string) string) {
		rows = append(rows, harvest.Lineage{
			Repo:        get("repo"),
			ProjectKey:  get("project_key"),
			ProjectName: get("project_name"),
			Src:         strings.TrimSpace(get("src")),
			Dst:         strings.TrimSpace(get("dst")),
			Tool:        harvest.Opt(get("tool")),
			Frequency:   harvest.Opt(get("frequency")),
			Description: harvest.Opt(get("description")),
			Notes:       get("notes"),
		})
	})
	return rows, err
}

func readCSV(fsys afero.Fs, path string, row func(get func(string) string)) error {
	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}

	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s line %d: %w", path, line, err)
		}
		row(func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		})
	}
}
