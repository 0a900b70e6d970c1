// Package duckdb registers the DuckDB warehouse dialect.
//
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/leapstack-labs/leaplineage/internal/warehouse/duckdb"
package duckdb

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/leaplineage/internal/warehouse"
)

func init() {
	warehouse.Register("duckdb", Dialect())
}

// Dialect returns the DuckDB dialect.
func Dialect() warehouse.Dialect {
	return warehouse.Dialect{
		Name:          "duckdb",
		DriverName:    "duckdb",
		DefaultSchema: "main",
		DSN:           DSN,
		Placeholder:   warehouse.QuestionPlaceholder,
		TextType:      "VARCHAR",
		JSONType:      "VARCHAR",
	}
}

// DSN returns the database file path, creating its parent directory. Use
// ":memory:" or leave it empty for an in-memory database.
func DSN(cfg warehouse.TargetConfig) (string, error) {
	if cfg.Path == "" || cfg.Path == ":memory:" {
		return ":memory:", nil
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("failed to create directory for %s: %w", cfg.Path, err)
		}
	}
	return cfg.Path, nil
}
