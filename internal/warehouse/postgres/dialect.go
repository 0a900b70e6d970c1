// Package postgres registers the PostgreSQL warehouse dialect.
//
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/leapstack-labs/leaplineage/internal/warehouse/postgres"
package postgres

import (
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/leapstack-labs/leaplineage/internal/warehouse"
)

func init() {
	warehouse.Register("postgres", Dialect())
}

// Dialect returns the PostgreSQL dialect.
func Dialect() warehouse.Dialect {
	return warehouse.Dialect{
		Name:          "postgres",
		DriverName:    "pgx",
		DefaultSchema: "public",
		DSN:           DSN,
		Placeholder:   warehouse.DollarPlaceholder,
		TextType:      "TEXT",
		JSONType:      "TEXT",
	}
}

// DSN builds a key=value connection string. Every value is single-quoted
// so spaces, quotes and backslashes survive libpq parsing.
func DSN(cfg warehouse.TargetConfig) (string, error) {
	if cfg.Database == "" {
		return "", fmt.Errorf("postgres requires warehouse.database")
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	pairs := []string{
		"host=" + quote(host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + quote(cfg.Database),
		"sslmode=" + quote(sslmode),
	}
	if cfg.User != "" {
		pairs = append(pairs, "user="+quote(cfg.User))
	}
	if cfg.Password != "" {
		pairs = append(pairs, "password="+quote(cfg.Password))
	}
	if cfg.Schema != "" {
		pairs = append(pairs, "search_path="+quote(cfg.Schema))
	}
	dsn := strings.Join(pairs, " ")
	return dsn, nil
}

var quoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(v string) string {
	return "'" + quoter.Replace(v) + "'"
}
