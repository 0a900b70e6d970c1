// Package snowflake registers the Snowflake warehouse dialect.
//
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/leapstack-labs/leaplineage/internal/warehouse/snowflake"
package snowflake

import (
	"fmt"

	"github.com/snowflakedb/gosnowflake"

	"github.com/leapstack-labs/leaplineage/internal/warehouse"
)

// Defaults for the metadata location.
const (
	DefaultDatabase = "METADATA"
	DefaultSchema   = "LINEAGE"
)

func init() {
	warehouse.Register("snowflake", Dialect())
}

// Dialect returns the Snowflake dialect.
func Dialect() warehouse.Dialect {
	return warehouse.Dialect{
		Name:          "snowflake",
		DriverName:    "snowflake",
		DefaultSchema: DefaultSchema,
		DSN:           DSN,
		Placeholder:   warehouse.QuestionPlaceholder,
		TextType:      "STRING",
		JSONType:      "VARIANT",
		MergeProjects: true,
	}
}

// DSN builds a gosnowflake connection string.
func DSN(cfg warehouse.TargetConfig) (string, error) {
	if cfg.Account == "" || cfg.User == "" {
		return "", fmt.Errorf("snowflake requires warehouse.account and warehouse.user")
	}

	database := cfg.Database
	if database == "" {
		database = DefaultDatabase
	}
	schema := cfg.Schema
	if schema == "" {
		schema = DefaultSchema
	}

	sfCfg := &gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Role:      cfg.Role,
		Warehouse: cfg.Warehouse,
		Database:  database,
		Schema:    schema,
	}
	return gosnowflake.DSN(sfCfg)
}
