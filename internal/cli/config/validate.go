package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/leaplineage/internal/warehouse"
)

// ParseLogLevel maps a log_level value to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q: use debug, info, warn or error", level)
	}
	return l, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ReposDir == "" {
		return fmt.Errorf("repos_dir is required")
	}
	if c.ManifestName == "" {
		return fmt.Errorf("manifest_name is required")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if !warehouse.IsRegistered(c.Warehouse.Type) {
		return &warehouse.UnknownTypeError{Type: c.Warehouse.Type, Available: warehouse.List()}
	}
	switch c.UI.Source {
	case SourceState, SourceWarehouse:
	default:
		return fmt.Errorf("invalid ui.source %q: use %s or %s", c.UI.Source, SourceState, SourceWarehouse)
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.ReposDir); os.IsNotExist(err) {
		return fmt.Errorf("repos directory does not exist: %s\nHint: Create the directory or use --repos-dir to specify a different path", c.ReposDir)
	}
	return nil
}
