package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/leaplineage/internal/warehouse"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// configKey is used to store the loaded config in context.
type configKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// EnvPrefix prefixes environment variables read into the config.
const EnvPrefix = "LEAPLINEAGE_"

var configFileNames = []string{"leaplineage.yaml", "leaplineage.yml"}

// legacyEnv maps environment variables used by the old scripts onto config keys.
var legacyEnv = map[string]string{
	"SNOWFLAKE_ACCOUNT":   "warehouse.account",
	"SNOWFLAKE_USER":      "warehouse.user",
	"SNOWFLAKE_PASSWORD":  "warehouse.password",
	"SNOWFLAKE_ROLE":      "warehouse.role",
	"SNOWFLAKE_WAREHOUSE": "warehouse.warehouse",
	"SNOWFLAKE_DATABASE":  "warehouse.database",
	"SNOWFLAKE_SCHEMA":    "warehouse.schema",
	"NEO4J_URI":           "neo4j.uri",
	"NEO4J_USER":          "neo4j.user",
	"NEO4J_PASS":          "neo4j.password",
	"DATASOURCES_PATH":    "datasources_path",
	"LINEAGE_PATH":        "lineage_path",
}

// flagKeys bridges flag names that differ from their config keys.
var flagKeys = map[string]string{
	"state":       "state_path",
	"datasources": "datasources_path",
	"lineage":     "lineage_path",
	"port":        "ui.port",
	"watch":       "ui.watch",
	"refresh":     "ui.refresh",
	"source":      "ui.source",
	"type":        "warehouse.type",
}

// pathFlags are flags holding paths. Their values resolve against the working
// directory, not the project root.
var pathFlags = map[string]bool{
	"repos-dir":   true,
	"output-dir":  true,
	"state":       true,
	"docs-dir":    true,
	"assets-dir":  true,
	"datasources": true,
	"lineage":     true,
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
)

// configFileIn returns the config file inside dir, if any.
func configFileIn(dir string) string {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a leaplineage config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configFileIn(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Directory of an explicit --config file
//  2. Search upward from CWD for leaplineage.yaml
//  3. Current working directory
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
		return filepath.Dir(cfgFile)
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// loadDotEnv loads <root>/.env without overriding the process environment.
func loadDotEnv(root string) error {
	err := godotenv.Load(filepath.Join(root, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// legacyEnvValues collects the set legacy environment variables as config keys.
func legacyEnvValues() map[string]any {
	values := make(map[string]any)
	for name, key := range legacyEnv {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			values[key] = v
		}
	}
	return values
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
}

// LoadConfig loads configuration from defaults, the config file, environment
// variables and flags.
// Precedence (highest to lowest): flags > LEAPLINEAGE_ env > legacy env > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")
	configFileUsed = ""

	projectRoot := inferProjectRoot(cfgFile)
	if err := loadDotEnv(projectRoot); err != nil {
		return nil, err
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile != "" {
		configFileUsed = cfgFile
	} else {
		configFileUsed = configFileIn(projectRoot)
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Legacy environment variables (SNOWFLAKE_*, NEO4J_*, ...)
	if err := k.Load(confmap.Provider(legacyEnvValues(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load legacy env vars: %w", err)
	}

	// 4. Load environment variables (LEAPLINEAGE_ prefix)
	// Transform: LEAPLINEAGE_NEO4J__URI -> neo4j.uri
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Load flags (highest priority - overrides env vars and config file)
	flagPaths := make(map[string]string)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				// Transform kebab-case to snake_case for config keys
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if pathFlags[f.Name] {
				if abs, err := filepath.Abs(f.Value.String()); err == nil {
					flagPaths[key] = abs
				}
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 6. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	expandSecrets(&cfg)
	resolvePaths(&cfg, flagPaths)
	applyWarehouseDefaults(&cfg.Warehouse)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePaths anchors relative paths. Paths given as flags were already made
// absolute against the working directory.
func resolvePaths(cfg *Config, flagPaths map[string]string) {
	resolve := func(key, value string) string {
		if abs, ok := flagPaths[key]; ok {
			return abs
		}
		return resolvePathRelativeTo(value, cfg.ProjectRoot)
	}

	cfg.ReposDir = resolve("repos_dir", cfg.ReposDir)
	cfg.OutputDir = resolve("output_dir", cfg.OutputDir)
	cfg.DocsDir = resolve("docs_dir", cfg.DocsDir)
	cfg.AssetsDir = resolve("assets_dir", cfg.AssetsDir)
	cfg.StatePath = resolve("state_path", cfg.StatePath)

	if cfg.DatasourcesPath == "" {
		cfg.DatasourcesPath = filepath.Join(cfg.OutputDir, DatasourcesFile)
	} else {
		cfg.DatasourcesPath = resolve("datasources_path", cfg.DatasourcesPath)
	}
	if cfg.LineagePath == "" {
		cfg.LineagePath = filepath.Join(cfg.OutputDir, LineageFile)
	} else {
		cfg.LineagePath = resolve("lineage_path", cfg.LineagePath)
	}

	cfg.Warehouse.Path = resolvePathRelativeTo(cfg.Warehouse.Path, cfg.ProjectRoot)
}

// applyWarehouseDefaults fills the database and schema a dialect expects.
func applyWarehouseDefaults(t *TargetConfig) {
	t.Type = strings.ToLower(t.Type)
	if t.Type == "snowflake" && t.Database == "" {
		t.Database = "METADATA"
	}
	if t.Schema == "" {
		if d, ok := warehouse.Get(t.Type); ok {
			t.Schema = d.DefaultSchema
		}
	}
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig returns a context carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the config stored by WithConfig, or nil.
func FromContext(ctx context.Context) *Config {
	if ctx == nil {
		return nil
	}
	cfg, _ := ctx.Value(configKey{}).(*Config)
	return cfg
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandSecrets expands environment variables in secret-bearing fields.
func expandSecrets(cfg *Config) {
	cfg.Neo4j.URI = expandEnvVars(cfg.Neo4j.URI)
	cfg.Neo4j.User = expandEnvVars(cfg.Neo4j.User)
	cfg.Neo4j.Password = expandEnvVars(cfg.Neo4j.Password)

	t := &cfg.Warehouse
	t.Account = expandEnvVars(t.Account)
	t.User = expandEnvVars(t.User)
	t.Password = expandEnvVars(t.Password)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	t.Path = expandEnvVars(t.Path)
}
