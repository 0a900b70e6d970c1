package warehouse

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// TargetConfig holds warehouse connection settings. Which fields matter
// depends on the dialect.
type TargetConfig struct {
	Type      string            `koanf:"type"`
	Account   string            `koanf:"account"`
	User      string            `koanf:"user"`
	Password  string            `koanf:"password"`
	Role      string            `koanf:"role"`
	Warehouse string            `koanf:"warehouse"`
	Database  string            `koanf:"database"`
	Schema    string            `koanf:"schema"`
	Host      string            `koanf:"host"`
	Port      int               `koanf:"port"`
	Path      string            `koanf:"path"`
	Options   map[string]string `koanf:"options"`
}

// Dialect describes how one warehouse is reached and spoken to.
type Dialect struct {
	// Name is the registry key and the value of warehouse.type.
	Name string
	// DriverName is the database/sql driver to open.
	DriverName string
	// DefaultSchema applies when the target does not set one.
	DefaultSchema string
	// DSN builds the driver connection string from the target.
	DSN func(TargetConfig) (string, error)
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder func(n int) string
	// TextType and JSONType are the column types used in CREATE TABLE.
	TextType string
	JSONType string
	// MergeProjects upserts PROJECTS with a single MERGE over PARSE_JSON.
	// When false the row is deleted and re-inserted.
	MergeProjects bool
}

// QuestionPlaceholder binds with ?.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder binds with $1, $2, ...
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Dialect)
)

// Register adds a dialect to the registry.
// Called by dialect packages in their init() functions.
func Register(name string, d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if d.Name == "" {
		d.Name = name
	}
	registry[name] = d
}

// Get retrieves a dialect by name.
func Get(name string) (Dialect, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[name]
	return d, ok
}

// List returns all registered dialect names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a warehouse type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownTypeError is returned when an unknown warehouse type is requested.
type UnknownTypeError struct {
	Type      string
	Available []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown warehouse type %q\nAvailable warehouses: %v\nHint: Check your warehouse.type in leaplineage.yaml", e.Type, e.Available)
}
