package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/nathro/autotransform/internal/config"
)

// MapFileName is the file holding the schema map within the schema directory.
const MapFileName = "schema_map.json"

// TargetType discriminates schema map entries.
type TargetType string

// Schema map target types.
const (
	// TargetFile points at a schema bundle JSON file.
	TargetFile TargetType = "file"

	// TargetBuilder names a registered schema builder.
	TargetBuilder TargetType = "builder"
)

// MapEntry resolves one schema name.
type MapEntry struct {
	Type   TargetType `json:"type"`
	Target string     `json:"target"`
}

// Map resolves schema names to Schemas, from either bundle files or
// registered builders.
type Map struct {
	dir     string
	entries map[string]MapEntry
}

// SchemaDirectory resolves the directory holding schemas and the schema map:
// the AUTO_TRANSFORM_SCHEMA_DIRECTORY environment variable, then the config
// setting, then "<repo config path>/schemas".
func SchemaDirectory(cfg *config.Config) string {
	if dir := os.Getenv(config.EnvSchemaDirectory); dir != "" {
		return dir
	}
	if cfg != nil && cfg.SchemaDirectory != "" {
		return cfg.SchemaDirectory
	}
	return filepath.Join(config.RepoConfigRelativePath(), "schemas")
}

// LoadMap reads the schema map from the given directory. A missing map file
// yields an empty map.
func LoadMap(dir string) (*Map, error) {
	m := &Map{dir: dir, entries: make(map[string]MapEntry)}
	path := filepath.Join(dir, MapFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("schema: reading schema map %s: %w (%w)", path, err, config.ErrConfig)
	}
	if err := json.Unmarshal(data, &m.entries); err != nil {
		return nil, fmt.Errorf("schema: parsing schema map %s: %w (%w)", path, err, config.ErrConfig)
	}
	for name, entry := range m.entries {
		if entry.Type != TargetFile && entry.Type != TargetBuilder {
			return nil, fmt.Errorf("schema: schema map entry %q has unknown type %q: %w",
				name, entry.Type, config.ErrConfig)
		}
	}
	return m, nil
}

// Names lists the schemas in the map, sorted.
func (m *Map) Names() []string {
	out := make([]string, 0, len(m.entries))
	for name := range m.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether the map resolves the given schema name.
func (m *Map) Contains(name string) bool {
	_, ok := m.entries[name]
	return ok
}

// Get resolves a schema name to a fresh Schema value.
func (m *Map) Get(name string) (*Schema, error) {
	entry, ok := m.entries[name]
	if !ok {
		return nil, fmt.Errorf("schema: %q not in schema map: %w", name, config.ErrConfig)
	}
	switch entry.Type {
	case TargetBuilder:
		return BuildSchema(entry.Target)
	case TargetFile:
		path := entry.Target
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("schema: reading schema %s: %w (%w)", path, err, config.ErrConfig)
		}
		return FromBundle(data)
	default:
		return nil, fmt.Errorf("schema: schema map entry %q has unknown type %q: %w",
			name, entry.Type, config.ErrConfig)
	}
}
