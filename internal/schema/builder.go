package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nathro/autotransform/internal/config"
)

// BuilderFunc constructs a Schema in code. Builders are the programmatic
// alternative to schema JSON files and are resolved by name through the
// schema map.
type BuilderFunc func() (*Schema, error)

var (
	buildersMu sync.RWMutex
	builders   = make(map[string]BuilderFunc)
)

// RegisterBuilder adds a schema builder under the given name.
func RegisterBuilder(name string, fn BuilderFunc) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[name] = fn
}

// BuildSchema constructs a Schema using the named registered builder.
func BuildSchema(name string) (*Schema, error) {
	buildersMu.RLock()
	fn, ok := builders[name]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("schema: unknown schema builder %q: %w", name, config.ErrConfig)
	}
	s, err := fn()
	if err != nil {
		return nil, fmt.Errorf("schema: builder %q: %w", name, err)
	}
	return s, nil
}

// BuilderNames lists the registered schema builders.
func BuilderNames() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
