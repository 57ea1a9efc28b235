package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/nathro/autotransform/internal/config"
)

// Component is implemented by every pluggable engine component. The name
// identifies the concrete implementation in bundles; remaining fields are the
// component's attributes, serialized via struct tags.
type Component interface {
	ComponentName() string
}

// CustomNamePrefix namespaces user-contributed components, keeping them from
// colliding with built-ins.
const CustomNamePrefix = "custom/"

// DecodeFunc turns a component bundle into a typed component. The raw bundle
// includes the name field; decoders may ignore it.
type DecodeFunc[T Component] func(data json.RawMessage) (T, error)

// registry is a name-indexed set of decoders for one component kind.
// Registration normally happens in component package init functions, mirroring
// database/sql driver registration; custom components may be added at any
// point before decoding.
type registry[T Component] struct {
	mu       sync.RWMutex
	kind     string
	decoders map[string]DecodeFunc[T]
}

func newRegistry[T Component](kind string) *registry[T] {
	return &registry[T]{kind: kind, decoders: make(map[string]DecodeFunc[T])}
}

func (r *registry[T]) register(name string, fn DecodeFunc[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[name] = fn
}

func (r *registry[T]) decode(bundle json.RawMessage) (T, error) {
	var zero T
	var header struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(bundle, &header); err != nil {
		return zero, fmt.Errorf("schema: decoding %s bundle: %w (%w)", r.kind, err, config.ErrConfig)
	}
	if header.Name == "" {
		return zero, fmt.Errorf("schema: %s bundle missing name: %w", r.kind, config.ErrConfig)
	}
	r.mu.RLock()
	fn, ok := r.decoders[header.Name]
	r.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("schema: unknown %s component %q: %w", r.kind, header.Name, config.ErrConfig)
	}
	decoded, err := fn(bundle)
	if err != nil {
		return zero, fmt.Errorf("schema: decoding %s %q: %w", r.kind, header.Name, err)
	}
	return decoded, nil
}

func (r *registry[T]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decoders))
	for name := range r.decoders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Per-kind registries. Component packages register their decoders in init.
var (
	inputs       = newRegistry[Input]("input")
	filters      = newRegistry[Filter]("filter")
	batchers     = newRegistry[Batcher]("batcher")
	transformers = newRegistry[Transformer]("transformer")
	validators   = newRegistry[Validator]("validator")
	commands     = newRegistry[Command]("command")
	repos        = newRegistry[Repo]("repo")
)

// RegisterInput adds an input decoder under the given name.
func RegisterInput(name string, fn DecodeFunc[Input]) { inputs.register(name, fn) }

// RegisterFilter adds a filter decoder under the given name.
func RegisterFilter(name string, fn DecodeFunc[Filter]) { filters.register(name, fn) }

// RegisterBatcher adds a batcher decoder under the given name.
func RegisterBatcher(name string, fn DecodeFunc[Batcher]) { batchers.register(name, fn) }

// RegisterTransformer adds a transformer decoder under the given name.
func RegisterTransformer(name string, fn DecodeFunc[Transformer]) { transformers.register(name, fn) }

// RegisterValidator adds a validator decoder under the given name.
func RegisterValidator(name string, fn DecodeFunc[Validator]) { validators.register(name, fn) }

// RegisterCommand adds a command decoder under the given name.
func RegisterCommand(name string, fn DecodeFunc[Command]) { commands.register(name, fn) }

// RegisterRepo adds a repo decoder under the given name.
func RegisterRepo(name string, fn DecodeFunc[Repo]) { repos.register(name, fn) }

// DecodeInput decodes an input component bundle.
func DecodeInput(bundle json.RawMessage) (Input, error) { return inputs.decode(bundle) }

// DecodeFilter decodes a filter component bundle.
func DecodeFilter(bundle json.RawMessage) (Filter, error) { return filters.decode(bundle) }

// DecodeBatcher decodes a batcher component bundle.
func DecodeBatcher(bundle json.RawMessage) (Batcher, error) { return batchers.decode(bundle) }

// DecodeTransformer decodes a transformer component bundle.
func DecodeTransformer(bundle json.RawMessage) (Transformer, error) {
	return transformers.decode(bundle)
}

// DecodeValidator decodes a validator component bundle.
func DecodeValidator(bundle json.RawMessage) (Validator, error) { return validators.decode(bundle) }

// DecodeCommand decodes a command component bundle.
func DecodeCommand(bundle json.RawMessage) (Command, error) { return commands.decode(bundle) }

// DecodeRepo decodes a repo component bundle.
func DecodeRepo(bundle json.RawMessage) (Repo, error) { return repos.decode(bundle) }

// EncodeComponent bundles a component as a JSON object whose name field
// identifies the concrete implementation.
func EncodeComponent(c Component) (json.RawMessage, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("schema: encoding component %q: %w", c.ComponentName(), err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("schema: encoding component %q: %w", c.ComponentName(), err)
	}
	m["name"] = c.ComponentName()
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("schema: encoding component %q: %w", c.ComponentName(), err)
	}
	return out, nil
}
