// Package step provides the declarative management rules applied to
// outstanding Changes: Steps pair a Condition over a Change with the Actions
// to take when it passes.
package step

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/schema"
)

// Condition is a predicate over a Change.
type Condition interface {
	schema.Component
	Check(ctx context.Context, ch schema.Change) (bool, error)
}

// Runner triggers pipeline re-execution for a Change; the update action
// delegates to it. The management loop wires the configured runner in before
// a pass.
type Runner interface {
	Update(ctx context.Context, ch schema.Change) error
}

// Action is one operation performed on a Change. A nil error is success;
// failures are reported and do not abort the management pass.
type Action interface {
	schema.Component
	Run(ctx context.Context, ch schema.Change) error
}

// Step decides which Actions to take for a Change and whether later Steps
// still apply.
type Step interface {
	schema.Component

	// GetActions returns the Actions to run for the Change, possibly none.
	GetActions(ctx context.Context, ch schema.Change) ([]Action, error)

	// ContinueManagement reports whether later Steps may still process the
	// Change after this Step returned actions.
	ContinueManagement(ch schema.Change) bool

	// SetRunner hands the configured runner to actions that need one.
	SetRunner(r Runner)
}

// Decoder registries for steps, conditions, and actions. Mirrors the schema
// component registries; kept separate because steps are management-side
// components that never appear in schema bundles.
var (
	mu                sync.RWMutex
	conditionDecoders = make(map[string]func(json.RawMessage) (Condition, error))
	actionDecoders    = make(map[string]func(json.RawMessage) (Action, error))
	stepDecoders      = make(map[string]func(json.RawMessage) (Step, error))
)

// RegisterCondition adds a condition decoder under the given name.
func RegisterCondition(name string, fn func(json.RawMessage) (Condition, error)) {
	mu.Lock()
	defer mu.Unlock()
	conditionDecoders[name] = fn
}

// RegisterAction adds an action decoder under the given name.
func RegisterAction(name string, fn func(json.RawMessage) (Action, error)) {
	mu.Lock()
	defer mu.Unlock()
	actionDecoders[name] = fn
}

// RegisterStep adds a step decoder under the given name.
func RegisterStep(name string, fn func(json.RawMessage) (Step, error)) {
	mu.Lock()
	defer mu.Unlock()
	stepDecoders[name] = fn
}

func decodeWith[T any](kind string, decoders map[string]func(json.RawMessage) (T, error), bundle json.RawMessage) (T, error) {
	var zero T
	var header struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(bundle, &header); err != nil {
		return zero, fmt.Errorf("step: decoding %s bundle: %w (%w)", kind, err, config.ErrConfig)
	}
	mu.RLock()
	fn, ok := decoders[header.Name]
	mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("step: unknown %s component %q: %w", kind, header.Name, config.ErrConfig)
	}
	decoded, err := fn(bundle)
	if err != nil {
		return zero, fmt.Errorf("step: decoding %s %q: %w", kind, header.Name, err)
	}
	return decoded, nil
}

// DecodeCondition decodes a condition bundle.
func DecodeCondition(bundle json.RawMessage) (Condition, error) {
	return decodeWith("condition", conditionDecoders, bundle)
}

// DecodeAction decodes an action bundle.
func DecodeAction(bundle json.RawMessage) (Action, error) {
	return decodeWith("action", actionDecoders, bundle)
}

// DecodeStep decodes a step bundle.
func DecodeStep(bundle json.RawMessage) (Step, error) {
	return decodeWith("step", stepDecoders, bundle)
}

// ConditionalStep runs its actions when its condition passes. Once actions
// are taken, later steps are skipped unless ContinueIfPassed is set.
type ConditionalStep struct {
	Condition        Condition `json:"-"`
	Actions          []Action  `json:"-"`
	ContinueIfPassed bool      `json:"continue_if_passed,omitempty"`
}

// ComponentName identifies the component in bundles.
func (s *ConditionalStep) ComponentName() string { return "conditional" }

// GetActions returns the step's actions when the condition passes.
func (s *ConditionalStep) GetActions(ctx context.Context, ch schema.Change) ([]Action, error) {
	passed, err := s.Condition.Check(ctx, ch)
	if err != nil {
		return nil, err
	}
	if !passed {
		return nil, nil
	}
	return s.Actions, nil
}

// ContinueManagement reports whether later steps still run after this one
// matched.
func (s *ConditionalStep) ContinueManagement(schema.Change) bool {
	return s.ContinueIfPassed
}

// SetRunner forwards the runner to actions that need one.
func (s *ConditionalStep) SetRunner(r Runner) {
	for _, a := range s.Actions {
		if setter, ok := a.(interface{ SetRunner(Runner) }); ok {
			setter.SetRunner(r)
		}
	}
}

// conditionalStepBundle is the JSON shape of a ConditionalStep.
type conditionalStepBundle struct {
	Name             string            `json:"name"`
	Condition        json.RawMessage   `json:"condition"`
	Actions          []json.RawMessage `json:"actions"`
	ContinueIfPassed bool              `json:"continue_if_passed,omitempty"`
}

// MarshalJSON bundles the step with its nested condition and actions.
func (s *ConditionalStep) MarshalJSON() ([]byte, error) {
	b := conditionalStepBundle{
		Name:             s.ComponentName(),
		ContinueIfPassed: s.ContinueIfPassed,
	}
	var err error
	if b.Condition, err = schema.EncodeComponent(s.Condition); err != nil {
		return nil, err
	}
	for _, a := range s.Actions {
		encoded, err := schema.EncodeComponent(a)
		if err != nil {
			return nil, err
		}
		b.Actions = append(b.Actions, encoded)
	}
	return json.Marshal(b)
}

func init() {
	RegisterStep("conditional", func(data json.RawMessage) (Step, error) {
		var b conditionalStepBundle
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		if len(b.Condition) == 0 {
			return nil, fmt.Errorf("step: conditional step requires a condition: %w", config.ErrConfig)
		}
		s := &ConditionalStep{ContinueIfPassed: b.ContinueIfPassed}
		var err error
		if s.Condition, err = DecodeCondition(b.Condition); err != nil {
			return nil, err
		}
		for _, raw := range b.Actions {
			a, err := DecodeAction(raw)
			if err != nil {
				return nil, err
			}
			s.Actions = append(s.Actions, a)
		}
		return s, nil
	})
}
