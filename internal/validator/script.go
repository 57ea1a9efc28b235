// Package validator provides the built-in Validator components that check
// transformed Batches.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/schema"
	"github.com/nathro/autotransform/internal/scripting"
)

func init() {
	schema.RegisterValidator("script", func(data json.RawMessage) (schema.Validator, error) {
		var v ScriptValidator
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return &v, v.validate()
	})
}

// ScriptValidator validates a Batch by invoking a script. A non-zero exit
// maps to the validator's declared failure level; the script's output becomes
// the result message. Sentinel values in args follow the scripting package's
// contract.
type ScriptValidator struct {
	// Script is the executable to run.
	Script string `json:"script"`

	// Args are the arguments, possibly containing sentinel tokens.
	Args []string `json:"args"`

	// TimeoutSeconds bounds each invocation. Zero means no deadline.
	TimeoutSeconds int `json:"timeout,omitempty"`

	// PerItem invokes the script once per Item; the worst result wins.
	PerItem bool `json:"per_item,omitempty"`

	// FailureLevel is the level reported when the script exits non-zero.
	// Defaults to error.
	FailureLevel schema.ValidationLevel `json:"failure_level,omitempty"`
}

// ComponentName identifies the component in bundles.
func (v *ScriptValidator) ComponentName() string { return "script" }

func (v *ScriptValidator) validate() error {
	if v.Script == "" {
		return fmt.Errorf("validator: script must not be empty: %w", config.ErrConfig)
	}
	if v.FailureLevel != "" {
		if _, err := schema.ParseValidationLevel(string(v.FailureLevel)); err != nil {
			return err
		}
	}
	return nil
}

func (v *ScriptValidator) failureLevel() schema.ValidationLevel {
	if v.FailureLevel == "" {
		return schema.ValidationLevelError
	}
	return v.FailureLevel
}

// Validate runs the script and maps its exit status to a ValidationResult.
func (v *ScriptValidator) Validate(ctx context.Context, b batch.Batch, _ any) (schema.ValidationResult, error) {
	passed := schema.ValidationResult{Level: schema.ValidationLevelNone, Validator: v.ComponentName()}

	if v.PerItem {
		for _, it := range b.Items {
			repl, err := scripting.ItemReplacements(it, b.Metadata)
			if err != nil {
				return schema.ValidationResult{}, err
			}
			result, err := v.invoke(ctx, repl)
			if err != nil {
				return schema.ValidationResult{}, err
			}
			if result.Level != schema.ValidationLevelNone {
				return result, nil
			}
		}
		return passed, nil
	}

	repl, err := scripting.BatchReplacements(b)
	if err != nil {
		return schema.ValidationResult{}, err
	}
	return v.invoke(ctx, repl)
}

func (v *ScriptValidator) invoke(ctx context.Context, repl map[string]string) (schema.ValidationResult, error) {
	args, cleanup, err := scripting.Substitute(v.Args, repl)
	if err != nil {
		return schema.ValidationResult{}, err
	}
	defer cleanup()

	result, err := scripting.Run(ctx, v.Script, args, time.Duration(v.TimeoutSeconds)*time.Second)
	if err != nil {
		return schema.ValidationResult{}, err
	}
	if result.ExitCode == 0 {
		return schema.ValidationResult{
			Level:     schema.ValidationLevelNone,
			Validator: v.ComponentName(),
		}, nil
	}
	message := strings.TrimSpace(result.Stderr)
	if message == "" {
		message = strings.TrimSpace(result.Stdout)
	}
	return schema.ValidationResult{
		Level:     v.failureLevel(),
		Message:   message,
		Validator: v.ComponentName(),
	}, nil
}
