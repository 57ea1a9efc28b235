// Package command provides the built-in Command components that run
// post-processing around validation.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/item"
	"github.com/nathro/autotransform/internal/schema"
	"github.com/nathro/autotransform/internal/scripting"
)

func init() {
	schema.RegisterCommand("script", func(data json.RawMessage) (schema.Command, error) {
		var c ScriptCommand
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, c.validate()
	})
}

// ScriptCommand runs a script as a pipeline command. Sentinel values in args
// follow the scripting package's contract. With RunOnChanges set, the Batch
// Items are replaced by file Items for the files the current schema's repo
// reports as changed, so formatters and code generators can operate on the
// actual diff.
type ScriptCommand struct {
	// Script is the executable to run.
	Script string `json:"script"`

	// Args are the arguments, possibly containing sentinel tokens.
	Args []string `json:"args"`

	// TimeoutSeconds bounds each invocation. Zero means no deadline.
	TimeoutSeconds int `json:"timeout,omitempty"`

	// PerItem invokes the script once per Item instead of once per Batch.
	PerItem bool `json:"per_item,omitempty"`

	// RunOnChanges replaces the Batch Items with the changed files reported
	// by the schema's repo.
	RunOnChanges bool `json:"run_on_changes,omitempty"`

	// PreValidation runs the command before validators instead of after.
	PreValidation bool `json:"run_pre_validation,omitempty"`
}

// ComponentName identifies the component in bundles.
func (c *ScriptCommand) ComponentName() string { return "script" }

// RunPreValidation reports whether the command runs before validators.
func (c *ScriptCommand) RunPreValidation() bool { return c.PreValidation }

func (c *ScriptCommand) validate() error {
	if c.Script == "" {
		return fmt.Errorf("command: script must not be empty: %w", config.ErrConfig)
	}
	return nil
}

// Run invokes the script for the Batch.
func (c *ScriptCommand) Run(ctx context.Context, b batch.Batch, _ any) error {
	if c.RunOnChanges {
		replaced, err := c.withChangedFiles(ctx, b)
		if err != nil {
			return err
		}
		b = replaced
	}

	if c.PerItem {
		for _, it := range b.Items {
			repl, err := scripting.ItemReplacements(it, b.Metadata)
			if err != nil {
				return err
			}
			if err := c.invoke(ctx, repl); err != nil {
				return err
			}
		}
		return nil
	}

	repl, err := scripting.BatchReplacements(b)
	if err != nil {
		return err
	}
	return c.invoke(ctx, repl)
}

// withChangedFiles swaps the Batch Items for the changed files of the
// current schema's repo.
func (c *ScriptCommand) withChangedFiles(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	current, ok := schema.FromContext(ctx)
	if !ok || current.Repo == nil {
		return batch.Batch{}, fmt.Errorf("command: run_on_changes requires a schema with a repo")
	}
	files, err := current.Repo.GetChangedFiles(ctx, b)
	if err != nil {
		return batch.Batch{}, err
	}
	items := make([]item.Item, 0, len(files))
	for _, f := range files {
		items = append(items, item.NewFile(f))
	}
	return batch.Batch{Title: b.Title, Items: items, Metadata: b.Metadata}, nil
}

func (c *ScriptCommand) invoke(ctx context.Context, repl map[string]string) error {
	args, cleanup, err := scripting.Substitute(c.Args, repl)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := scripting.Run(ctx, c.Script, args, time.Duration(c.TimeoutSeconds)*time.Second)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("command: %s exited %d: %s",
			c.Script, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}
