package transformer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/scripting"
)

// ScriptTransformer makes changes by invoking a script. Sentinel values in
// args are replaced per the scripting package's contract: <<KEY>>,
// <<EXTRA_DATA>>, <<METADATA>>, and their _FILE variants.
type ScriptTransformer struct {
	// Script is the executable to run.
	Script string `json:"script"`

	// Args are the arguments, possibly containing sentinel tokens.
	Args []string `json:"args"`

	// TimeoutSeconds bounds each invocation. Zero means no deadline.
	TimeoutSeconds int `json:"timeout,omitempty"`

	// PerItem invokes the script once per Item instead of once per Batch.
	PerItem bool `json:"per_item,omitempty"`
}

// ComponentName identifies the component in bundles.
func (t *ScriptTransformer) ComponentName() string { return "script" }

func (t *ScriptTransformer) validate() error {
	if t.Script == "" {
		return fmt.Errorf("transformer: script must not be empty: %w", config.ErrConfig)
	}
	return nil
}

// Transform runs the script against the Batch, either once for the whole
// Batch or once per Item. A non-zero exit propagates as an error.
func (t *ScriptTransformer) Transform(ctx context.Context, b batch.Batch) (any, error) {
	if t.PerItem {
		for _, it := range b.Items {
			repl, err := scripting.ItemReplacements(it, b.Metadata)
			if err != nil {
				return nil, err
			}
			if err := t.invoke(ctx, repl); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	repl, err := scripting.BatchReplacements(b)
	if err != nil {
		return nil, err
	}
	return nil, t.invoke(ctx, repl)
}

func (t *ScriptTransformer) invoke(ctx context.Context, repl map[string]string) error {
	args, cleanup, err := scripting.Substitute(t.Args, repl)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := scripting.Run(ctx, t.Script, args, time.Duration(t.TimeoutSeconds)*time.Second)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("transformer: %s exited %d: %s",
			t.Script, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}
