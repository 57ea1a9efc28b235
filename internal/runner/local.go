package runner

import (
	"context"
	"fmt"

	"github.com/nathro/autotransform/internal/schema"
)

// LocalRunner executes the pipeline in-process.
type LocalRunner struct{}

// ComponentName identifies the component in bundles.
func (r *LocalRunner) ComponentName() string { return "local" }

// Run fully executes the Schema in-process.
func (r *LocalRunner) Run(ctx context.Context, s *schema.Schema) error {
	return s.Run(ctx)
}

// Update re-executes the pipeline for the Change's batch using the Schema
// recovered from the change body. When the refresh produces no new work the
// pipeline abandons the Change.
func (r *LocalRunner) Update(ctx context.Context, ch schema.Change) error {
	s, err := ch.Schema()
	if err != nil {
		return fmt.Errorf("runner: recovering schema for %s: %w", ch, err)
	}
	b, err := ch.Batch()
	if err != nil {
		return fmt.Errorf("runner: recovering batch for %s: %w", ch, err)
	}
	_, err = s.ExecuteBatch(ctx, b, ch)
	return err
}
