package schema

import (
	"context"
	"fmt"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/event"
	"github.com/nathro/autotransform/internal/item"
)

// GetBatches runs the Input to get eligible Items, filters them in input
// order, and batches the survivors. Item order is preserved end to end.
func (s *Schema) GetBatches(ctx context.Context) ([]batch.Batch, error) {
	ctx = NewContext(ctx, s)
	events := event.Default()
	events.Handle(event.DebugEvent{Msg: "begin get_batches"})

	allItems, err := s.Input.GetItems(ctx)
	if err != nil {
		return nil, ComponentError("input", s.Input.ComponentName(), err)
	}
	events.Handle(event.DebugEvent{Msg: fmt.Sprintf("input returned %d items", len(allItems))})

	validItems := make([]item.Item, 0, len(allItems))
	for _, it := range allItems {
		valid := true
		for _, f := range s.Filters {
			ok, err := f.IsValid(ctx, it)
			if err != nil {
				return nil, ComponentError("filter", f.ComponentName(), err)
			}
			if !ok {
				valid = false
				events.Handle(event.VerboseEvent{
					Msg: fmt.Sprintf("[%s] invalid item: %s", f.ComponentName(), it.Key),
				})
				break
			}
		}
		if valid {
			validItems = append(validItems, it)
		}
	}
	events.Handle(event.DebugEvent{Msg: fmt.Sprintf("%d items passed filters", len(validItems))})

	batches, err := s.Batcher.Batch(ctx, validItems)
	if err != nil {
		return nil, ComponentError("batcher", s.Batcher.ComponentName(), err)
	}
	events.Handle(event.DebugEvent{Msg: fmt.Sprintf("batcher produced %d batches", len(batches))})
	return batches, nil
}

// ExecuteBatch executes the changes for one Batch: cleaning the repo, running
// the Transformer, commands and Validators, and submitting the result. A
// non-nil change means this execution refreshes an existing Change; when the
// refresh produces no new work the change is abandoned.
//
// The returned bool reports whether a submission was made, so Run can enforce
// the schema's max_submissions.
func (s *Schema) ExecuteBatch(ctx context.Context, b batch.Batch, ch Change) (bool, error) {
	ctx = NewContext(ctx, s)
	events := event.Default()
	events.Handle(event.DebugEvent{Msg: fmt.Sprintf("begin execute_batch: %s", b.Title)})

	// The repo must be clean before transforming; a prior aborted transform
	// may have left the tree dirty.
	if s.Repo != nil {
		events.Handle(event.DebugEvent{Msg: "clean repo"})
		if err := s.Repo.Clean(ctx, b); err != nil {
			return false, ComponentError("repo", s.Repo.ComponentName(), err)
		}
	}

	transformData, err := s.Transformer.Transform(ctx, b)
	if err != nil {
		return false, ComponentError("transformer", s.Transformer.ComponentName(), err)
	}

	for _, cmd := range s.Commands {
		if !cmd.RunPreValidation() {
			continue
		}
		events.Handle(event.DebugEvent{Msg: fmt.Sprintf("running command %s", cmd.ComponentName())})
		if err := cmd.Run(ctx, b, transformData); err != nil {
			return false, ComponentError("command", cmd.ComponentName(), err)
		}
	}

	for _, v := range s.Validators {
		result, err := v.Validate(ctx, b, transformData)
		if err != nil {
			return false, ComponentError("validator", v.ComponentName(), err)
		}
		events.Handle(event.DebugEvent{
			Msg: fmt.Sprintf("[%s] validation result: %s", result.Validator, result.Level),
		})
		if result.Level.Exceeds(s.Config.AllowedValidationLevel) {
			return false, &ValidationError{Result: result}
		}
	}

	for _, cmd := range s.Commands {
		if cmd.RunPreValidation() {
			continue
		}
		events.Handle(event.DebugEvent{Msg: fmt.Sprintf("running command %s", cmd.ComponentName())})
		if err := cmd.Run(ctx, b, transformData); err != nil {
			return false, ComponentError("command", cmd.ComponentName(), err)
		}
	}

	if s.Repo == nil {
		events.Handle(event.DebugEvent{Msg: "finish batch"})
		return false, nil
	}

	hasChanges, err := s.Repo.HasChanges(ctx, b)
	if err != nil {
		return false, ComponentError("repo", s.Repo.ComponentName(), err)
	}
	if !hasChanges {
		if ch != nil {
			events.Handle(event.DebugEvent{
				Msg: fmt.Sprintf("abandoning change %s: no changes in update", ch),
			})
			if err := ch.Abandon(ctx); err != nil {
				return false, fmt.Errorf("abandoning %s: %w", ch, err)
			}
		}
		events.Handle(event.DebugEvent{Msg: "no changes found"})
		return false, nil
	}

	events.Handle(event.DebugEvent{Msg: "submitting changes"})
	if err := s.Repo.Submit(ctx, b, transformData, ch); err != nil {
		return false, ComponentError("repo", s.Repo.ComponentName(), err)
	}
	events.Handle(event.DebugEvent{Msg: "rewinding repo"})
	if err := s.Repo.Rewind(ctx, b); err != nil {
		return true, ComponentError("repo", s.Repo.ComponentName(), err)
	}
	events.Handle(event.DebugEvent{Msg: "finish batch"})
	return true, nil
}

// Run fully executes the Schema: all batches from GetBatches in order,
// stopping early when max_submissions is reached.
func (s *Schema) Run(ctx context.Context) error {
	batches, err := s.GetBatches(ctx)
	if err != nil {
		return err
	}
	submissions := 0
	for _, b := range batches {
		submitted, err := s.ExecuteBatch(ctx, b, nil)
		if err != nil {
			return err
		}
		if submitted {
			submissions++
			if s.Config.MaxSubmissions > 0 && submissions >= s.Config.MaxSubmissions {
				event.Default().Handle(event.DebugEvent{
					Msg: fmt.Sprintf("max submissions (%d) reached", s.Config.MaxSubmissions),
				})
				break
			}
		}
	}
	return nil
}
