package step

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/schema"
)

// AbandonAction closes the Change.
type AbandonAction struct{}

func (a *AbandonAction) ComponentName() string { return "abandon" }

func (a *AbandonAction) Run(ctx context.Context, ch schema.Change) error {
	return ch.Abandon(ctx)
}

// MergeAction merges the Change.
type MergeAction struct{}

func (a *MergeAction) ComponentName() string { return "merge" }

func (a *MergeAction) Run(ctx context.Context, ch schema.Change) error {
	return ch.Merge(ctx)
}

// NoneAction does nothing. Useful as a placeholder so a step can stop
// management without side effects.
type NoneAction struct{}

func (a *NoneAction) ComponentName() string { return "none" }

func (a *NoneAction) Run(context.Context, schema.Change) error { return nil }

// AddLabelsAction adds labels to the Change.
type AddLabelsAction struct {
	Labels []string `json:"labels"`
}

func (a *AddLabelsAction) ComponentName() string { return "add_labels" }

func (a *AddLabelsAction) validate() error {
	if len(a.Labels) == 0 {
		return fmt.Errorf("step: add_labels requires at least one label: %w", config.ErrConfig)
	}
	for _, label := range a.Labels {
		if label == "" {
			return fmt.Errorf("step: labels must be non-empty strings: %w", config.ErrConfig)
		}
	}
	return nil
}

func (a *AddLabelsAction) Run(ctx context.Context, ch schema.Change) error {
	return ch.AddLabels(ctx, a.Labels)
}

// RemoveLabelAction removes a label from the Change.
type RemoveLabelAction struct {
	Label string `json:"label"`
}

func (a *RemoveLabelAction) ComponentName() string { return "remove_label" }

func (a *RemoveLabelAction) validate() error {
	if a.Label == "" {
		return fmt.Errorf("step: remove_label requires a non-empty label: %w", config.ErrConfig)
	}
	return nil
}

func (a *RemoveLabelAction) Run(ctx context.Context, ch schema.Change) error {
	return ch.RemoveLabel(ctx, a.Label)
}

// AddReviewersAction requests reviews on the Change.
type AddReviewersAction struct {
	Reviewers     []string `json:"reviewers,omitempty"`
	TeamReviewers []string `json:"team_reviewers,omitempty"`
}

func (a *AddReviewersAction) ComponentName() string { return "add_reviewers" }

func (a *AddReviewersAction) validate() error {
	if len(a.Reviewers) == 0 && len(a.TeamReviewers) == 0 {
		return fmt.Errorf("step: add_reviewers requires at least one reviewer: %w", config.ErrConfig)
	}
	for _, r := range append(append([]string{}, a.Reviewers...), a.TeamReviewers...) {
		if r == "" {
			return fmt.Errorf("step: reviewers must be non-empty strings: %w", config.ErrConfig)
		}
	}
	return nil
}

func (a *AddReviewersAction) Run(ctx context.Context, ch schema.Change) error {
	return ch.AddReviewers(ctx, a.Reviewers, a.TeamReviewers)
}

// CommentAction comments on the Change.
type CommentAction struct {
	Body string `json:"body"`
}

func (a *CommentAction) ComponentName() string { return "comment" }

func (a *CommentAction) validate() error {
	if a.Body == "" {
		return fmt.Errorf("step: comment requires a non-empty body: %w", config.ErrConfig)
	}
	return nil
}

func (a *CommentAction) Run(ctx context.Context, ch schema.Change) error {
	return ch.Comment(ctx, a.Body)
}

// UpdateAction re-runs the pipeline for the Change's batch via the runner
// the management loop selected.
type UpdateAction struct {
	runner Runner
}

func (a *UpdateAction) ComponentName() string { return "update" }

// SetRunner hands the configured runner to the action.
func (a *UpdateAction) SetRunner(r Runner) { a.runner = r }

func (a *UpdateAction) Run(ctx context.Context, ch schema.Change) error {
	if a.runner == nil {
		return fmt.Errorf("step: update action has no runner")
	}
	return a.runner.Update(ctx, ch)
}

func init() {
	RegisterAction("abandon", func(json.RawMessage) (Action, error) { return &AbandonAction{}, nil })
	RegisterAction("merge", func(json.RawMessage) (Action, error) { return &MergeAction{}, nil })
	RegisterAction("none", func(json.RawMessage) (Action, error) { return &NoneAction{}, nil })
	RegisterAction("update", func(json.RawMessage) (Action, error) { return &UpdateAction{}, nil })

	RegisterAction("add_labels", func(data json.RawMessage) (Action, error) {
		var a AddLabelsAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, a.validate()
	})
	RegisterAction("remove_label", func(data json.RawMessage) (Action, error) {
		var a RemoveLabelAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, a.validate()
	})
	RegisterAction("add_reviewers", func(data json.RawMessage) (Action, error) {
		var a AddReviewersAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, a.validate()
	})
	RegisterAction("comment", func(data json.RawMessage) (Action, error) {
		var a CommentAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, a.validate()
	})
}
