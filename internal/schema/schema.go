// Package schema is the heart of the engine: it defines the component
// contracts, the Schema value that composes them, and the execution pipeline
// that turns a Schema into submitted changes.
package schema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/item"
)

// Input produces the candidate Items for a run.
type Input interface {
	Component
	GetItems(ctx context.Context) ([]item.Item, error)
}

// Filter decides whether an Item participates in a run. Implementations
// apply their own inverted flag before returning.
type Filter interface {
	Component
	IsValid(ctx context.Context, it item.Item) (bool, error)
}

// Batcher groups filtered Items into Batches. It may return zero Batches;
// every returned Batch has at least one Item.
type Batcher interface {
	Component
	Batch(ctx context.Context, items []item.Item) ([]batch.Batch, error)
}

// Transformer performs the actual modification for a Batch. Its return value
// is opaque data handed to later pipeline stages.
type Transformer interface {
	Component
	Transform(ctx context.Context, b batch.Batch) (any, error)
}

// Validator checks that a transformed Batch did not break anything.
type Validator interface {
	Component
	Validate(ctx context.Context, b batch.Batch, transformData any) (ValidationResult, error)
}

// Command runs post-processing around validation.
type Command interface {
	Component
	Run(ctx context.Context, b batch.Batch, transformData any) error

	// RunPreValidation reports whether the command runs before validators
	// instead of after them.
	RunPreValidation() bool
}

// Repo adapts the engine to the underlying VCS and code-review system.
type Repo interface {
	Component

	// GetChangedFiles lists files changed in the working tree for the Batch.
	GetChangedFiles(ctx context.Context, b batch.Batch) ([]string, error)

	// HasChanges reports whether the working tree has changes for the Batch.
	HasChanges(ctx context.Context, b batch.Batch) (bool, error)

	// Submit commits the changes for the Batch and creates or updates the
	// associated review submission. A non-nil change means an update.
	Submit(ctx context.Context, b batch.Batch, transformData any, ch Change) error

	// Clean discards uncommitted modifications in the working tree.
	Clean(ctx context.Context, b batch.Batch) error

	// Rewind restores the repo to the base state after a submission.
	Rewind(ctx context.Context, b batch.Batch) error

	// GetOutstandingChanges lists open Changes authored by the configured
	// bot identity.
	GetOutstandingChanges(ctx context.Context) ([]Change, error)

	// HasOutstandingChange reports whether an open Change exists for the
	// Batch.
	HasOutstandingChange(ctx context.Context, b batch.Batch) (bool, error)
}

// ChangeState is the lifecycle state of a Change.
type ChangeState string

// Change lifecycle states. Merged and closed Changes are terminal.
const (
	ChangeStateOpen   ChangeState = "open"
	ChangeStateClosed ChangeState = "closed"
	ChangeStateMerged ChangeState = "merged"
)

// ReviewState is the review status of a Change.
type ReviewState string

// Review states.
const (
	ReviewStateNeedsReview      ReviewState = "needs_review"
	ReviewStateApproved         ReviewState = "approved"
	ReviewStateChangesRequested ReviewState = "changes_requested"
)

// TestState is the CI status of a Change.
type TestState string

// Test states.
const (
	TestStatePending TestState = "pending"
	TestStateSuccess TestState = "success"
	TestStateFailure TestState = "failure"
)

// Change is an outstanding review submission created from a Batch. Observable
// attributes are snapshots taken when the Change was fetched; mutating
// methods act on the underlying review system.
type Change interface {
	fmt.Stringer

	State() ChangeState
	ReviewState() ReviewState
	TestState() TestState
	Labels() []string
	Reviewers() []string
	TeamReviewers() []string
	CreatedAt() int64
	UpdatedAt() int64
	SchemaName() string

	// Batch recovers the Batch embedded in the change body.
	Batch() (batch.Batch, error)

	// Schema recovers the Schema embedded in the change body.
	Schema() (*Schema, error)

	Abandon(ctx context.Context) error
	Merge(ctx context.Context) error
	Comment(ctx context.Context, body string) error
	AddLabels(ctx context.Context, labels []string) error
	RemoveLabel(ctx context.Context, label string) error
	AddReviewers(ctx context.Context, reviewers, teamReviewers []string) error
}

// Schema pulls together all components required to execute a transformation.
// A Schema is a value: two Schemas with equal bundles behave identically.
type Schema struct {
	Input        Input
	Filters      []Filter
	Batcher      Batcher
	Transformer  Transformer
	Validators   []Validator
	Commands     []Command
	Repo         Repo // optional
	Config       SchemaConfig
}

// AddFilter appends a filter to the Schema, preserving order. Used by the
// scheduler to attach shard filters.
func (s *Schema) AddFilter(f Filter) {
	s.Filters = append(s.Filters, f)
}

// schemaBundle is the JSON shape of a Schema.
type schemaBundle struct {
	Input       json.RawMessage   `json:"input"`
	Filters     []json.RawMessage `json:"filters"`
	Batcher     json.RawMessage   `json:"batcher"`
	Transformer json.RawMessage   `json:"transformer"`
	Validators  []json.RawMessage `json:"validators"`
	Commands    []json.RawMessage `json:"commands"`
	Repo        json.RawMessage   `json:"repo,omitempty"`
	Config      SchemaConfig      `json:"config"`
}

// Bundle serializes the Schema to its canonical JSON form.
func (s *Schema) Bundle() (json.RawMessage, error) {
	b := schemaBundle{
		Filters:    make([]json.RawMessage, 0, len(s.Filters)),
		Validators: make([]json.RawMessage, 0, len(s.Validators)),
		Commands:   make([]json.RawMessage, 0, len(s.Commands)),
		Config:     s.Config,
	}
	var err error
	if b.Input, err = EncodeComponent(s.Input); err != nil {
		return nil, err
	}
	if b.Batcher, err = EncodeComponent(s.Batcher); err != nil {
		return nil, err
	}
	if b.Transformer, err = EncodeComponent(s.Transformer); err != nil {
		return nil, err
	}
	for _, f := range s.Filters {
		encoded, err := EncodeComponent(f)
		if err != nil {
			return nil, err
		}
		b.Filters = append(b.Filters, encoded)
	}
	for _, v := range s.Validators {
		encoded, err := EncodeComponent(v)
		if err != nil {
			return nil, err
		}
		b.Validators = append(b.Validators, encoded)
	}
	for _, c := range s.Commands {
		encoded, err := EncodeComponent(c)
		if err != nil {
			return nil, err
		}
		b.Commands = append(b.Commands, encoded)
	}
	if s.Repo != nil {
		if b.Repo, err = EncodeComponent(s.Repo); err != nil {
			return nil, err
		}
	}
	return json.Marshal(b)
}

// ToJSON serializes the Schema, optionally indented for human readers.
func (s *Schema) ToJSON(pretty bool) (string, error) {
	bundle, err := s.Bundle()
	if err != nil {
		return "", err
	}
	if !pretty {
		return string(bundle), nil
	}
	var buf json.RawMessage = bundle
	out, err := json.MarshalIndent(buf, "", "    ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// FromBundle decodes a Schema from its canonical JSON form, resolving every
// component through the factory registries.
func FromBundle(data json.RawMessage) (*Schema, error) {
	var b schemaBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("schema: decoding bundle: %w (%w)", err, config.ErrConfig)
	}
	if err := b.Config.validate(); err != nil {
		return nil, err
	}

	s := &Schema{Config: b.Config}
	var err error
	if s.Input, err = DecodeInput(b.Input); err != nil {
		return nil, err
	}
	if s.Batcher, err = DecodeBatcher(b.Batcher); err != nil {
		return nil, err
	}
	if s.Transformer, err = DecodeTransformer(b.Transformer); err != nil {
		return nil, err
	}
	for _, raw := range b.Filters {
		f, err := DecodeFilter(raw)
		if err != nil {
			return nil, err
		}
		s.Filters = append(s.Filters, f)
	}
	for _, raw := range b.Validators {
		v, err := DecodeValidator(raw)
		if err != nil {
			return nil, err
		}
		s.Validators = append(s.Validators, v)
	}
	for _, raw := range b.Commands {
		c, err := DecodeCommand(raw)
		if err != nil {
			return nil, err
		}
		s.Commands = append(s.Commands, c)
	}
	if len(b.Repo) > 0 {
		if s.Repo, err = DecodeRepo(b.Repo); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FromJSON decodes a Schema from a JSON string.
func FromJSON(data string) (*Schema, error) {
	return FromBundle(json.RawMessage(data))
}
