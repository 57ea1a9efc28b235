package schema

import (
	"context"
	"strings"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/item"
)

// Fake components used across the schema package tests. They are registered
// by registerFakes for bundle tests and constructed directly for pipeline
// tests.

type fakeInput struct {
	Keys []string `json:"keys"`
	Err  error    `json:"-"`
}

func (f *fakeInput) ComponentName() string { return "fake_input" }

func (f *fakeInput) GetItems(context.Context) ([]item.Item, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	items := make([]item.Item, 0, len(f.Keys))
	for _, k := range f.Keys {
		items = append(items, item.New(k))
	}
	return items, nil
}

type prefixFilter struct {
	Prefix   string `json:"prefix"`
	Inverted bool   `json:"inverted,omitempty"`
}

func (f *prefixFilter) ComponentName() string { return "fake_prefix_filter" }

func (f *prefixFilter) IsValid(_ context.Context, it item.Item) (bool, error) {
	valid := strings.HasPrefix(it.Key, f.Prefix)
	if f.Inverted {
		valid = !valid
	}
	return valid, nil
}

type singleFakeBatcher struct {
	Title string `json:"title"`
}

func (b *singleFakeBatcher) ComponentName() string { return "fake_single_batcher" }

func (b *singleFakeBatcher) Batch(_ context.Context, items []item.Item) ([]batch.Batch, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return []batch.Batch{{Title: b.Title, Items: items}}, nil
}

type recordingTransformer struct {
	Data       string `json:"data"`
	Err        error  `json:"-"`
	transforms int
}

func (t *recordingTransformer) ComponentName() string { return "fake_transformer" }

func (t *recordingTransformer) Transform(context.Context, batch.Batch) (any, error) {
	t.transforms++
	if t.Err != nil {
		return nil, t.Err
	}
	return t.Data, nil
}

type staticValidator struct {
	Level ValidationLevel `json:"level"`
	runs  int
}

func (v *staticValidator) ComponentName() string { return "fake_validator" }

func (v *staticValidator) Validate(context.Context, batch.Batch, any) (ValidationResult, error) {
	v.runs++
	return ValidationResult{Level: v.Level, Message: "static", Validator: v.ComponentName()}, nil
}

type recordingCommand struct {
	Pre  bool `json:"run_pre_validation,omitempty"`
	runs int
}

func (c *recordingCommand) ComponentName() string   { return "fake_command" }
func (c *recordingCommand) RunPreValidation() bool  { return c.Pre }

func (c *recordingCommand) Run(context.Context, batch.Batch, any) error {
	c.runs++
	return nil
}

// fakeRepo records pipeline interactions in order.
type fakeRepo struct {
	Changed bool `json:"changed"`
	calls   []string
}

func (r *fakeRepo) ComponentName() string { return "fake_repo" }

func (r *fakeRepo) GetChangedFiles(context.Context, batch.Batch) ([]string, error) {
	r.calls = append(r.calls, "get_changed_files")
	if !r.Changed {
		return nil, nil
	}
	return []string{"a.go"}, nil
}

func (r *fakeRepo) HasChanges(context.Context, batch.Batch) (bool, error) {
	r.calls = append(r.calls, "has_changes")
	return r.Changed, nil
}

func (r *fakeRepo) Submit(_ context.Context, _ batch.Batch, _ any, ch Change) error {
	if ch != nil {
		r.calls = append(r.calls, "submit_update")
	} else {
		r.calls = append(r.calls, "submit")
	}
	return nil
}

func (r *fakeRepo) Clean(context.Context, batch.Batch) error {
	r.calls = append(r.calls, "clean")
	return nil
}

func (r *fakeRepo) Rewind(context.Context, batch.Batch) error {
	r.calls = append(r.calls, "rewind")
	return nil
}

func (r *fakeRepo) GetOutstandingChanges(context.Context) ([]Change, error) { return nil, nil }

func (r *fakeRepo) HasOutstandingChange(context.Context, batch.Batch) (bool, error) {
	return false, nil
}

// fakeChange implements Change with settable attributes.
type fakeChange struct {
	state       ChangeState
	review      ReviewState
	test        TestState
	labels      []string
	reviewers   []string
	team        []string
	created     int64
	updated     int64
	schemaName  string
	abandoned   int
	merged      int
	comments    []string
	addedLabels []string
}

func (c *fakeChange) String() string             { return "fake-change" }
func (c *fakeChange) State() ChangeState         { return c.state }
func (c *fakeChange) ReviewState() ReviewState   { return c.review }
func (c *fakeChange) TestState() TestState       { return c.test }
func (c *fakeChange) Labels() []string           { return c.labels }
func (c *fakeChange) Reviewers() []string        { return c.reviewers }
func (c *fakeChange) TeamReviewers() []string    { return c.team }
func (c *fakeChange) CreatedAt() int64           { return c.created }
func (c *fakeChange) UpdatedAt() int64           { return c.updated }
func (c *fakeChange) SchemaName() string         { return c.schemaName }
func (c *fakeChange) Batch() (batch.Batch, error) { return batch.Batch{Title: "t"}, nil }
func (c *fakeChange) Schema() (*Schema, error)   { return nil, nil }

func (c *fakeChange) Abandon(context.Context) error { c.abandoned++; return nil }
func (c *fakeChange) Merge(context.Context) error   { c.merged++; return nil }

func (c *fakeChange) Comment(_ context.Context, body string) error {
	c.comments = append(c.comments, body)
	return nil
}

func (c *fakeChange) AddLabels(_ context.Context, labels []string) error {
	c.addedLabels = append(c.addedLabels, labels...)
	return nil
}

func (c *fakeChange) RemoveLabel(context.Context, string) error { return nil }

func (c *fakeChange) AddReviewers(context.Context, []string, []string) error { return nil }
