package manage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/config"
	_ "github.com/nathro/autotransform/internal/repo"
	"github.com/nathro/autotransform/internal/schema"
	"github.com/nathro/autotransform/internal/step"
)

// stubChange is a fake schema.Change with observable attributes and recorded
// mutations.
type stubChange struct {
	review schema.ReviewState
	labels []string

	merged    int
	abandoned int
	comments  []string
}

func (c *stubChange) String() string                  { return "stub-pr" }
func (c *stubChange) State() schema.ChangeState       { return schema.ChangeStateOpen }
func (c *stubChange) ReviewState() schema.ReviewState { return c.review }
func (c *stubChange) TestState() schema.TestState     { return schema.TestStateSuccess }
func (c *stubChange) Labels() []string                { return c.labels }
func (c *stubChange) Reviewers() []string             { return nil }
func (c *stubChange) TeamReviewers() []string         { return nil }
func (c *stubChange) CreatedAt() int64                { return 0 }
func (c *stubChange) UpdatedAt() int64                { return 0 }
func (c *stubChange) SchemaName() string              { return "S" }

func (c *stubChange) Batch() (batch.Batch, error)     { return batch.Batch{Title: "t"}, nil }
func (c *stubChange) Schema() (*schema.Schema, error) { return nil, errors.New("not embedded") }

func (c *stubChange) Abandon(context.Context) error { c.abandoned++; return nil }
func (c *stubChange) Merge(context.Context) error   { c.merged++; return nil }

func (c *stubChange) Comment(_ context.Context, body string) error {
	c.comments = append(c.comments, body)
	return nil
}

func (c *stubChange) AddLabels(context.Context, []string) error              { return nil }
func (c *stubChange) RemoveLabel(context.Context, string) error              { return nil }
func (c *stubChange) AddReviewers(context.Context, []string, []string) error { return nil }

// listRepo serves a fixed list of outstanding changes.
type listRepo struct {
	changes []schema.Change
}

func (r *listRepo) ComponentName() string { return "list" }

func (r *listRepo) GetOutstandingChanges(context.Context) ([]schema.Change, error) {
	return r.changes, nil
}

func (r *listRepo) GetChangedFiles(context.Context, batch.Batch) ([]string, error) {
	return nil, nil
}
func (r *listRepo) HasChanges(context.Context, batch.Batch) (bool, error) { return false, nil }
func (r *listRepo) Submit(context.Context, batch.Batch, any, schema.Change) error {
	return nil
}
func (r *listRepo) Clean(context.Context, batch.Batch) error  { return nil }
func (r *listRepo) Rewind(context.Context, batch.Batch) error { return nil }
func (r *listRepo) HasOutstandingChange(context.Context, batch.Batch) (bool, error) {
	return false, nil
}

// scriptedStep returns fixed actions when matched.
type scriptedStep struct {
	matches  bool
	actions  []step.Action
	cont     bool
	checked  int
	runnerOK bool
}

func (s *scriptedStep) ComponentName() string { return "scripted" }

func (s *scriptedStep) GetActions(context.Context, schema.Change) ([]step.Action, error) {
	s.checked++
	if !s.matches {
		return nil, nil
	}
	return s.actions, nil
}

func (s *scriptedStep) ContinueManagement(schema.Change) bool { return s.cont }
func (s *scriptedStep) SetRunner(step.Runner)                 { s.runnerOK = true }

// failingAction always errors.
type failingAction struct{}

func (a *failingAction) ComponentName() string { return "failing" }

func (a *failingAction) Run(context.Context, schema.Change) error {
	return errors.New("boom")
}

// mergeAction delegates to the change.
type mergeAction struct{}

func (a *mergeAction) ComponentName() string { return "merge" }

func (a *mergeAction) Run(ctx context.Context, ch schema.Change) error {
	return ch.Merge(ctx)
}

func TestManager_MergeOnApproval(t *testing.T) {
	ch := &stubChange{review: schema.ReviewStateApproved}
	matched := &scriptedStep{matches: true, actions: []step.Action{&mergeAction{}}}
	later := &scriptedStep{matches: true, actions: []step.Action{&mergeAction{}}}
	m := &Manager{
		Repo:  &listRepo{changes: []schema.Change{ch}},
		Steps: []step.Step{matched, later},
	}

	require.NoError(t, m.Run(context.Background(), &config.Config{}, true))
	assert.Equal(t, 1, ch.merged, "merge called exactly once")
	assert.Equal(t, 1, matched.checked)
	assert.Zero(t, later.checked, "later steps skipped once a step matched")
}

func TestManager_ContinueIfPassed(t *testing.T) {
	ch := &stubChange{}
	first := &scriptedStep{matches: true, actions: []step.Action{&mergeAction{}}, cont: true}
	second := &scriptedStep{matches: true, actions: []step.Action{&mergeAction{}}}
	m := &Manager{
		Repo:  &listRepo{changes: []schema.Change{ch}},
		Steps: []step.Step{first, second},
	}

	require.NoError(t, m.Run(context.Background(), &config.Config{}, true))
	assert.Equal(t, 2, ch.merged)
	assert.Equal(t, 1, second.checked)
}

func TestManager_ConditionFalseContinues(t *testing.T) {
	ch := &stubChange{}
	miss := &scriptedStep{matches: false}
	hit := &scriptedStep{matches: true, actions: []step.Action{&mergeAction{}}}
	m := &Manager{
		Repo:  &listRepo{changes: []schema.Change{ch}},
		Steps: []step.Step{miss, hit},
	}

	require.NoError(t, m.Run(context.Background(), &config.Config{}, true))
	assert.Equal(t, 1, ch.merged)
}

func TestManager_ActionFailureDoesNotAbort(t *testing.T) {
	ch := &stubChange{}
	s := &scriptedStep{matches: true, actions: []step.Action{&failingAction{}, &mergeAction{}}}
	m := &Manager{
		Repo:  &listRepo{changes: []schema.Change{ch}},
		Steps: []step.Step{s},
	}

	require.NoError(t, m.Run(context.Background(), &config.Config{}, true))
	assert.Equal(t, 1, ch.merged, "actions after a failed one still run")
}

func TestManager_SetsRunnerOnSteps(t *testing.T) {
	s := &scriptedStep{}
	m := &Manager{Repo: &listRepo{}, Steps: []step.Step{s}}
	require.NoError(t, m.Run(context.Background(), &config.Config{}, true))
	assert.True(t, s.runnerOK)
}

func TestManager_BundleRoundTrip(t *testing.T) {
	bundle := `{
		"repo": {"name": "github", "base_branch_name": "main", "full_github_name": "owner/repo"},
		"steps": [
			{
				"name": "conditional",
				"condition": {"name": "review_state", "comparison": "equal", "value": "approved"},
				"actions": [{"name": "merge"}]
			}
		]
	}`
	m, err := FromBundle(json.RawMessage(bundle))
	require.NoError(t, err)
	require.Len(t, m.Steps, 1)
	assert.Equal(t, "github", m.Repo.ComponentName())

	encoded, err := m.Bundle()
	require.NoError(t, err)
	again, err := FromBundle(encoded)
	require.NoError(t, err)
	assert.Equal(t, m, again)
}

func TestManager_FileRoundTrip(t *testing.T) {
	m, err := FromBundle(json.RawMessage(
		`{"repo": {"name": "git", "base_branch_name": "main"}, "steps": []}`))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sub", "manager.json")
	require.NoError(t, m.Write(path))

	again, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, m.Repo, again.Repo)
}

func TestFromBundle_RequiresRepo(t *testing.T) {
	_, err := FromBundle(json.RawMessage(`{"steps": []}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}
