package step

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/schema"
)

// managedChange is a fake schema.Change recording mutations.
type managedChange struct {
	state      schema.ChangeState
	review     schema.ReviewState
	test       schema.TestState
	labels     []string
	reviewers  []string
	team       []string
	created    int64
	updated    int64
	schemaName string

	merged      int
	abandoned   int
	comments    []string
	addedLabels [][]string
}

func (c *managedChange) String() string                  { return "fake-pr" }
func (c *managedChange) State() schema.ChangeState       { return c.state }
func (c *managedChange) ReviewState() schema.ReviewState { return c.review }
func (c *managedChange) TestState() schema.TestState     { return c.test }
func (c *managedChange) Labels() []string                { return c.labels }
func (c *managedChange) Reviewers() []string             { return c.reviewers }
func (c *managedChange) TeamReviewers() []string         { return c.team }
func (c *managedChange) CreatedAt() int64                { return c.created }
func (c *managedChange) UpdatedAt() int64                { return c.updated }
func (c *managedChange) SchemaName() string              { return c.schemaName }

func (c *managedChange) Batch() (batch.Batch, error)   { return batch.Batch{Title: "t"}, nil }
func (c *managedChange) Schema() (*schema.Schema, error) { return nil, nil }

func (c *managedChange) Abandon(context.Context) error { c.abandoned++; return nil }
func (c *managedChange) Merge(context.Context) error   { c.merged++; return nil }

func (c *managedChange) Comment(_ context.Context, body string) error {
	c.comments = append(c.comments, body)
	return nil
}

func (c *managedChange) AddLabels(_ context.Context, labels []string) error {
	c.addedLabels = append(c.addedLabels, labels)
	return nil
}

func (c *managedChange) RemoveLabel(context.Context, string) error { return nil }

func (c *managedChange) AddReviewers(context.Context, []string, []string) error { return nil }

func ctxBg() context.Context { return context.Background() }

func TestLeafConditions(t *testing.T) {
	ch := &managedChange{
		state:      schema.ChangeStateOpen,
		review:     schema.ReviewStateApproved,
		test:       schema.TestStateSuccess,
		labels:     []string{"automation"},
		reviewers:  []string{"alice"},
		schemaName: "FooSchema",
	}
	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{
			name: "review state equal",
			cond: &ReviewStateCondition{comparisonCondition{CompareEqual, "approved"}},
			want: true,
		},
		{
			name: "review state not equal",
			cond: &ReviewStateCondition{comparisonCondition{CompareNotEqual, "approved"}},
			want: false,
		},
		{
			name: "state in list",
			cond: &ChangeStateCondition{comparisonCondition{CompareIn, []string{"open", "merged"}}},
			want: true,
		},
		{
			name: "labels contains",
			cond: &LabelsCondition{comparisonCondition{CompareContains, "automation"}},
			want: true,
		},
		{
			name: "labels not contains",
			cond: &LabelsCondition{comparisonCondition{CompareNotContains, "wip"}},
			want: true,
		},
		{
			name: "reviewers not empty",
			cond: &ReviewersCondition{comparisonCondition{CompareNotEmpty, nil}},
			want: true,
		},
		{
			name: "team reviewers empty",
			cond: &TeamReviewersCondition{comparisonCondition{CompareEmpty, nil}},
			want: true,
		},
		{
			name: "schema name equal",
			cond: &SchemaNameCondition{comparisonCondition{CompareEqual, "FooSchema"}},
			want: true,
		},
		{
			name: "test state equal",
			cond: &TestStateCondition{comparisonCondition{CompareEqual, "success"}},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cond.Check(ctxBg(), ch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAgoConditions(t *testing.T) {
	fixed := time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = orig })

	ch := &managedChange{
		created: fixed.Add(-2 * time.Hour).Unix(),
		updated: fixed.Add(-10 * time.Minute).Unix(),
	}

	cond := &CreatedAgoCondition{comparisonCondition{CompareGreater, 3600}}
	got, err := cond.Check(ctxBg(), ch)
	require.NoError(t, err)
	assert.True(t, got, "created 2h ago is more than 1h ago")

	updated := &UpdatedAgoCondition{comparisonCondition{CompareLess, 3600}}
	got, err = updated.Check(ctxBg(), ch)
	require.NoError(t, err)
	assert.True(t, got, "updated 10m ago is less than 1h ago")
}

func TestAggregateCondition(t *testing.T) {
	ch := &managedChange{state: schema.ChangeStateOpen, review: schema.ReviewStateApproved}
	pass := &ChangeStateCondition{comparisonCondition{CompareEqual, "open"}}
	fail := &ReviewStateCondition{comparisonCondition{CompareEqual, "changes_requested"}}

	tests := []struct {
		name       string
		aggregator Aggregator
		conditions []Condition
		want       bool
	}{
		{name: "all pass", aggregator: AggregateAll, conditions: []Condition{pass, pass}, want: true},
		{name: "all with failure", aggregator: AggregateAll, conditions: []Condition{pass, fail}, want: false},
		{name: "any with one pass", aggregator: AggregateAny, conditions: []Condition{fail, pass}, want: true},
		{name: "any all fail", aggregator: AggregateAny, conditions: []Condition{fail, fail}, want: false},
		{name: "empty all is true", aggregator: AggregateAll, want: true},
		{name: "empty any is false", aggregator: AggregateAny, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := &AggregateCondition{Aggregator: tt.aggregator, Conditions: tt.conditions}
			got, err := agg.Check(ctxBg(), ch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeCondition_RejectsInvalidComparison(t *testing.T) {
	// Labels conditions do not support ordering comparisons.
	_, err := DecodeCondition(json.RawMessage(
		`{"name":"labels","comparison":"greater_than","value":"x"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)

	// Ago conditions do not support containment.
	_, err = DecodeCondition(json.RawMessage(
		`{"name":"created_ago","comparison":"contains","value":5}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestDecodeCondition_Unknown(t *testing.T) {
	_, err := DecodeCondition(json.RawMessage(`{"name":"nope"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestActions_Validation(t *testing.T) {
	for _, bundle := range []string{
		`{"name":"add_labels","labels":[]}`,
		`{"name":"add_labels","labels":[""]}`,
		`{"name":"remove_label"}`,
		`{"name":"add_reviewers"}`,
		`{"name":"add_reviewers","reviewers":[""]}`,
		`{"name":"comment"}`,
	} {
		_, err := DecodeAction(json.RawMessage(bundle))
		require.Error(t, err, "bundle %s must be rejected", bundle)
		assert.ErrorIs(t, err, config.ErrConfig)
	}
}

func TestActions_DelegateToChange(t *testing.T) {
	ch := &managedChange{}

	require.NoError(t, (&MergeAction{}).Run(ctxBg(), ch))
	assert.Equal(t, 1, ch.merged)

	require.NoError(t, (&AbandonAction{}).Run(ctxBg(), ch))
	assert.Equal(t, 1, ch.abandoned)

	require.NoError(t, (&CommentAction{Body: "ping"}).Run(ctxBg(), ch))
	assert.Equal(t, []string{"ping"}, ch.comments)

	require.NoError(t, (&AddLabelsAction{Labels: []string{"a"}}).Run(ctxBg(), ch))
	assert.Equal(t, [][]string{{"a"}}, ch.addedLabels)

	require.NoError(t, (&NoneAction{}).Run(ctxBg(), ch))
}

// recordingRunner counts update calls.
type recordingRunner struct {
	updates int
}

func (r *recordingRunner) Update(context.Context, schema.Change) error {
	r.updates++
	return nil
}

func TestUpdateAction_UsesRunner(t *testing.T) {
	a := &UpdateAction{}
	assert.Error(t, a.Run(ctxBg(), &managedChange{}), "no runner wired")

	runner := &recordingRunner{}
	a.SetRunner(runner)
	require.NoError(t, a.Run(ctxBg(), &managedChange{}))
	assert.Equal(t, 1, runner.updates)
}

func TestConditionalStep_GetActions(t *testing.T) {
	s := &ConditionalStep{
		Condition: &ReviewStateCondition{comparisonCondition{CompareEqual, "approved"}},
		Actions:   []Action{&MergeAction{}},
	}

	actions, err := s.GetActions(ctxBg(), &managedChange{review: schema.ReviewStateApproved})
	require.NoError(t, err)
	assert.Len(t, actions, 1)
	assert.False(t, s.ContinueManagement(&managedChange{}))

	actions, err = s.GetActions(ctxBg(), &managedChange{review: schema.ReviewStateNeedsReview})
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestConditionalStep_SetRunnerReachesUpdateActions(t *testing.T) {
	update := &UpdateAction{}
	s := &ConditionalStep{
		Condition: &ChangeStateCondition{comparisonCondition{CompareEqual, "open"}},
		Actions:   []Action{&NoneAction{}, update},
	}
	runner := &recordingRunner{}
	s.SetRunner(runner)
	require.NoError(t, update.Run(ctxBg(), &managedChange{}))
	assert.Equal(t, 1, runner.updates)
}

func TestConditionalStep_BundleRoundTrip(t *testing.T) {
	s := &ConditionalStep{
		Condition: &AggregateCondition{
			Aggregator: AggregateAll,
			Conditions: []Condition{
				&ReviewStateCondition{comparisonCondition{CompareEqual, "approved"}},
				&LabelsCondition{comparisonCondition{CompareNotContains, "do-not-merge"}},
			},
		},
		Actions:          []Action{&MergeAction{}, &CommentAction{Body: "merging"}},
		ContinueIfPassed: true,
	}

	encoded, err := json.Marshal(s)
	require.NoError(t, err)
	decoded, err := DecodeStep(encoded)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}
