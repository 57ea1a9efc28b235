package step

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/schema"
)

// Aggregator combines the verdicts of nested conditions.
type Aggregator string

// Aggregators.
const (
	AggregateAll Aggregator = "all"
	AggregateAny Aggregator = "any"
)

// AggregateCondition combines nested conditions with all/any semantics.
type AggregateCondition struct {
	Aggregator Aggregator  `json:"aggregator"`
	Conditions []Condition `json:"-"`
}

// ComponentName identifies the component in bundles.
func (c *AggregateCondition) ComponentName() string { return "aggregate" }

// Check evaluates the nested conditions in order, short-circuiting.
func (c *AggregateCondition) Check(ctx context.Context, ch schema.Change) (bool, error) {
	for _, nested := range c.Conditions {
		passed, err := nested.Check(ctx, ch)
		if err != nil {
			return false, err
		}
		if c.Aggregator == AggregateAll && !passed {
			return false, nil
		}
		if c.Aggregator == AggregateAny && passed {
			return true, nil
		}
	}
	return c.Aggregator == AggregateAll, nil
}

// MarshalJSON bundles the aggregate with its nested conditions.
func (c *AggregateCondition) MarshalJSON() ([]byte, error) {
	nested := make([]json.RawMessage, 0, len(c.Conditions))
	for _, cond := range c.Conditions {
		encoded, err := schema.EncodeComponent(cond)
		if err != nil {
			return nil, err
		}
		nested = append(nested, encoded)
	}
	return json.Marshal(map[string]any{
		"name":       c.ComponentName(),
		"aggregator": c.Aggregator,
		"conditions": nested,
	})
}

// comparisonCondition is the common shape of leaf conditions: a comparison
// operator and an expected value.
type comparisonCondition struct {
	Comparison Comparison `json:"comparison"`
	Value      any        `json:"value,omitempty"`
}

// ChangeStateCondition compares the Change's lifecycle state.
type ChangeStateCondition struct {
	comparisonCondition
}

func (c *ChangeStateCondition) ComponentName() string { return "change_state" }

func (c *ChangeStateCondition) Check(_ context.Context, ch schema.Change) (bool, error) {
	return compareStrings(string(ch.State()), c.Value, c.Comparison)
}

// ReviewStateCondition compares the Change's review state.
type ReviewStateCondition struct {
	comparisonCondition
}

func (c *ReviewStateCondition) ComponentName() string { return "review_state" }

func (c *ReviewStateCondition) Check(_ context.Context, ch schema.Change) (bool, error) {
	return compareStrings(string(ch.ReviewState()), c.Value, c.Comparison)
}

// TestStateCondition compares the Change's CI state.
type TestStateCondition struct {
	comparisonCondition
}

func (c *TestStateCondition) ComponentName() string { return "test_state" }

func (c *TestStateCondition) Check(_ context.Context, ch schema.Change) (bool, error) {
	return compareStrings(string(ch.TestState()), c.Value, c.Comparison)
}

// SchemaNameCondition compares the name of the schema that produced the
// Change.
type SchemaNameCondition struct {
	comparisonCondition
}

func (c *SchemaNameCondition) ComponentName() string { return "schema_name" }

func (c *SchemaNameCondition) Check(_ context.Context, ch schema.Change) (bool, error) {
	return compareStrings(ch.SchemaName(), c.Value, c.Comparison)
}

// LabelsCondition checks the Change's labels.
type LabelsCondition struct {
	comparisonCondition
}

func (c *LabelsCondition) ComponentName() string { return "labels" }

func (c *LabelsCondition) Check(_ context.Context, ch schema.Change) (bool, error) {
	return compareList(ch.Labels(), c.Value, c.Comparison)
}

// ReviewersCondition checks the Change's requested reviewers.
type ReviewersCondition struct {
	comparisonCondition
}

func (c *ReviewersCondition) ComponentName() string { return "reviewers" }

func (c *ReviewersCondition) Check(_ context.Context, ch schema.Change) (bool, error) {
	return compareList(ch.Reviewers(), c.Value, c.Comparison)
}

// TeamReviewersCondition checks the Change's requested team reviewers.
type TeamReviewersCondition struct {
	comparisonCondition
}

func (c *TeamReviewersCondition) ComponentName() string { return "team_reviewers" }

func (c *TeamReviewersCondition) Check(_ context.Context, ch schema.Change) (bool, error) {
	return compareList(ch.TeamReviewers(), c.Value, c.Comparison)
}

// now is stubbed in tests.
var now = time.Now

// CreatedAgoCondition compares how many seconds ago the Change was created.
type CreatedAgoCondition struct {
	comparisonCondition
}

func (c *CreatedAgoCondition) ComponentName() string { return "created_ago" }

func (c *CreatedAgoCondition) Check(_ context.Context, ch schema.Change) (bool, error) {
	expected, err := intValue(c.Value)
	if err != nil {
		return false, err
	}
	return compareInts(now().Unix()-ch.CreatedAt(), expected, c.Comparison)
}

// UpdatedAgoCondition compares how many seconds ago the Change was last
// updated.
type UpdatedAgoCondition struct {
	comparisonCondition
}

func (c *UpdatedAgoCondition) ComponentName() string { return "updated_ago" }

func (c *UpdatedAgoCondition) Check(_ context.Context, ch schema.Change) (bool, error) {
	expected, err := intValue(c.Value)
	if err != nil {
		return false, err
	}
	return compareInts(now().Unix()-ch.UpdatedAt(), expected, c.Comparison)
}

func intValue(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("step: comparison needs a numeric value, got %T", v)
	}
}

// Comparison subsets per condition kind.
var (
	stateComparisons = []Comparison{CompareEqual, CompareNotEqual, CompareIn, CompareNotIn}
	listComparisons  = []Comparison{CompareContains, CompareNotContains, CompareEmpty, CompareNotEmpty}
	agoComparisons   = []Comparison{
		CompareEqual, CompareNotEqual,
		CompareGreater, CompareGreaterEq, CompareLess, CompareLessEq,
	}
)

func init() {
	RegisterCondition("aggregate", func(data json.RawMessage) (Condition, error) {
		var raw struct {
			Aggregator Aggregator        `json:"aggregator"`
			Conditions []json.RawMessage `json:"conditions"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw.Aggregator != AggregateAll && raw.Aggregator != AggregateAny {
			return nil, fmt.Errorf("step: unknown aggregator %q: %w", raw.Aggregator, config.ErrConfig)
		}
		agg := &AggregateCondition{Aggregator: raw.Aggregator}
		for _, nested := range raw.Conditions {
			cond, err := DecodeCondition(nested)
			if err != nil {
				return nil, err
			}
			agg.Conditions = append(agg.Conditions, cond)
		}
		return agg, nil
	})

	registerLeaf("change_state", stateComparisons, func(c comparisonCondition) Condition {
		return &ChangeStateCondition{c}
	})
	registerLeaf("review_state", stateComparisons, func(c comparisonCondition) Condition {
		return &ReviewStateCondition{c}
	})
	registerLeaf("test_state", stateComparisons, func(c comparisonCondition) Condition {
		return &TestStateCondition{c}
	})
	registerLeaf("schema_name", stateComparisons, func(c comparisonCondition) Condition {
		return &SchemaNameCondition{c}
	})
	registerLeaf("labels", listComparisons, func(c comparisonCondition) Condition {
		return &LabelsCondition{c}
	})
	registerLeaf("reviewers", listComparisons, func(c comparisonCondition) Condition {
		return &ReviewersCondition{c}
	})
	registerLeaf("team_reviewers", listComparisons, func(c comparisonCondition) Condition {
		return &TeamReviewersCondition{c}
	})
	registerLeaf("created_ago", agoComparisons, func(c comparisonCondition) Condition {
		return &CreatedAgoCondition{c}
	})
	registerLeaf("updated_ago", agoComparisons, func(c comparisonCondition) Condition {
		return &UpdatedAgoCondition{c}
	})
}

// registerLeaf wires a comparison-based leaf condition, enforcing its valid
// comparison subset at decode time.
func registerLeaf(name string, valid []Comparison, build func(comparisonCondition) Condition) {
	RegisterCondition(name, func(data json.RawMessage) (Condition, error) {
		var c comparisonCondition
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		if err := validateComparison(name, c.Comparison, valid...); err != nil {
			return nil, err
		}
		return build(c), nil
	})
}
