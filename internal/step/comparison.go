package step

import (
	"fmt"
	"strings"

	"github.com/nathro/autotransform/internal/config"
)

// Comparison is the operator a leaf condition applies between a Change
// attribute and its value.
type Comparison string

// Supported comparisons. Each leaf condition declares the subset it accepts
// and rejects the rest at construction.
const (
	CompareEqual       Comparison = "equal"
	CompareNotEqual    Comparison = "not_equal"
	CompareIn          Comparison = "in"
	CompareNotIn       Comparison = "not_in"
	CompareGreater     Comparison = "greater_than"
	CompareGreaterEq   Comparison = "greater_than_or_equal"
	CompareLess        Comparison = "less_than"
	CompareLessEq      Comparison = "less_than_or_equal"
	CompareContains    Comparison = "contains"
	CompareNotContains Comparison = "not_contains"
	CompareEmpty       Comparison = "empty"
	CompareNotEmpty    Comparison = "not_empty"
)

// validateComparison checks a comparison against a condition's declared
// subset.
func validateComparison(kind string, cmp Comparison, valid ...Comparison) error {
	for _, v := range valid {
		if cmp == v {
			return nil
		}
	}
	return fmt.Errorf("step: condition %s does not support comparison %q (valid: %s): %w",
		kind, cmp, joinComparisons(valid), config.ErrConfig)
}

func joinComparisons(comparisons []Comparison) string {
	parts := make([]string, len(comparisons))
	for i, c := range comparisons {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// compareStrings applies an equality or membership comparison to a string
// attribute. For in/not_in the expected value is a list.
func compareStrings(actual string, expected any, cmp Comparison) (bool, error) {
	switch cmp {
	case CompareEqual, CompareNotEqual:
		want, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("step: comparison %q needs a string value, got %T", cmp, expected)
		}
		return (actual == want) == (cmp == CompareEqual), nil
	case CompareIn, CompareNotIn:
		values, err := stringList(expected)
		if err != nil {
			return false, fmt.Errorf("step: comparison %q: %w", cmp, err)
		}
		found := false
		for _, v := range values {
			if v == actual {
				found = true
				break
			}
		}
		return found == (cmp == CompareIn), nil
	default:
		return false, fmt.Errorf("step: unsupported string comparison %q", cmp)
	}
}

// compareList applies a containment or emptiness comparison to a list
// attribute.
func compareList(actual []string, expected any, cmp Comparison) (bool, error) {
	switch cmp {
	case CompareEmpty, CompareNotEmpty:
		return (len(actual) == 0) == (cmp == CompareEmpty), nil
	case CompareContains, CompareNotContains:
		want, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("step: comparison %q needs a string value, got %T", cmp, expected)
		}
		found := false
		for _, v := range actual {
			if v == want {
				found = true
				break
			}
		}
		return found == (cmp == CompareContains), nil
	default:
		return false, fmt.Errorf("step: unsupported list comparison %q", cmp)
	}
}

// compareInts applies an ordering comparison to an integer attribute.
func compareInts(actual, expected int64, cmp Comparison) (bool, error) {
	switch cmp {
	case CompareEqual:
		return actual == expected, nil
	case CompareNotEqual:
		return actual != expected, nil
	case CompareGreater:
		return actual > expected, nil
	case CompareGreaterEq:
		return actual >= expected, nil
	case CompareLess:
		return actual < expected, nil
	case CompareLessEq:
		return actual <= expected, nil
	default:
		return false, fmt.Errorf("step: unsupported integer comparison %q", cmp)
	}
}

func stringList(v any) ([]string, error) {
	switch values := v.(type) {
	case []string:
		return values, nil
	case []any:
		out := make([]string, 0, len(values))
		for _, e := range values {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("list contains non-string %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("needs a list value, got %T", v)
	}
}
