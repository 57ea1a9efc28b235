package schema

import (
	"encoding/json"
	"fmt"

	"github.com/nathro/autotransform/internal/config"
)

// ValidationLevel grades the outcome of a validator run.
type ValidationLevel string

// Validation levels ordered from least to most severe.
const (
	ValidationLevelNone    ValidationLevel = "none"
	ValidationLevelWarning ValidationLevel = "warning"
	ValidationLevelError   ValidationLevel = "error"
)

var validationOrdinal = map[ValidationLevel]int{
	ValidationLevelNone:    0,
	ValidationLevelWarning: 1,
	ValidationLevelError:   2,
}

// ParseValidationLevel converts a string to a ValidationLevel.
func ParseValidationLevel(s string) (ValidationLevel, error) {
	lvl := ValidationLevel(s)
	if _, ok := validationOrdinal[lvl]; !ok {
		return "", fmt.Errorf("schema: unknown validation level %q: %w", s, config.ErrConfig)
	}
	return lvl, nil
}

// Exceeds reports whether l is more severe than other.
func (l ValidationLevel) Exceeds(other ValidationLevel) bool {
	return validationOrdinal[l] > validationOrdinal[other]
}

func (l ValidationLevel) String() string { return string(l) }

// UnmarshalJSON accepts both the string form and the legacy numeric form.
func (l *ValidationLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := ParseValidationLevel(s)
		if perr != nil {
			return perr
		}
		*l = parsed
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("schema: decoding validation level: %w", err)
	}
	for lvl, ord := range validationOrdinal {
		if ord == n {
			*l = lvl
			return nil
		}
	}
	return fmt.Errorf("schema: unknown validation level %d: %w", n, config.ErrConfig)
}

// ValidationResult is the outcome of one validator run.
type ValidationResult struct {
	// Level is the severity of the result. ValidationLevelNone means the
	// batch passed this validator.
	Level ValidationLevel `json:"level"`

	// Message describes the problem when Level is above ValidationLevelNone.
	Message string `json:"message,omitempty"`

	// Validator names the component that produced the result.
	Validator string `json:"validator"`
}
