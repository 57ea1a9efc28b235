package schema

import (
	"fmt"

	"github.com/nathro/autotransform/internal/config"
)

// SchemaConfig carries the settings a Schema needs to run.
type SchemaConfig struct {
	// SchemaName uniquely identifies the Schema. It appears in branch names,
	// commit messages, and events.
	SchemaName string `json:"schema_name"`

	// AllowedValidationLevel is the most severe validation result that does
	// not abort a batch.
	AllowedValidationLevel ValidationLevel `json:"allowed_validation_level"`

	// MaxSubmissions caps the number of submissions from one run. Zero means
	// no limit.
	MaxSubmissions int `json:"max_submissions,omitempty"`

	// Owners lists the people responsible for the Schema.
	Owners []string `json:"owners,omitempty"`
}

// NewSchemaConfig creates a config with the default allowed validation level
// of none.
func NewSchemaConfig(name string) SchemaConfig {
	return SchemaConfig{SchemaName: name, AllowedValidationLevel: ValidationLevelNone}
}

func (c *SchemaConfig) validate() error {
	if c.SchemaName == "" {
		return fmt.Errorf("schema: config missing schema_name: %w", config.ErrConfig)
	}
	if c.AllowedValidationLevel == "" {
		c.AllowedValidationLevel = ValidationLevelNone
	} else if _, err := ParseValidationLevel(string(c.AllowedValidationLevel)); err != nil {
		return err
	}
	if c.MaxSubmissions < 0 {
		return fmt.Errorf("schema: max_submissions must be positive, got %d: %w",
			c.MaxSubmissions, config.ErrConfig)
	}
	return nil
}
