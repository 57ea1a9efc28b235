package transformer

import (
	"context"
	"regexp"

	"github.com/nathro/autotransform/internal/batch"
)

// RegexTransformer rewrites the content of every file Item in a Batch by
// applying a regular-expression replacement. Non-file Items are skipped.
type RegexTransformer struct {
	// Pattern is the regular expression to search for.
	Pattern string `json:"pattern"`

	// Replacement is the replacement text. Capture-group references use Go
	// syntax ($1, ${name}).
	Replacement string `json:"replacement"`
}

// ComponentName identifies the component in bundles.
func (t *RegexTransformer) ComponentName() string { return "regex" }

func (t *RegexTransformer) validate() error {
	return validateRegex(t.Pattern)
}

// Transform applies the replacement to each file Item, in Batch order. Files
// whose content does not match are left untouched on disk.
func (t *RegexTransformer) Transform(_ context.Context, b batch.Batch) (any, error) {
	re, err := regexp.Compile(t.Pattern)
	if err != nil {
		return nil, err
	}
	for _, it := range b.Items {
		if !it.IsFile() {
			continue
		}
		content, err := it.ReadContent()
		if err != nil {
			return nil, err
		}
		replaced := re.ReplaceAllString(content, t.Replacement)
		if replaced == content {
			continue
		}
		if err := it.WriteContent(replaced); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
