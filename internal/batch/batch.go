// Package batch defines the titled groups of items the engine processes as a
// unit.
package batch

import (
	"encoding/json"
	"fmt"

	"github.com/nathro/autotransform/internal/item"
)

// Metadata keys with engine-level meaning. All other metadata is opaque and
// passed through to components and the repo adapter.
const (
	// MetadataBody is the review-request body. Required by repo adapters
	// that submit to a code-review system.
	MetadataBody = "body"

	// MetadataLabels lists labels to apply to the submitted change.
	MetadataLabels = "labels"

	// MetadataReviewers and MetadataTeamReviewers list reviewers to request
	// on the submitted change.
	MetadataReviewers     = "reviewers"
	MetadataTeamReviewers = "team_reviewers"
)

// Batch is a titled group of Items processed as a unit. The title is the
// human-facing label and the source of the branch name when submitted.
type Batch struct {
	Title    string         `json:"title"`
	Items    []item.Item    `json:"items"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Body returns the review body from the metadata, if present.
func (b Batch) Body() (string, bool) {
	body, ok := b.Metadata[MetadataBody].(string)
	return body, ok
}

// StringList extracts a list of strings from the metadata under the given
// key. JSON-decoded metadata stores lists as []any; both representations are
// accepted.
func (b Batch) StringList(key string) []string {
	switch v := b.Metadata[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// FromBundle decodes a Batch from its JSON bundle.
func FromBundle(data json.RawMessage) (Batch, error) {
	var raw struct {
		Title    string            `json:"title"`
		Items    []json.RawMessage `json:"items"`
		Metadata map[string]any    `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Batch{}, fmt.Errorf("batch: decoding bundle: %w", err)
	}
	items := make([]item.Item, 0, len(raw.Items))
	for _, itemData := range raw.Items {
		it, err := item.FromBundle(itemData)
		if err != nil {
			return Batch{}, fmt.Errorf("batch %q: %w", raw.Title, err)
		}
		items = append(items, it)
	}
	return Batch{Title: raw.Title, Items: items, Metadata: raw.Metadata}, nil
}
