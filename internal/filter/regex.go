package filter

import (
	"context"
	"os"
	"regexp"

	"github.com/nathro/autotransform/internal/item"
)

// RegexFilter accepts Items whose key matches a regular expression.
type RegexFilter struct {
	Pattern  string `json:"pattern"`
	Inverted bool   `json:"inverted,omitempty"`
}

// ComponentName identifies the component in bundles.
func (f *RegexFilter) ComponentName() string { return "regex" }

// IsValid reports whether the Item's key matches the pattern.
func (f *RegexFilter) IsValid(_ context.Context, it item.Item) (bool, error) {
	re, err := regexp.Compile(f.Pattern)
	if err != nil {
		return false, err
	}
	return inverted(f.Inverted, re.MatchString(it.Key)), nil
}

// FileContentRegexFilter accepts file Items whose content matches a regular
// expression. Non-file Items and unreadable files are invalid rather than
// errors, so mixed inputs can flow through file-oriented schemas.
type FileContentRegexFilter struct {
	Pattern  string `json:"pattern"`
	Inverted bool   `json:"inverted,omitempty"`
}

// ComponentName identifies the component in bundles.
func (f *FileContentRegexFilter) ComponentName() string { return "regex_file_content" }

// IsValid reports whether the file's content matches the pattern.
func (f *FileContentRegexFilter) IsValid(_ context.Context, it item.Item) (bool, error) {
	re, err := regexp.Compile(f.Pattern)
	if err != nil {
		return false, err
	}
	if !it.IsFile() {
		return inverted(f.Inverted, false), nil
	}
	content, err := os.ReadFile(it.Key)
	if err != nil {
		return inverted(f.Inverted, false), nil
	}
	return inverted(f.Inverted, re.Match(content)), nil
}
