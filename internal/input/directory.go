package input

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/item"
)

// ExtraDataContentHash is the extra-data key holding a file's content
// fingerprint when fingerprinting is enabled.
const ExtraDataContentHash = "content_hash"

// DirectoryInput returns a file Item for every file under a directory,
// optionally restricted by doublestar glob patterns, in deterministic
// lexical path order.
type DirectoryInput struct {
	// Path is the root directory to walk.
	Path string `json:"path"`

	// Patterns restricts results to paths (relative to Path) matching at
	// least one doublestar pattern, e.g. "**/*.go". Empty means all files.
	Patterns []string `json:"patterns,omitempty"`

	// Fingerprint attaches an xxhash64 content fingerprint to each Item's
	// extra data, letting batchers and filters group or skip unchanged
	// files cheaply.
	Fingerprint bool `json:"fingerprint,omitempty"`
}

// ComponentName identifies the component in bundles.
func (d *DirectoryInput) ComponentName() string { return "directory" }

func (d *DirectoryInput) validate() error {
	if d.Path == "" {
		return fmt.Errorf("input: directory input requires a path: %w", config.ErrConfig)
	}
	for _, p := range d.Patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("input: invalid pattern %q: %w", p, config.ErrConfig)
		}
	}
	return nil
}

// GetItems walks the directory and returns matching files as file Items.
// filepath.WalkDir visits entries in lexical order, so output order is stable
// across runs.
func (d *DirectoryInput) GetItems(ctx context.Context) ([]item.Item, error) {
	var items []item.Item
	err := filepath.WalkDir(d.Path, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.Path, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !d.matches(rel) {
			return nil
		}
		it := item.NewFile(filepath.ToSlash(path))
		if d.Fingerprint {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			it = it.WithExtraData(map[string]any{
				ExtraDataContentHash: fmt.Sprintf("%016x", xxhash.Sum64(data)),
			})
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("input: walking %s: %w", d.Path, err)
	}
	return items, nil
}

func (d *DirectoryInput) matches(rel string) bool {
	if len(d.Patterns) == 0 {
		return true
	}
	for _, p := range d.Patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
