// Package repo provides the built-in Repo adapters that connect the engine
// to version control and code review systems. All VCS access goes through
// git and gh subprocess calls, following the same pattern as gh, lazygit,
// and k9s.
package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/schema"
)

func init() {
	schema.RegisterRepo("git", func(data json.RawMessage) (schema.Repo, error) {
		var r GitRepo
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return &r, r.validate()
	})
	schema.RegisterRepo("github", func(data json.RawMessage) (schema.Repo, error) {
		var r GithubRepo
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return &r, r.validate()
	})
}

// Branch and commit naming for engine-created submissions.
const (
	// BranchPrefix starts every branch the engine creates.
	BranchPrefix = "AUTO_TRANSFORM"

	// CommitPrefix starts every commit message the engine creates.
	CommitPrefix = "[AutoTransform]"
)

// chunkTitleRe matches the "[n/m]" prefix that chunk batching adds to
// titles; branch names flatten it to "n_m".
var chunkTitleRe = regexp.MustCompile(`\[(\d+)/(\d+)\]`)

// BranchName derives the branch name for a batch title:
// "AUTO_TRANSFORM/<schema_name>/<sanitized_title>".
func BranchName(schemaName, title string) string {
	fixed := chunkTitleRe.ReplaceAllString(title, "${1}_${2}")
	name := BranchPrefix + "/"
	if schemaName != "" {
		name += schemaName + "/"
	}
	return strings.ReplaceAll(name+fixed, " ", "_")
}

// CommitMessage derives the commit message for a batch title:
// "[AutoTransform][<schema_name>] <title>". Titles that already start with a
// bracketed prefix get no extra space.
func CommitMessage(schemaName, title string) string {
	if !strings.HasPrefix(title, "[") {
		title = " " + title
	}
	name := ""
	if schemaName != "" {
		name = "[" + schemaName + "]"
	}
	return CommitPrefix + name + title
}

// schemaNameFromContext returns the current schema's name, or "" when no
// schema is executing.
func schemaNameFromContext(ctx context.Context) string {
	if s, ok := schema.FromContext(ctx); ok {
		return s.Config.SchemaName
	}
	return ""
}

// GitRepo supports committing changes to a local git repository. It owns the
// working copy for the duration of a run; only one schema may mutate it at a
// time.
type GitRepo struct {
	// BaseBranch is the branch runs start from and rewind to.
	BaseBranch string `json:"base_branch_name"`

	// workDir caches the repository root for one invocation.
	workDir string
}

// ComponentName identifies the component in bundles.
func (r *GitRepo) ComponentName() string { return "git" }

func (r *GitRepo) validate() error {
	if r.BaseBranch == "" {
		return fmt.Errorf("repo: git repo requires base_branch_name: %w", config.ErrConfig)
	}
	return nil
}

// GetChangedFiles uses git status to list all changed files, including
// untracked ones.
func (r *GitRepo) GetChangedFiles(ctx context.Context, _ batch.Batch) ([]string, error) {
	out, err := r.run(ctx, "status", "--porcelain", "--untracked-files")
	if err != nil {
		return nil, fmt.Errorf("repo: git status: %w", err)
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		// Rename entries look like "R  old -> new"; the destination is the
		// changed file.
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		files = append(files, strings.Trim(path, `"`))
	}
	return files, nil
}

// HasChanges reports whether the working tree has uncommitted changes.
func (r *GitRepo) HasChanges(ctx context.Context, _ batch.Batch) (bool, error) {
	out, err := r.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("repo: git status: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// Submit stages all changes and commits them on the batch's branch.
func (r *GitRepo) Submit(ctx context.Context, b batch.Batch, _ any, ch schema.Change) error {
	return r.commit(ctx, b.Title, ch != nil)
}

// commit creates (or, for updates, resets) the batch branch, stages
// everything, and commits.
func (r *GitRepo) commit(ctx context.Context, title string, update bool) error {
	branch := BranchName(schemaNameFromContext(ctx), title)
	checkoutFlag := "-b"
	if update {
		checkoutFlag = "-B"
	}
	if _, err := r.run(ctx, "checkout", checkoutFlag, branch); err != nil {
		return fmt.Errorf("repo: creating branch %q: %w", branch, err)
	}
	if _, err := r.run(ctx, "add", "--all"); err != nil {
		return fmt.Errorf("repo: staging changes: %w", err)
	}
	message := CommitMessage(schemaNameFromContext(ctx), title)
	if _, err := r.run(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("repo: committing %q: %w", message, err)
	}
	return nil
}

// Clean discards any uncommitted modifications with a hard reset.
func (r *GitRepo) Clean(ctx context.Context, _ batch.Batch) error {
	if _, err := r.run(ctx, "reset", "--hard"); err != nil {
		return fmt.Errorf("repo: git reset: %w", err)
	}
	return nil
}

// Rewind eliminates uncommitted changes and checks out the base branch.
func (r *GitRepo) Rewind(ctx context.Context, b batch.Batch) error {
	if err := r.Clean(ctx, b); err != nil {
		return err
	}
	if _, err := r.run(ctx, "checkout", r.BaseBranch); err != nil {
		return fmt.Errorf("repo: checking out %q: %w", r.BaseBranch, err)
	}
	return nil
}

// GetOutstandingChanges returns no changes; a bare git repo has no review
// system to query.
func (r *GitRepo) GetOutstandingChanges(context.Context) ([]schema.Change, error) {
	return nil, nil
}

// HasOutstandingChange reports whether a local branch exists for the Batch.
func (r *GitRepo) HasOutstandingChange(ctx context.Context, b batch.Batch) (bool, error) {
	branch := BranchName(schemaNameFromContext(ctx), b.Title)
	exitCode, stdout, _, err := r.runSilent(ctx, "rev-parse", "--verify", "refs/heads/"+branch)
	if err != nil && exitCode == -1 {
		return false, fmt.Errorf("repo: branch exists %q: %w", branch, err)
	}
	return exitCode == 0 && strings.TrimSpace(stdout) != "", nil
}

// run executes a git command in the repository root and returns stdout.
func (r *GitRepo) run(ctx context.Context, args ...string) (string, error) {
	_, stdout, stderr, err := r.runSilent(ctx, args...)
	if err != nil {
		return "", err
	}
	if stdout == "" && stderr != "" {
		// Some git commands (e.g., checkout) write to stderr on success.
		return stderr, nil
	}
	return stdout, nil
}

// runSilent executes a git command and returns the exit code, stdout,
// stderr, and an error. exitCode is -1 when the git binary could not be
// started.
func (r *GitRepo) runSilent(ctx context.Context, args ...string) (int, string, string, error) {
	if r.workDir == "" {
		out, err := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel").Output()
		if err != nil {
			return -1, "", "", fmt.Errorf("not a git repository or git not installed: %w", err)
		}
		r.workDir = strings.TrimSpace(string(out))
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.workDir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			stderr := strings.TrimSpace(stderrBuf.String())
			return exitErr.ExitCode(), strings.TrimSpace(stdoutBuf.String()), stderr,
				fmt.Errorf("exit status %d: %s", exitErr.ExitCode(), stderr)
		}
		return -1, "", "", runErr
	}
	return 0, stdoutBuf.String(), stderrBuf.String(), nil
}
