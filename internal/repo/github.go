package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/change"
	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/event"
	"github.com/nathro/autotransform/internal/github"
	"github.com/nathro/autotransform/internal/schema"
)

// prNumberRe extracts a PR number from a GitHub PR URL, e.g.
// "https://github.com/owner/repo/pull/42".
var prNumberRe = regexp.MustCompile(`/pull/(\d+)`)

// GithubRepo extends GitRepo with pull request submission against a GitHub
// repository via the gh CLI.
type GithubRepo struct {
	GitRepo

	// FullGithubName is the fully qualified repository name (owner/name).
	FullGithubName string `json:"full_github_name"`

	// HideAutomationInfo omits the embedded schema/batch section from pull
	// request bodies. Changes submitted with this set cannot be managed by
	// steps that need the embedded bundles.
	HideAutomationInfo bool `json:"hide_automation_info,omitempty"`

	// HideAutotransformDocs omits the documentation link from pull request
	// bodies.
	HideAutotransformDocs bool `json:"hide_autotransform_docs,omitempty"`

	// Labels, Reviewers, and TeamReviewers are applied to every pull
	// request, merged with any the batch metadata supplies.
	Labels        []string `json:"labels,omitempty"`
	Reviewers     []string `json:"reviewers,omitempty"`
	TeamReviewers []string `json:"team_reviewers,omitempty"`

	cli *github.CLI
}

// ComponentName identifies the component in bundles.
func (r *GithubRepo) ComponentName() string { return "github" }

func (r *GithubRepo) validate() error {
	if err := r.GitRepo.validate(); err != nil {
		return err
	}
	if r.FullGithubName == "" {
		return fmt.Errorf("repo: github repo requires full_github_name: %w", config.ErrConfig)
	}
	return nil
}

func (r *GithubRepo) gh() *github.CLI {
	if r.cli == nil {
		r.cli = &github.CLI{Repo: r.FullGithubName}
	}
	return r.cli
}

// HasOutstandingChange checks the remote for a branch matching the Batch.
func (r *GithubRepo) HasOutstandingChange(ctx context.Context, b batch.Batch) (bool, error) {
	branch := BranchName(schemaNameFromContext(ctx), b.Title)
	out, err := r.run(ctx, "ls-remote", "--heads", "origin", branch)
	if err != nil {
		return false, fmt.Errorf("repo: ls-remote %q: %w", branch, err)
	}
	return strings.TrimSpace(out) != "", nil
}

// Submit commits the changes, pushes the branch, and opens a pull request.
// For updates the branch is force-pushed and the existing pull request is
// left as is.
func (r *GithubRepo) Submit(ctx context.Context, b batch.Batch, _ any, ch schema.Change) error {
	update := ch != nil
	if err := r.commit(ctx, b.Title, update); err != nil {
		return err
	}

	branch := BranchName(schemaNameFromContext(ctx), b.Title)
	pushArgs := []string{"push", "origin", "-u", branch}
	if update {
		pushArgs = []string{"push", "origin", "-u", "-f", branch}
	}
	if _, err := r.run(ctx, pushArgs...); err != nil {
		return fmt.Errorf("repo: pushing %q: %w", branch, err)
	}
	if update {
		return nil
	}

	body, ok := b.Body()
	if !ok {
		return fmt.Errorf("repo: all pull requests must have a body (batch metadata %q)",
			batch.MetadataBody)
	}
	if !r.HideAutomationInfo {
		info, err := r.automationInfo(ctx, b)
		if err != nil {
			return err
		}
		body += "\n\n" + info
	}

	// The body goes through a temp file to avoid argument length limits and
	// shell escaping issues.
	bodyFile, err := os.CreateTemp("", "autotransform-pr-body-*.md")
	if err != nil {
		return fmt.Errorf("repo: creating body file: %w", err)
	}
	defer os.Remove(bodyFile.Name())
	if _, err := bodyFile.WriteString(body); err != nil {
		bodyFile.Close()
		return fmt.Errorf("repo: writing body file: %w", err)
	}
	bodyFile.Close()

	title := CommitMessage(schemaNameFromContext(ctx), b.Title)
	args := []string{
		"pr", "create",
		"--title", title,
		"--body-file", bodyFile.Name(),
		"--base", r.BaseBranch,
		"--head", branch,
	}
	for _, label := range r.mergedList(b, batch.MetadataLabels, r.Labels) {
		args = append(args, "--label", label)
	}
	reviewers := r.mergedList(b, batch.MetadataReviewers, r.Reviewers)
	reviewers = append(reviewers, r.mergedList(b, batch.MetadataTeamReviewers, r.TeamReviewers)...)
	for _, reviewer := range reviewers {
		args = append(args, "--reviewer", reviewer)
	}

	out, err := r.gh().Run(ctx, args...)
	if err != nil {
		return fmt.Errorf("repo: creating pull request: %w", err)
	}
	if m := prNumberRe.FindStringSubmatch(out); m != nil {
		event.Default().Handle(event.DebugEvent{Msg: "pull request created: #" + m[1]})
	}
	return nil
}

// mergedList combines a metadata list with the repo-level defaults.
func (r *GithubRepo) mergedList(b batch.Batch, key string, defaults []string) []string {
	out := append([]string{}, b.StringList(key)...)
	return append(out, defaults...)
}

// GetOutstandingChanges lists the open pull requests created by the engine's
// bot identity, newest first as gh returns them.
func (r *GithubRepo) GetOutstandingChanges(ctx context.Context) ([]schema.Change, error) {
	out, err := r.gh().Run(ctx, "pr", "list",
		"--state", "open",
		"--author", "@me",
		"--json", change.ListFields)
	if err != nil {
		return nil, fmt.Errorf("repo: listing pull requests: %w", err)
	}
	return change.ParseList(r.gh(), []byte(out), BranchPrefix+"/")
}

// automationInfo builds the body section embedding the schema and batch
// bundles between sentinel markers, so the management loop can recover them.
func (r *GithubRepo) automationInfo(ctx context.Context, b batch.Batch) (string, error) {
	lines := []string{"ADDED AUTOMATICALLY BY AUTOTRANSFORM"}
	if !r.HideAutotransformDocs {
		lines = append(lines,
			"Learn more about AutoTransform [here](https://autotransform.readthedocs.io)")
	}
	lines = append(lines, "Schema and batch information for the change below")

	if current, ok := schema.FromContext(ctx); ok {
		schemaJSON, err := current.ToJSON(true)
		if err != nil {
			return "", err
		}
		lines = append(lines, detailsSection("Schema", change.BeginSchema, schemaJSON, change.EndSchema)...)
	}

	batchJSON, err := json.MarshalIndent(b, "", "    ")
	if err != nil {
		return "", fmt.Errorf("repo: encoding batch: %w", err)
	}
	lines = append(lines, detailsSection("Batch", change.BeginBatch, string(batchJSON), change.EndBatch)...)

	return strings.Join(lines, "\n"), nil
}

// detailsSection wraps a marker-delimited JSON payload in a collapsed
// markdown details block.
func detailsSection(title, begin, payload, end string) []string {
	return []string{
		fmt.Sprintf("<details><summary>%s JSON</summary>", title),
		"",
		"```",
		begin,
		payload,
		end,
		"```",
		"",
		"</details>",
	}
}
