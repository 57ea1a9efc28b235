package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nathro/autotransform/internal/change"
	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/event"
	"github.com/nathro/autotransform/internal/github"
	"github.com/nathro/autotransform/internal/repo"
	"github.com/nathro/autotransform/internal/schema"
)

// GithubRunner triggers GitHub workflow runs that execute the pipeline
// remotely. The run workflow receives the JSON-encoded Schema; the update
// workflow receives the JSON-encoded change reference.
type GithubRunner struct {
	// RunWorkflow is the workflow file or ID dispatched for full runs.
	RunWorkflow string `json:"run_workflow"`

	// UpdateWorkflow is the workflow file or ID dispatched for updates.
	UpdateWorkflow string `json:"update_workflow"`
}

// ComponentName identifies the component in bundles.
func (r *GithubRunner) ComponentName() string { return "github" }

func (r *GithubRunner) validate() error {
	if r.RunWorkflow == "" || r.UpdateWorkflow == "" {
		return fmt.Errorf("runner: github runner requires run_workflow and update_workflow: %w",
			config.ErrConfig)
	}
	return nil
}

// Run dispatches the run workflow on the schema's GitHub repo, carrying the
// schema bundle as workflow input.
func (r *GithubRunner) Run(ctx context.Context, s *schema.Schema) error {
	ghRepo, ok := s.Repo.(*repo.GithubRepo)
	if !ok {
		return fmt.Errorf("runner: github runner requires a schema with a github repo: %w",
			config.ErrConfig)
	}
	schemaJSON, err := s.ToJSON(false)
	if err != nil {
		return err
	}
	cli := &github.CLI{Repo: ghRepo.FullGithubName}
	if _, err := cli.Run(ctx, "workflow", "run", r.RunWorkflow,
		"--ref", ghRepo.BaseBranch,
		"-f", "schema="+schemaJSON); err != nil {
		return fmt.Errorf("runner: dispatching run workflow: %w", err)
	}
	event.Default().Handle(event.RemoteRunEvent{
		SchemaName: s.Config.SchemaName,
		Ref:        r.lastRunURL(ctx, cli, r.RunWorkflow),
	})
	return nil
}

// Update dispatches the update workflow, carrying the change reference as
// workflow input.
func (r *GithubRunner) Update(ctx context.Context, ch schema.Change) error {
	ghChange, ok := ch.(*change.GithubChange)
	if !ok {
		return fmt.Errorf("runner: github runner can only update github changes, got %T", ch)
	}
	s, err := ch.Schema()
	if err != nil {
		return fmt.Errorf("runner: recovering schema for %s: %w", ch, err)
	}
	ghRepo, ok := s.Repo.(*repo.GithubRepo)
	if !ok {
		return fmt.Errorf("runner: github runner requires a schema with a github repo: %w",
			config.ErrConfig)
	}
	bundle, err := json.Marshal(ghChange.Bundle())
	if err != nil {
		return fmt.Errorf("runner: encoding change reference: %w", err)
	}
	cli := &github.CLI{Repo: ghRepo.FullGithubName}
	if _, err := cli.Run(ctx, "workflow", "run", r.UpdateWorkflow,
		"--ref", ghRepo.BaseBranch,
		"-f", "change="+string(bundle)); err != nil {
		return fmt.Errorf("runner: dispatching update workflow: %w", err)
	}
	event.Default().Handle(event.RemoteUpdateEvent{
		Change: ch.String(),
		Ref:    r.lastRunURL(ctx, cli, r.UpdateWorkflow),
	})
	return nil
}

// lastRunURL takes a best guess at the dispatched workflow run's URL. The
// workflow dispatch API returns no run ID, so the most recent run of the
// workflow is reported.
func (r *GithubRunner) lastRunURL(ctx context.Context, cli *github.CLI, workflow string) string {
	out, err := cli.Run(ctx, "run", "list", "--workflow", workflow, "--limit", "1", "--json", "url")
	if err != nil {
		return ""
	}
	var runs []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil || len(runs) == 0 {
		return ""
	}
	return runs[0].URL
}
