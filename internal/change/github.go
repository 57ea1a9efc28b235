// Package change provides the Change adapters for outstanding review
// submissions. The GitHub adapter is a read/act view over a pull request,
// driven by the gh CLI.
package change

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/github"
	"github.com/nathro/autotransform/internal/schema"
)

// GithubChange is a Change backed by a pull request. Observable attributes
// are snapshots from the listing query; the embedded Schema and Batch are
// decoded from the body lazily, at most once.
type GithubChange struct {
	cli *github.CLI

	number        int
	title         string
	body          string
	headRef       string
	state         schema.ChangeState
	review        schema.ReviewState
	test          schema.TestState
	labels        []string
	reviewers     []string
	teamReviewers []string
	createdAt     int64
	updatedAt     int64

	decodeBatchOnce  sync.Once
	decodedBatch     batch.Batch
	batchErr         error
	decodeSchemaOnce sync.Once
	decodedSchema    *schema.Schema
	schemaErr        error
}

// Compile-time check: *GithubChange must satisfy schema.Change.
var _ schema.Change = (*GithubChange)(nil)

func (c *GithubChange) String() string {
	return fmt.Sprintf("PR#%d", c.number)
}

// Number returns the pull request number.
func (c *GithubChange) Number() int { return c.number }

// Body returns the raw pull request body.
func (c *GithubChange) Body() string { return c.body }

func (c *GithubChange) State() schema.ChangeState       { return c.state }
func (c *GithubChange) ReviewState() schema.ReviewState { return c.review }
func (c *GithubChange) TestState() schema.TestState     { return c.test }
func (c *GithubChange) Labels() []string                { return c.labels }
func (c *GithubChange) Reviewers() []string             { return c.reviewers }
func (c *GithubChange) TeamReviewers() []string         { return c.teamReviewers }
func (c *GithubChange) CreatedAt() int64                { return c.createdAt }
func (c *GithubChange) UpdatedAt() int64                { return c.updatedAt }

// SchemaName returns the owning schema's name, parsed from the branch name.
func (c *GithubChange) SchemaName() string {
	parts := strings.Split(c.headRef, "/")
	if len(parts) >= 3 {
		return parts[1]
	}
	return ""
}

// Batch recovers the Batch bundle embedded in the body. The decode happens
// at most once per Change value.
func (c *GithubChange) Batch() (batch.Batch, error) {
	c.decodeBatchOnce.Do(func() {
		section, err := extractSection(c.body, BeginBatch, EndBatch)
		if err != nil {
			c.batchErr = fmt.Errorf("%s: %w", c, err)
			return
		}
		c.decodedBatch, c.batchErr = batch.FromBundle(json.RawMessage(section))
	})
	return c.decodedBatch, c.batchErr
}

// Schema recovers the Schema bundle embedded in the body. The decode happens
// at most once per Change value.
func (c *GithubChange) Schema() (*schema.Schema, error) {
	c.decodeSchemaOnce.Do(func() {
		section, err := extractSection(c.body, BeginSchema, EndSchema)
		if err != nil {
			c.schemaErr = fmt.Errorf("%s: %w", c, err)
			return
		}
		c.decodedSchema, c.schemaErr = schema.FromBundle(json.RawMessage(section))
	})
	return c.decodedSchema, c.schemaErr
}

// Abandon closes the pull request and deletes its branch.
func (c *GithubChange) Abandon(ctx context.Context) error {
	_, err := c.cli.Run(ctx, "pr", "close", strconv.Itoa(c.number), "--delete-branch")
	return err
}

// Merge merges the pull request.
func (c *GithubChange) Merge(ctx context.Context) error {
	_, err := c.cli.Run(ctx, "pr", "merge", strconv.Itoa(c.number), "--merge")
	return err
}

// Comment adds a comment to the pull request.
func (c *GithubChange) Comment(ctx context.Context, body string) error {
	_, err := c.cli.Run(ctx, "pr", "comment", strconv.Itoa(c.number), "--body", body)
	return err
}

// AddLabels adds labels to the pull request.
func (c *GithubChange) AddLabels(ctx context.Context, labels []string) error {
	_, err := c.cli.Run(ctx, "pr", "edit", strconv.Itoa(c.number),
		"--add-label", strings.Join(labels, ","))
	return err
}

// RemoveLabel removes a label from the pull request.
func (c *GithubChange) RemoveLabel(ctx context.Context, label string) error {
	_, err := c.cli.Run(ctx, "pr", "edit", strconv.Itoa(c.number), "--remove-label", label)
	return err
}

// AddReviewers requests reviews from users and teams.
func (c *GithubChange) AddReviewers(ctx context.Context, reviewers, teamReviewers []string) error {
	all := append(append([]string{}, reviewers...), teamReviewers...)
	_, err := c.cli.Run(ctx, "pr", "edit", strconv.Itoa(c.number),
		"--add-reviewer", strings.Join(all, ","))
	return err
}

// ListFields is the gh pr list --json field set the adapter consumes.
const ListFields = "number,title,body,headRefName,state,labels,reviewRequests,reviewDecision,statusCheckRollup,createdAt,updatedAt"

// pullRequest mirrors the gh pr list JSON shape.
type pullRequest struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	HeadRefName string `json:"headRefName"`
	State       string `json:"state"`
	Labels      []struct {
		Name string `json:"name"`
	} `json:"labels"`
	ReviewRequests []struct {
		TypeName string `json:"__typename"`
		Login    string `json:"login"`
		Slug     string `json:"slug"`
		Name     string `json:"name"`
	} `json:"reviewRequests"`
	ReviewDecision    string        `json:"reviewDecision"`
	StatusCheckRollup []statusCheck `json:"statusCheckRollup"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// statusCheck is one entry of a pull request's check rollup. Older gh
// versions report state, newer ones status/conclusion.
type statusCheck struct {
	State      string `json:"state"`
	Conclusion string `json:"conclusion"`
	Status     string `json:"status"`
}

// ParseList decodes gh pr list JSON output into Changes, keeping only pull
// requests whose head branch starts with the given prefix (the engine's own
// submissions).
func ParseList(cli *github.CLI, data []byte, branchPrefix string) ([]schema.Change, error) {
	var prs []pullRequest
	if err := json.Unmarshal(data, &prs); err != nil {
		return nil, fmt.Errorf("change: parsing pull request list: %w", err)
	}
	changes := make([]schema.Change, 0, len(prs))
	for _, pr := range prs {
		if branchPrefix != "" && !strings.HasPrefix(pr.HeadRefName, branchPrefix) {
			continue
		}
		changes = append(changes, fromPullRequest(cli, pr))
	}
	return changes, nil
}

func fromPullRequest(cli *github.CLI, pr pullRequest) *GithubChange {
	c := &GithubChange{
		cli:       cli,
		number:    pr.Number,
		title:     pr.Title,
		body:      pr.Body,
		headRef:   pr.HeadRefName,
		state:     parseState(pr.State),
		review:    parseReviewDecision(pr.ReviewDecision),
		test:      parseChecks(pr.StatusCheckRollup),
		createdAt: pr.CreatedAt.Unix(),
		updatedAt: pr.UpdatedAt.Unix(),
	}
	for _, l := range pr.Labels {
		c.labels = append(c.labels, l.Name)
	}
	for _, r := range pr.ReviewRequests {
		switch {
		case r.Login != "":
			c.reviewers = append(c.reviewers, r.Login)
		case r.Slug != "":
			c.teamReviewers = append(c.teamReviewers, r.Slug)
		case r.Name != "":
			c.teamReviewers = append(c.teamReviewers, r.Name)
		}
	}
	return c
}

func parseState(state string) schema.ChangeState {
	switch strings.ToUpper(state) {
	case "MERGED":
		return schema.ChangeStateMerged
	case "CLOSED":
		return schema.ChangeStateClosed
	default:
		return schema.ChangeStateOpen
	}
}

func parseReviewDecision(decision string) schema.ReviewState {
	switch strings.ToUpper(decision) {
	case "APPROVED":
		return schema.ReviewStateApproved
	case "CHANGES_REQUESTED":
		return schema.ReviewStateChangesRequested
	default:
		return schema.ReviewStateNeedsReview
	}
}

func parseChecks(checks []statusCheck) schema.TestState {
	if len(checks) == 0 {
		return schema.TestStatePending
	}
	state := schema.TestStateSuccess
	for _, check := range checks {
		outcome := check.Conclusion
		if outcome == "" {
			outcome = check.State
		}
		switch strings.ToUpper(outcome) {
		case "FAILURE", "ERROR", "TIMED_OUT", "CANCELLED":
			return schema.TestStateFailure
		case "SUCCESS", "NEUTRAL", "SKIPPED":
		default:
			state = schema.TestStatePending
		}
	}
	return state
}
