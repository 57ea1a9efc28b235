package change

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nathro/autotransform/internal/github"
)

// Bundle is the JSON form of a GithubChange reference, carried by remote
// update dispatches. It identifies the pull request; the live attributes are
// re-fetched on the receiving side.
type Bundle struct {
	Name           string `json:"name"`
	FullGithubName string `json:"full_github_name"`
	PullNumber     int    `json:"pull_number"`
}

// Bundle returns the change's reference bundle.
func (c *GithubChange) Bundle() Bundle {
	return Bundle{Name: "github", FullGithubName: c.cli.Repo, PullNumber: c.number}
}

// Fetch loads a single pull request as a GithubChange.
func Fetch(ctx context.Context, cli *github.CLI, number int) (*GithubChange, error) {
	out, err := cli.Run(ctx, "pr", "view", strconv.Itoa(number), "--json", ListFields)
	if err != nil {
		return nil, err
	}
	var pr pullRequest
	if err := json.Unmarshal([]byte(out), &pr); err != nil {
		return nil, fmt.Errorf("change: parsing pull request %d: %w", number, err)
	}
	return fromPullRequest(cli, pr), nil
}

// FromBundle resolves a change reference bundle to a live GithubChange.
func FromBundle(ctx context.Context, data json.RawMessage) (*GithubChange, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("change: decoding change bundle: %w", err)
	}
	if b.Name != "github" {
		return nil, fmt.Errorf("change: unknown change component %q", b.Name)
	}
	if b.PullNumber <= 0 {
		return nil, fmt.Errorf("change: change bundle missing pull_number")
	}
	return Fetch(ctx, &github.CLI{Repo: b.FullGithubName}, b.PullNumber)
}
