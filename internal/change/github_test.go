package change

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathro/autotransform/internal/github"
	"github.com/nathro/autotransform/internal/schema"
)

const listFixture = `[
  {
    "number": 42,
    "title": "[AutoTransform][FooSchema] Fix foo",
    "body": "the body",
    "headRefName": "AUTO_TRANSFORM/FooSchema/Fix_foo",
    "state": "OPEN",
    "labels": [{"name": "automation"}, {"name": "needs-review"}],
    "reviewRequests": [
      {"__typename": "User", "login": "alice"},
      {"__typename": "Team", "slug": "platform"}
    ],
    "reviewDecision": "APPROVED",
    "statusCheckRollup": [{"state": "SUCCESS"}],
    "createdAt": "2023-05-01T10:00:00Z",
    "updatedAt": "2023-05-02T11:00:00Z"
  },
  {
    "number": 43,
    "title": "unrelated",
    "body": "",
    "headRefName": "feature/manual-work",
    "state": "OPEN",
    "reviewDecision": "",
    "createdAt": "2023-05-01T10:00:00Z",
    "updatedAt": "2023-05-01T10:00:00Z"
  }
]`

func TestParseList_FiltersByBranchPrefix(t *testing.T) {
	cli := &github.CLI{Repo: "owner/repo"}
	changes, err := ParseList(cli, []byte(listFixture), "AUTO_TRANSFORM/")
	require.NoError(t, err)
	require.Len(t, changes, 1)

	c := changes[0].(*GithubChange)
	assert.Equal(t, 42, c.Number())
	assert.Equal(t, "PR#42", c.String())
	assert.Equal(t, schema.ChangeStateOpen, c.State())
	assert.Equal(t, schema.ReviewStateApproved, c.ReviewState())
	assert.Equal(t, schema.TestStateSuccess, c.TestState())
	assert.Equal(t, []string{"automation", "needs-review"}, c.Labels())
	assert.Equal(t, []string{"alice"}, c.Reviewers())
	assert.Equal(t, []string{"platform"}, c.TeamReviewers())
	assert.Equal(t, "FooSchema", c.SchemaName())
	assert.Equal(t, int64(1682935200), c.CreatedAt())
	assert.Less(t, c.CreatedAt(), c.UpdatedAt())
}

func TestParseState(t *testing.T) {
	assert.Equal(t, schema.ChangeStateMerged, parseState("MERGED"))
	assert.Equal(t, schema.ChangeStateClosed, parseState("CLOSED"))
	assert.Equal(t, schema.ChangeStateOpen, parseState("OPEN"))
}

func TestParseChecks(t *testing.T) {
	tests := []struct {
		name   string
		checks []statusCheck
		want   schema.TestState
	}{
		{name: "no checks is pending", want: schema.TestStatePending},
		{name: "all success", checks: []statusCheck{{State: "SUCCESS"}}, want: schema.TestStateSuccess},
		{name: "any failure wins", checks: []statusCheck{{State: "SUCCESS"}, {Conclusion: "FAILURE"}}, want: schema.TestStateFailure},
		{name: "in progress is pending", checks: []statusCheck{{State: "SUCCESS"}, {Status: "IN_PROGRESS"}}, want: schema.TestStatePending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseChecks(tt.checks))
		})
	}
}

func TestGithubChange_BatchFromBody(t *testing.T) {
	body := fmt.Sprintf("intro\n%s\n{\"title\":\"t\",\"items\":[{\"name\":\"file\",\"key\":\"a.go\"}]}\n%s\nmore",
		BeginBatch, EndBatch)
	c := &GithubChange{body: body}

	b, err := c.Batch()
	require.NoError(t, err)
	assert.Equal(t, "t", b.Title)
	require.Len(t, b.Items, 1)
	assert.Equal(t, "a.go", b.Items[0].Key)

	// The decode is cached: mutating the body afterwards has no effect.
	c.body = "garbage"
	again, err := c.Batch()
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestGithubChange_MissingMarkersIsClearError(t *testing.T) {
	c := &GithubChange{number: 7, body: "no markers here"}
	_, err := c.Batch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), BeginBatch)

	_, err = c.Schema()
	require.Error(t, err)
	assert.Contains(t, err.Error(), BeginSchema)
}

func TestExtractSection(t *testing.T) {
	body := "x<<<<BEGIN SCHEMA>>>>\n{\"a\":1}\n<<<<END SCHEMA>>>>y"
	section, err := extractSection(body, BeginSchema, EndSchema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, section)

	_, err = extractSection("only <<<<BEGIN SCHEMA>>>> start", BeginSchema, EndSchema)
	assert.Error(t, err)
}

func TestBundle_RoundTripReference(t *testing.T) {
	c := &GithubChange{cli: &github.CLI{Repo: "owner/repo"}, number: 42}
	b := c.Bundle()
	assert.Equal(t, "github", b.Name)
	assert.Equal(t, "owner/repo", b.FullGithubName)
	assert.Equal(t, 42, b.PullNumber)
}
