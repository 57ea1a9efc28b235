// Package github wraps the gh CLI for the GitHub-backed repo, change, and
// runner adapters. All GitHub access goes through gh subprocess calls,
// following the same pattern as the git adapter; authentication is gh's own
// (gh auth login or the GH_TOKEN environment variable).
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CLI runs gh commands against one repository.
type CLI struct {
	// Repo is the fully qualified repository name (owner/name). When set it
	// is passed to every command via -R.
	Repo string

	// WorkDir is the working directory for gh commands. Empty means the
	// current directory.
	WorkDir string

	// Bin is the path to the gh binary. Defaults to "gh".
	Bin string
}

// Run executes a gh command and returns trimmed stdout. Non-zero exits are
// errors carrying gh's stderr.
func (c *CLI) Run(ctx context.Context, args ...string) (string, error) {
	exitCode, stdout, stderr, err := c.RunSilent(ctx, args...)
	if err != nil {
		if exitCode == -1 {
			return "", fmt.Errorf("github: gh CLI not installed or not in PATH: %w", err)
		}
		return "", fmt.Errorf("github: gh %s: %s", args[0], strings.TrimSpace(stderr))
	}
	return strings.TrimSpace(stdout), nil
}

// RunSilent executes a gh command and returns the exit code, stdout, stderr,
// and an error. The error is non-nil for both exec failures (exitCode=-1,
// e.g. gh binary not found) and non-zero gh exits (exitCode>0).
func (c *CLI) RunSilent(ctx context.Context, args ...string) (int, string, string, error) {
	bin := c.Bin
	if bin == "" {
		bin = "gh"
	}
	if c.Repo != "" && repoFlagApplies(args) {
		args = append(args, "-R", c.Repo)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = c.WorkDir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return exitErr.ExitCode(), stdoutBuf.String(), stderrBuf.String(),
				fmt.Errorf("exit status %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderrBuf.String()))
		}
		// The process could not be started at all.
		return -1, "", "", runErr
	}
	return 0, stdoutBuf.String(), stderrBuf.String(), nil
}

// repoFlagApplies reports whether the gh subcommand accepts -R. Auth and
// version commands do not.
func repoFlagApplies(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "auth", "--version", "config":
		return false
	default:
		return true
	}
}
