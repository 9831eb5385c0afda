// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/noldarim/autoswe/internal/review")

// PullRequest is one entry of `gh pr list`.
type PullRequest struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

// Author identifies a comment author.
type Author struct {
	Login string `json:"login"`
}

// Comment is a PR conversation comment.
type Comment struct {
	Author    Author `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"` // RFC 3339
}

// Commit is a PR commit.
type Commit struct {
	OID             string `json:"oid"`
	MessageHeadline string `json:"messageHeadline"`
	CommittedDate   string `json:"committedDate"` // RFC 3339
}

// Details holds the PR fields review decisions are based on.
type Details struct {
	Comments []Comment `json:"comments"`
	Commits  []Commit  `json:"commits"`
}

// GitHub is the subset of the hosted source-control API the nudger uses.
// An empty repo means the repository of the current directory.
type GitHub interface {
	ReviewRequested(ctx context.Context, repo string) ([]PullRequest, error)
	Details(ctx context.Context, number int, repo string) (Details, error)
	Comment(ctx context.Context, number int, body, repo string) error
}

// CommandError reports a failed gh invocation.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return "gh command failed: " + e.Stderr
}

// Runner executes a command and returns its stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// GHClient implements GitHub with the gh CLI.
type GHClient struct {
	path   string
	search string
	run    Runner
}

// GHOption configures a GHClient.
type GHOption func(*GHClient)

// WithRunner replaces the command runner.
func WithRunner(r Runner) GHOption {
	return func(c *GHClient) { c.run = r }
}

// WithSearch replaces the PR search query.
func WithSearch(q string) GHOption {
	return func(c *GHClient) { c.search = q }
}

// NewGHClient creates a client running the gh binary at path.
func NewGHClient(path string, opts ...GHOption) *GHClient {
	if path == "" {
		path = "gh"
	}
	c := &GHClient{path: path, search: "review-requested:@me", run: ExecRunner}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReviewRequested lists open PRs matching the review search.
func (c *GHClient) ReviewRequested(ctx context.Context, repo string) ([]PullRequest, error) {
	out, err := c.gh(ctx, repo, "pr", "list", "--json", "number,url,title", "--search", c.search)
	if err != nil {
		return nil, err
	}
	prs := []PullRequest{}
	if len(bytes.TrimSpace(out)) == 0 {
		return prs, nil
	}
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("failed to decode pr list: %w", err)
	}
	return prs, nil
}

// Details fetches the comments and commits of a PR.
func (c *GHClient) Details(ctx context.Context, number int, repo string) (Details, error) {
	out, err := c.gh(ctx, repo, "pr", "view", strconv.Itoa(number), "--json", "comments,commits")
	if err != nil {
		return Details{}, err
	}
	var d Details
	if len(bytes.TrimSpace(out)) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(out, &d); err != nil {
		return Details{}, fmt.Errorf("failed to decode pr #%d: %w", number, err)
	}
	return d, nil
}

// Comment posts a comment on a PR.
func (c *GHClient) Comment(ctx context.Context, number int, body, repo string) error {
	_, err := c.gh(ctx, repo, "pr", "comment", strconv.Itoa(number), "--body", body)
	return err
}

func (c *GHClient) gh(ctx context.Context, repo string, args ...string) ([]byte, error) {
	if repo != "" {
		args = append(args, "--repo", repo)
	}

	ctx, span := tracer.Start(ctx, "gh.command")
	defer span.End()
	span.SetAttributes(attribute.String("gh.subcommand", strings.Join(args[:min(2, len(args))], " ")))

	getLog().Debug().Strs("args", args).Msg("Running gh")

	stdout, stderr, err := c.run(ctx, c.path, args...)
	if err != nil {
		cmdErr := &CommandError{Args: args, ExitCode: -1, Stderr: strings.TrimSpace(string(stderr))}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		} else if cmdErr.Stderr == "" {
			cmdErr.Stderr = err.Error()
		}
		span.SetAttributes(attribute.Int("gh.exit_code", cmdErr.ExitCode))
		span.RecordError(cmdErr)
		span.SetStatus(codes.Error, "gh command failed")
		getLog().Warn().Err(cmdErr).Strs("args", args).Msg("gh command failed")
		return nil, cmdErr
	}

	span.SetAttributes(attribute.Int("gh.exit_code", 0))
	return stdout, nil
}
