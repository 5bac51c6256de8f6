// Package github talks to the GitHub REST API on behalf of a CI run: pull
// request comments and report artifacts of earlier workflow runs.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// DefaultAPIURL is used when no API URL is configured.
const DefaultAPIURL = "https://api.github.com"

// MaxCommentChars is the longest comment body GitHub accepts.
const MaxCommentChars = 65_536

// ErrNoPullRequest is returned by comment operations outside a pull request.
var ErrNoPullRequest = errors.New("not running for a pull request")

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

// ParseRepository parses "owner/name".
func ParseRepository(s string) (Repository, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}, fmt.Errorf("invalid repository %q, expected owner/name", s)
	}
	return Repository{Owner: owner, Name: name}, nil
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// Comment is a pull request comment.
type Comment struct {
	ID   int64
	Body string
	URL  string
}

// Options configures a Client.
type Options struct {
	Token      string
	APIURL     string
	Repository Repository
	// RunID is the current workflow run, used to find the workflow whose
	// earlier runs hold base branch reports.
	RunID int64
	Refs  Refs
	// TempDir receives downloaded artifacts. Defaults to os.TempDir().
	TempDir    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a GitHub API client bound to one repository and run.
type Client struct {
	gh        *gh.Client
	http      *http.Client
	repo      Repository
	runID     int64
	refs      Refs
	tempDir   string
	logger    *slog.Logger
	artifacts *artifactCache
}

// NewClient creates a client authenticated with opts.Token.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	apiClient := httpClient
	if opts.Token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		apiClient = oauth2.NewClient(ctx, ts)
	}

	client := gh.NewClient(apiClient)
	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	baseURL, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
	}
	client.BaseURL = baseURL

	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return &Client{
		gh:        client,
		http:      httpClient,
		repo:      opts.Repository,
		runID:     opts.RunID,
		refs:      opts.Refs,
		tempDir:   tempDir,
		logger:    logger,
		artifacts: newArtifactCache(),
	}, nil
}

func (c *Client) pullRequest() (int, error) {
	if c.refs.PullRequest == 0 {
		return 0, ErrNoPullRequest
	}
	return c.refs.PullRequest, nil
}

// ListComments returns every comment on the pull request.
func (c *Client) ListComments(ctx context.Context) ([]Comment, error) {
	number, err := c.pullRequest()
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	var comments []Comment
	for {
		page, resp, err := c.gh.Issues.ListComments(ctx, c.repo.Owner, c.repo.Name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments on #%d: %w", number, err)
		}
		for _, ic := range page {
			comments = append(comments, convertComment(ic))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

// CreateComment posts a new comment on the pull request.
func (c *Client) CreateComment(ctx context.Context, body string) (Comment, error) {
	number, err := c.pullRequest()
	if err != nil {
		return Comment{}, err
	}
	ic, _, err := c.gh.Issues.CreateComment(ctx, c.repo.Owner, c.repo.Name, number, &gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		return Comment{}, fmt.Errorf("failed to create comment on #%d: %w", number, err)
	}
	return convertComment(ic), nil
}

// UpdateComment replaces the body of an existing comment.
func (c *Client) UpdateComment(ctx context.Context, id int64, body string) (Comment, error) {
	ic, _, err := c.gh.Issues.EditComment(ctx, c.repo.Owner, c.repo.Name, id, &gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		return Comment{}, fmt.Errorf("failed to update comment %d: %w", id, err)
	}
	return convertComment(ic), nil
}

// UpsertComment keeps a single comment identified by marker up to date: the
// first comment containing marker is updated, otherwise one is created. The
// body is prefixed with marker and truncated to MaxCommentChars.
func (c *Client) UpsertComment(ctx context.Context, marker, body string) (Comment, error) {
	body = commentBody(marker, body)

	comments, err := c.ListComments(ctx)
	if err != nil {
		return Comment{}, err
	}
	for _, existing := range comments {
		if strings.Contains(existing.Body, marker) {
			c.logger.Debug("Updating existing comment", slog.Int64("id", existing.ID))
			return c.UpdateComment(ctx, existing.ID, body)
		}
	}
	c.logger.Debug("Creating new comment", slog.Int("pull_request", c.refs.PullRequest))
	return c.CreateComment(ctx, body)
}

const truncatedSuffix = "\n\n…"

func commentBody(marker, body string) string {
	full := marker + "\n\n" + body
	if len(full) <= MaxCommentChars {
		return full
	}
	cut := MaxCommentChars - len(truncatedSuffix)
	for cut > 0 && !utf8.RuneStart(full[cut]) {
		cut--
	}
	return full[:cut] + truncatedSuffix
}

func convertComment(ic *gh.IssueComment) Comment {
	return Comment{ID: ic.GetID(), Body: ic.GetBody(), URL: ic.GetHTMLURL()}
}
