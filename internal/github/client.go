// internal/github/client.go
package github

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	gh "github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github-commit-notifier/internal/model"
)

const defaultTimeout = 10 * time.Second

// Client is a wrapper around the go-github client. It resolves the auth
// token (explicit per call, else from the TokenProvider), bounds every
// call with a timeout, and translates failures into the package taxonomy.
// It issues no retries; retry policy belongs to callers.
type Client struct {
	tokens  TokenProvider
	logger  *slog.Logger
	timeout time.Duration
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root, for GitHub
// Enterprise installations and for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates and configures a new Client instance.
func NewClient(tokens TokenProvider, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		tokens:  tokens,
		logger:  logger,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// api builds a go-github client for one call. An explicit token wins over
// the provider; with neither, requests go out unauthenticated.
func (c *Client) api(token string) *gh.Client {
	if token == "" {
		token, _ = c.tokens.Token()
	}

	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := gh.NewClient(httpClient)
	if c.baseURL != "" {
		if enterprise, err := client.WithEnterpriseURLs(c.baseURL, c.baseURL); err == nil {
			client = enterprise
		}
	}
	return client
}

// GetUser fetches the profile for a username.
func (c *Client) GetUser(ctx context.Context, username, token string) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	user, _, err := c.api(token).Users.Get(ctx, username)
	if err != nil {
		return model.User{}, mapError(err)
	}
	return model.User{
		Login:     user.GetLogin(),
		ID:        user.GetID(),
		AvatarURL: user.GetAvatarURL(),
		HTMLURL:   user.GetHTMLURL(),
	}, nil
}

// ListRepositories fetches up to 100 of a user's repositories, sorted by
// provider-reported update time, newest first. A single page is enough;
// the aggregation contract caps the set at 100.
func (c *Client) ListRepositories(ctx context.Context, username, token string) ([]model.Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &gh.RepositoryListByUserOptions{
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	repos, _, err := c.api(token).Repositories.ListByUser(ctx, username, opts)
	if err != nil {
		return nil, mapError(err)
	}

	result := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		result = append(result, toRepository(r))
	}
	return result, nil
}

// ListCommits fetches up to perPage of a repository's most recent commits.
func (c *Client) ListCommits(ctx context.Context, owner, repo, token string, perPage int) ([]model.Commit, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: perPage},
	}
	commits, _, err := c.api(token).Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		return nil, mapError(err)
	}

	result := make([]model.Commit, 0, len(commits))
	for _, commit := range commits {
		result = append(result, toCommit(commit))
	}
	return result, nil
}

func toRepository(r *gh.Repository) model.Repository {
	repo := model.Repository{
		Name:        r.GetName(),
		Owner:       r.GetOwner().GetLogin(),
		FullName:    r.GetFullName(),
		Description: r.GetDescription(),
		Language:    r.GetLanguage(),
		StarsCount:  r.GetStargazersCount(),
		HTMLURL:     r.GetHTMLURL(),
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.Time
		repo.UpdatedAt = &t
	}
	return repo
}

func toCommit(c *gh.RepositoryCommit) model.Commit {
	commit := model.Commit{
		SHA:        c.GetSHA(),
		Message:    c.GetCommit().GetMessage(),
		AuthorName: c.GetCommit().GetAuthor().GetName(),
		URL:        c.GetHTMLURL(),
	}
	if author := c.GetCommit().GetAuthor(); author != nil && author.Date != nil {
		t := author.Date.Time
		commit.AuthorDate = &t
	}
	return commit
}
