// internal/aggregator/aggregator.go

// Package aggregator builds the interactive view of a user's repositories:
// every repository ranked by most recent commit, with the top repository's
// commits pre-fetched for display.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github-commit-notifier/internal/fanout"
	"github-commit-notifier/internal/github"
	"github-commit-notifier/internal/model"
)

// commitsPerRepo bounds the per-repository commit fetch during aggregation.
const commitsPerRepo = 10

// Result is the ranked repository/commit bundle for one username.
type Result struct {
	User               model.User              `json:"user"`
	RepoNames          []string                `json:"repos"`
	Repos              []model.RepoWithCommits `json:"repos_with_commits"`
	DefaultRepoCommits []model.Commit          `json:"commits"`
}

// Aggregator performs on-demand aggregation against the upstream API.
type Aggregator struct {
	gh     *github.Client
	logger *slog.Logger
}

// New creates an Aggregator.
func New(gh *github.Client, logger *slog.Logger) *Aggregator {
	return &Aggregator{gh: gh, logger: logger}
}

// Aggregate fetches the user profile, the repository list, and each
// repository's recent commits in parallel, then ranks repositories by
// their derived last-commit date, newest first.
//
// Exactly one profile call, one listing call and N commit calls are
// issued. A failed commit fetch keeps its repository in the result with
// an empty commit list and the provider's updated_at as fallback rank.
// Profile or listing failures propagate with their taxonomy intact.
func (a *Aggregator) Aggregate(ctx context.Context, username, token string) (*Result, error) {
	user, err := a.gh.GetUser(ctx, username, token)
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", username, err)
	}

	repos, err := a.gh.ListRepositories(ctx, username, token)
	if err != nil {
		return nil, fmt.Errorf("list repositories for %s: %w", username, err)
	}

	if len(repos) == 0 {
		return &Result{
			User:               user,
			RepoNames:          []string{},
			Repos:              []model.RepoWithCommits{},
			DefaultRepoCommits: []model.Commit{},
		}, nil
	}

	results := fanout.All(ctx, len(repos), 0, func(ctx context.Context, i int) ([]model.Commit, error) {
		return a.gh.ListCommits(ctx, username, repos[i].Name, token, commitsPerRepo)
	})

	ranked := make([]model.RepoWithCommits, len(repos))
	for i, repo := range repos {
		entry := model.RepoWithCommits{Repository: repo, Commits: results[i].Value}
		if results[i].Err != nil {
			a.logger.Warn("Failed to fetch commits for repository",
				"owner", username, "repo", repo.Name, "error", results[i].Err)
			entry.Commits = []model.Commit{}
		}
		entry.LastCommitDate = deriveLastCommitDate(entry.Commits, repo.UpdatedAt)
		ranked[i] = entry
	}

	// Newest first; nil dates rank last, ties keep fetch order.
	sort.SliceStable(ranked, func(i, j int) bool {
		di, dj := ranked[i].LastCommitDate, ranked[j].LastCommitDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.After(*dj)
		}
	})

	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.Name
	}

	// The top repository's commits were already fetched above; no extra
	// call for the default selection.
	defaultCommits := ranked[0].Commits

	return &Result{
		User:               user,
		RepoNames:          names,
		Repos:              ranked,
		DefaultRepoCommits: defaultCommits,
	}, nil
}

// deriveLastCommitDate picks the ranking timestamp: first commit's author
// date, else the provider's updated_at, else nil.
func deriveLastCommitDate(commits []model.Commit, updatedAt *time.Time) *time.Time {
	if len(commits) > 0 && commits[0].AuthorDate != nil {
		return commits[0].AuthorDate
	}
	return updatedAt
}
