// internal/scanner/scanner.go

// Package scanner drives the polling path: it walks every active
// subscription, checks the watched users' repositories for commits past
// each subscription's watermark, and hands new commits to the notifier.
package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github-commit-notifier/internal/fanout"
	"github-commit-notifier/internal/github"
	"github-commit-notifier/internal/model"
	"github-commit-notifier/internal/store"
)

const (
	// Commits fetched per repository on the polling path.
	commitsPerRepo = 50
	// Username groups scanned in parallel.
	groupConcurrency = 4
)

// CommitNotifier hands a candidate commit to the deduplication layer.
type CommitNotifier interface {
	NotifyIfNew(ctx context.Context, subscriptionID uuid.UUID, commit model.Commit, repoName, username string) error
}

// Scanner runs scan passes over all active subscriptions. Errors are
// contained at the narrowest scope: a repository failure does not fail
// its subscription, a username group failure does not fail the pass.
type Scanner struct {
	store    store.Store
	gh       *github.Client
	notifier CommitNotifier
	logger   *slog.Logger
	interval time.Duration
}

// New creates a Scanner. interval is the periodic trigger for Start;
// zero or negative disables the internal ticker (an external scheduler
// can still trigger passes through Scan).
func New(st store.Store, gh *github.Client, notifier CommitNotifier, logger *slog.Logger, interval time.Duration) *Scanner {
	return &Scanner{
		store:    st,
		gh:       gh,
		notifier: notifier,
		logger:   logger,
		interval: interval,
	}
}

// Start runs an initial pass and then one pass per interval until the
// context is cancelled.
func (s *Scanner) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Periodic scanning disabled, waiting for external triggers")
		return
	}

	s.logger.Info("Starting scanner", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Scan(ctx)

	for {
		select {
		case <-ticker.C:
			s.Scan(ctx)
		case <-ctx.Done():
			s.logger.Info("Scanner shutting down", "reason", ctx.Err())
			return
		}
	}
}

// Scan performs one pass over all active subscriptions. It never aborts
// early and never reports failure to a caller; overlapping passes are
// tolerated because dedup is enforced by the store's ledger constraint.
func (s *Scanner) Scan(ctx context.Context) {
	subs, err := s.store.ListActiveSubscriptions(ctx)
	if err != nil {
		s.logger.Error("Failed to load active subscriptions", "error", err)
		return
	}
	if len(subs) == 0 {
		s.logger.Debug("No active subscriptions")
		return
	}

	s.logger.Info("Starting scan pass", "subscriptions", len(subs))

	// Multiple subscribers may watch the same username; the repository
	// listing is fetched once per username, not once per subscription.
	usernames, groups := groupByUsername(subs)

	g := new(errgroup.Group)
	g.SetLimit(groupConcurrency)
	for _, username := range usernames {
		username := username
		group := groups[username]
		g.Go(func() error {
			s.scanGroup(ctx, username, group)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Scan pass finished")
}

// scanGroup checks every subscription watching one username. A failed
// repository listing skips the whole group; its subscriptions keep their
// stale watermark and are retried on the next pass.
func (s *Scanner) scanGroup(ctx context.Context, username string, group []model.Subscription) {
	logger := s.logger.With("username", username)
	logger.Info("Checking commits for user", "subscribers", len(group))

	repos, err := s.gh.ListRepositories(ctx, username, "")
	if err != nil {
		logger.Error("Failed to list repositories, skipping group", "error", err)
		return
	}

	for _, sub := range group {
		s.scanSubscription(ctx, sub, repos)
	}
}

// scanSubscription fetches recent commits for every repository, filters
// by the subscription's watermark and hands survivors to the notifier,
// then advances the watermark. Per-repository failures are swallowed:
// commits in a failing repository during this pass are not retried.
func (s *Scanner) scanSubscription(ctx context.Context, sub model.Subscription, repos []model.Repository) {
	logger := s.logger.With("subscription_id", sub.ID, "username", sub.Username)

	if sub.LastChecked == nil {
		logger.Warn("First scan for subscription, all recent commits will be notified")
	}

	results := fanout.All(ctx, len(repos), 0, func(ctx context.Context, i int) ([]model.Commit, error) {
		return s.gh.ListCommits(ctx, sub.Username, repos[i].Name, "", commitsPerRepo)
	})

	for i, repo := range repos {
		if results[i].Err != nil {
			logger.Warn("Failed to fetch commits, skipping repository for this pass",
				"repo", repo.Name, "error", results[i].Err)
			continue
		}

		for _, commit := range results[i].Value {
			if !isNew(commit, sub.LastChecked) {
				continue
			}
			if err := s.notifier.NotifyIfNew(ctx, sub.ID, commit, repo.Name, sub.Username); err != nil {
				logger.Error("Failed to process notification",
					"repo", repo.Name, "sha", commit.SHA, "error", err)
			}
		}
	}

	// The watermark advances even when some repositories failed above.
	if err := s.store.UpdateLastChecked(ctx, sub.ID, time.Now().UTC()); err != nil {
		logger.Error("Failed to update last checked timestamp", "error", err)
	}
}

// isNew reports whether the commit is strictly newer than the watermark.
// A nil watermark means the subscription has never been checked and every
// commit counts as new; a commit without an author date is only new on
// that first pass.
func isNew(commit model.Commit, lastChecked *time.Time) bool {
	if lastChecked == nil {
		return true
	}
	if commit.AuthorDate == nil {
		return false
	}
	return commit.AuthorDate.After(*lastChecked)
}

// groupByUsername buckets subscriptions by watched username, preserving
// first-seen order for deterministic passes.
func groupByUsername(subs []model.Subscription) ([]string, map[string][]model.Subscription) {
	groups := make(map[string][]model.Subscription)
	var order []string
	for _, sub := range subs {
		if _, ok := groups[sub.Username]; !ok {
			order = append(order, sub.Username)
		}
		groups[sub.Username] = append(groups[sub.Username], sub)
	}
	return order, groups
}
