// internal/notifier/notifier.go

// Package notifier decides idempotently whether a commit still needs a
// notification, records it in the ledger, and triggers delivery.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github-commit-notifier/internal/mailer"
	"github-commit-notifier/internal/model"
	"github-commit-notifier/internal/store"
)

// Notifier is the notification deduplicator. The (subscription, sha)
// uniqueness constraint in the store is the only safeguard against
// duplicate delivery; there is no in-process locking, so overlapping scan
// passes are safe.
type Notifier struct {
	store  store.Store
	sender mailer.Sender
	logger *slog.Logger
}

// New creates a Notifier.
func New(st store.Store, sender mailer.Sender, logger *slog.Logger) *Notifier {
	return &Notifier{store: st, sender: sender, logger: logger}
}

// NotifyIfNew records and delivers a notification for the commit unless
// one already exists for this subscription. The ledger entry is created
// before delivery is attempted: at-most-once recording, best-effort
// delivery. A failed send is logged and never rolled back.
//
// Only store failures are returned; an existing ledger entry, a
// concurrently deleted subscription, a lost create race and a delivery
// failure are all quiet non-events.
func (n *Notifier) NotifyIfNew(ctx context.Context, subscriptionID uuid.UUID, commit model.Commit, repoName, username string) error {
	_, err := n.store.FindNotification(ctx, subscriptionID, commit.SHA)
	if err == nil {
		return nil // already notified
	}
	if !errors.Is(err, store.ErrNotificationNotFound) {
		return fmt.Errorf("look up notification: %w", err)
	}

	// Re-fetch for the current email address; the subscription may have
	// been deleted since the scan loaded it.
	sub, err := n.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return nil
		}
		return fmt.Errorf("load subscription: %w", err)
	}

	entry := model.CommitNotification{
		SubscriptionID: subscriptionID,
		CommitSHA:      commit.SHA,
		CommitMessage:  commit.Message,
		RepoName:       repoName,
		Author:         authorOrUnknown(commit),
		CommitDate:     commitDate(commit),
	}
	if err := n.store.CreateNotification(ctx, entry); err != nil {
		if errors.Is(err, store.ErrAlreadyNotified) {
			return nil // concurrent pass won the insert
		}
		return fmt.Errorf("create notification: %w", err)
	}

	msg, err := mailer.RenderCommitEmail(sub.Email, mailer.CommitEmail{
		Username:      username,
		RepoName:      repoName,
		CommitMessage: commit.Message,
		CommitSHA:     commit.SHA,
		Author:        entry.Author,
		CommitURL:     commitURL(commit, username, repoName),
	})
	if err != nil {
		n.logger.Error("Failed to render notification email",
			"subscription_id", subscriptionID, "sha", commit.SHA, "error", err)
		return nil
	}

	if err := n.sender.Send(msg); err != nil {
		n.logger.Error("Failed to send notification email",
			"subscription_id", subscriptionID, "to", sub.Email, "sha", commit.SHA, "error", err)
		return nil
	}

	n.logger.Info("Sent commit notification",
		"subscription_id", subscriptionID, "repo", repoName, "sha", shortSHA(commit.SHA))
	return nil
}

func authorOrUnknown(c model.Commit) string {
	if c.AuthorName == "" {
		return "Unknown"
	}
	return c.AuthorName
}

func commitDate(c model.Commit) time.Time {
	if c.AuthorDate != nil {
		return *c.AuthorDate
	}
	return time.Time{}
}

func commitURL(c model.Commit, username, repoName string) string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("https://github.com/%s/%s/commit/%s", username, repoName, c.SHA)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
