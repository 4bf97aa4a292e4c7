// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github-commit-notifier/internal/model"
)

// Store error variants. Uniqueness violations surface as their own kinds
// so callers can treat them as domain outcomes rather than failures.
var (
	ErrSubscriptionNotFound = errors.New("store: subscription not found")
	ErrAlreadySubscribed    = errors.New("store: already subscribed to this user")
	ErrNotificationNotFound = errors.New("store: notification not found")
	ErrAlreadyNotified      = errors.New("store: commit already notified")
)

// CreateSubscriptionParams are the caller-supplied subscription fields.
type CreateSubscriptionParams struct {
	Email     string
	Username  string
	Frequency string
}

// Store is the persistence boundary consumed by the core.
type Store interface {
	CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (model.Subscription, error)
	GetSubscription(ctx context.Context, id uuid.UUID) (model.Subscription, error)
	ListSubscriptions(ctx context.Context, email string) ([]model.Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]model.Subscription, error)
	UpdateLastChecked(ctx context.Context, id uuid.UUID, checkedAt time.Time) error
	DeleteSubscription(ctx context.Context, id uuid.UUID) error

	FindNotification(ctx context.Context, subscriptionID uuid.UUID, sha string) (model.CommitNotification, error)
	CreateNotification(ctx context.Context, n model.CommitNotification) error
}
