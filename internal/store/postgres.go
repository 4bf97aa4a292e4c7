// internal/store/postgres.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-commit-notifier/internal/model"
)

const uniqueViolation = "23505"

// Postgres implements Store on a pgx connection pool. Uniqueness of
// (email, username) and (subscription_id, commit_sha) is enforced by
// database constraints, not in-process checks, so concurrent scan passes
// cannot double-insert.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const subscriptionColumns = `id, email, username, frequency, is_active, last_checked, created_at`

func scanSubscription(row pgx.Row) (model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(&s.ID, &s.Email, &s.Username, &s.Frequency, &s.IsActive, &s.LastChecked, &s.CreatedAt)
	return s, err
}

// CreateSubscription inserts a new subscription. A duplicate
// (email, username) pair returns ErrAlreadySubscribed.
func (p *Postgres) CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (model.Subscription, error) {
	query := `
		INSERT INTO subscriptions (email, username, frequency)
		VALUES ($1, $2, $3)
		RETURNING ` + subscriptionColumns + `;
	`

	s, err := scanSubscription(p.pool.QueryRow(ctx, query, arg.Email, arg.Username, arg.Frequency))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Subscription{}, ErrAlreadySubscribed
		}
		return model.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	return s, nil
}

// GetSubscription fetches a subscription by ID.
func (p *Postgres) GetSubscription(ctx context.Context, id uuid.UUID) (model.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1;`

	s, err := scanSubscription(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Subscription{}, ErrSubscriptionNotFound
		}
		return model.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

// ListSubscriptions returns subscriptions newest first, optionally
// filtered by subscriber email.
func (p *Postgres) ListSubscriptions(ctx context.Context, email string) ([]model.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE ($1 = '' OR email = $1)
		ORDER BY created_at DESC;
	`
	return p.querySubscriptions(ctx, query, email)
}

// ListActiveSubscriptions returns every subscription with is_active set.
func (p *Postgres) ListActiveSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE is_active
		ORDER BY created_at;
	`
	return p.querySubscriptions(ctx, query)
}

func (p *Postgres) querySubscriptions(ctx context.Context, query string, args ...any) ([]model.Subscription, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// UpdateLastChecked advances the subscription's scan watermark.
func (p *Postgres) UpdateLastChecked(ctx context.Context, id uuid.UUID, checkedAt time.Time) error {
	query := `UPDATE subscriptions SET last_checked = $1 WHERE id = $2;`

	tag, err := p.pool.Exec(ctx, query, checkedAt, id)
	if err != nil {
		return fmt.Errorf("update last checked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// DeleteSubscription removes a subscription and, via ON DELETE CASCADE,
// its notification history.
func (p *Postgres) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM subscriptions WHERE id = $1;`

	tag, err := p.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// FindNotification looks up a ledger entry by its dedup key.
func (p *Postgres) FindNotification(ctx context.Context, subscriptionID uuid.UUID, sha string) (model.CommitNotification, error) {
	query := `
		SELECT id, subscription_id, commit_sha, commit_message, repo_name, author, commit_date, created_at
		FROM commit_notifications
		WHERE subscription_id = $1 AND commit_sha = $2;
	`

	var n model.CommitNotification
	err := p.pool.QueryRow(ctx, query, subscriptionID, sha).Scan(
		&n.ID, &n.SubscriptionID, &n.CommitSHA, &n.CommitMessage, &n.RepoName, &n.Author, &n.CommitDate, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CommitNotification{}, ErrNotificationNotFound
		}
		return model.CommitNotification{}, fmt.Errorf("find notification: %w", err)
	}
	return n, nil
}

// CreateNotification inserts a ledger entry. A duplicate
// (subscription_id, commit_sha) pair returns ErrAlreadyNotified.
func (p *Postgres) CreateNotification(ctx context.Context, n model.CommitNotification) error {
	query := `
		INSERT INTO commit_notifications (subscription_id, commit_sha, commit_message, repo_name, author, commit_date)
		VALUES ($1, $2, $3, $4, $5, $6);
	`

	_, err := p.pool.Exec(ctx, query, n.SubscriptionID, n.CommitSHA, n.CommitMessage, n.RepoName, n.Author, n.CommitDate)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyNotified
		}
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
