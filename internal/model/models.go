// internal/model/models.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Frequency values accepted on a subscription. The core does not schedule
// by frequency itself; it is informational for the external scheduler.
const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyRealtime = "realtime"
)

// Subscription is a watcher's interest in one GitHub username.
// (Email, Username) is unique; LastChecked is nil until the first
// successful scan of the subscription.
type Subscription struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	Frequency   string     `json:"frequency"`
	IsActive    bool       `json:"is_active"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CommitNotification is the dedup ledger entry recording that a commit has
// already been reported for a subscription. (SubscriptionID, CommitSHA) is
// unique; rows are never mutated or deleted by the core.
type CommitNotification struct {
	ID             uuid.UUID `json:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CommitSHA      string    `json:"commit_sha"`
	CommitMessage  string    `json:"commit_message"`
	RepoName       string    `json:"repo_name"`
	Author         string    `json:"author"`
	CommitDate     time.Time `json:"commit_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// User is a GitHub user profile as returned by the upstream API.
type User struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// Commit is a single upstream commit, normalized for comparison.
// AuthorDate is nil when the provider omitted the author block.
type Commit struct {
	SHA        string     `json:"sha"`
	Message    string     `json:"message"`
	AuthorName string     `json:"author_name"`
	AuthorDate *time.Time `json:"author_date,omitempty"`
	URL        string     `json:"url"`
}

// Repository is the upstream repository metadata used for ranking.
type Repository struct {
	Name        string     `json:"name"`
	Owner       string     `json:"owner"`
	FullName    string     `json:"full_name"`
	Description string     `json:"description,omitempty"`
	Language    string     `json:"language,omitempty"`
	StarsCount  int        `json:"stars_count"`
	HTMLURL     string     `json:"html_url"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// RepoWithCommits is a repository plus its most recent commits and the
// derived ranking timestamp: first commit's author date, else the
// provider's updated_at, else nil (rank last).
type RepoWithCommits struct {
	Repository
	Commits        []Commit   `json:"commits"`
	LastCommitDate *time.Time `json:"last_commit_date,omitempty"`
}
