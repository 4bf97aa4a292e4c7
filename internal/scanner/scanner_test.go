// internal/scanner/scanner_test.go
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-commit-notifier/internal/github"
	"github-commit-notifier/internal/mailer"
	"github-commit-notifier/internal/model"
	"github-commit-notifier/internal/notifier"
	"github-commit-notifier/internal/store"
)

// memStore is an in-memory store.Store with the same uniqueness rules as
// the Postgres schema.
type memStore struct {
	mu            sync.Mutex
	subs          map[uuid.UUID]model.Subscription
	notifications map[string]model.CommitNotification
}

func newMemStore() *memStore {
	return &memStore{
		subs:          map[uuid.UUID]model.Subscription{},
		notifications: map[string]model.CommitNotification{},
	}
}

func ledgerKey(id uuid.UUID, sha string) string { return id.String() + "/" + sha }

func (m *memStore) addSubscription(sub model.Subscription) model.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	m.subs[sub.ID] = sub
	return sub
}

func (m *memStore) CreateSubscription(ctx context.Context, arg store.CreateSubscriptionParams) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.Email == arg.Email && s.Username == arg.Username {
			return model.Subscription{}, store.ErrAlreadySubscribed
		}
	}
	sub := model.Subscription{
		ID: uuid.New(), Email: arg.Email, Username: arg.Username,
		Frequency: arg.Frequency, IsActive: true, CreatedAt: time.Now(),
	}
	m.subs[sub.ID] = sub
	return sub, nil
}

func (m *memStore) GetSubscription(ctx context.Context, id uuid.UUID) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return model.Subscription{}, store.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (m *memStore) ListSubscriptions(ctx context.Context, email string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var subs []model.Subscription
	for _, s := range m.subs {
		if email == "" || s.Email == email {
			subs = append(subs, s)
		}
	}
	return subs, nil
}

func (m *memStore) ListActiveSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var subs []model.Subscription
	for _, s := range m.subs {
		if s.IsActive {
			subs = append(subs, s)
		}
	}
	return subs, nil
}

func (m *memStore) UpdateLastChecked(ctx context.Context, id uuid.UUID, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return store.ErrSubscriptionNotFound
	}
	sub.LastChecked = &checkedAt
	m.subs[id] = sub
	return nil
}

func (m *memStore) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return store.ErrSubscriptionNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *memStore) FindNotification(ctx context.Context, subscriptionID uuid.UUID, sha string) (model.CommitNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[ledgerKey(subscriptionID, sha)]
	if !ok {
		return model.CommitNotification{}, store.ErrNotificationNotFound
	}
	return n, nil
}

func (m *memStore) CreateNotification(ctx context.Context, n model.CommitNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ledgerKey(n.SubscriptionID, n.CommitSHA)
	if _, ok := m.notifications[key]; ok {
		return store.ErrAlreadyNotified
	}
	n.ID = uuid.New()
	m.notifications[key] = n
	return nil
}

func (m *memStore) ledgerSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

// recordingSender counts deliveries.
type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (s *recordingSender) Send(msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// fakeUpstream serves repository listings and commit lists per username.
type fakeUpstream struct {
	reposByUser    map[string]string // username -> JSON array
	commitsByRepo  map[string]string // "user/repo" -> JSON array
	repoListStatus map[string]int    // username -> forced listing status
}

func (f *fakeUpstream) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v3")
		switch {
		case strings.HasPrefix(path, "/users/") && strings.HasSuffix(path, "/repos"):
			username := strings.TrimSuffix(strings.TrimPrefix(path, "/users/"), "/repos")
			if status, ok := f.repoListStatus[username]; ok {
				w.WriteHeader(status)
				fmt.Fprintln(w, `{"message": "upstream failure"}`)
				return
			}
			fmt.Fprintln(w, f.reposByUser[username])
		case strings.HasPrefix(path, "/repos/") && strings.HasSuffix(path, "/commits"):
			key := strings.TrimSuffix(strings.TrimPrefix(path, "/repos/"), "/commits")
			body, ok := f.commitsByRepo[key]
			if !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprintln(w, body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func repoJSON(owner, name string) string {
	return fmt.Sprintf(`{"name": %q, "owner": {"login": %q}, "updated_at": "2024-01-15T00:00:00Z"}`, name, owner)
}

func commitJSON(sha, date string) string {
	return fmt.Sprintf(`{"sha": %q, "commit": {"message": "msg %s", "author": {"name": "mona", "date": %q}}}`, sha, sha, date)
}

func setupScanner(t *testing.T, st *memStore, fake *fakeUpstream, sender *recordingSender) *Scanner {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := github.NewClient(github.StaticTokenProvider(""), logger, github.WithBaseURL(server.URL))
	notif := notifier.New(st, sender, logger)
	return New(st, client, notif, logger, 0)
}

func TestScan_NullWatermarkTreatsAllCommitsAsNew(t *testing.T) {
	st := newMemStore()
	sub := st.addSubscription(model.Subscription{Email: "w@example.com", Username: "alice", IsActive: true})

	fake := &fakeUpstream{
		reposByUser: map[string]string{"alice": "[" + repoJSON("alice", "proj") + "]"},
		commitsByRepo: map[string]string{
			"alice/proj": "[" + commitJSON("today", "2024-01-02T10:00:00Z") + "," + commitJSON("yesterday", "2024-01-01T10:00:00Z") + "]",
		},
	}
	sender := &recordingSender{}
	s := setupScanner(t, st, fake, sender)

	s.Scan(context.Background())

	assert.Equal(t, 2, st.ledgerSize())
	assert.Equal(t, 2, sender.count())

	updated, err := st.GetSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastChecked)
}

func TestScan_WatermarkFilterIsStrictlyAfter(t *testing.T) {
	st := newMemStore()
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.addSubscription(model.Subscription{
		Email: "w@example.com", Username: "alice", IsActive: true, LastChecked: &watermark,
	})

	fake := &fakeUpstream{
		reposByUser: map[string]string{"alice": "[" + repoJSON("alice", "proj") + "]"},
		commitsByRepo: map[string]string{
			"alice/proj": "[" + commitJSON("included", "2024-01-01T00:00:01Z") + "," + commitJSON("excluded", "2023-12-31T23:59:59Z") + "]",
		},
	}
	sender := &recordingSender{}
	s := setupScanner(t, st, fake, sender)

	s.Scan(context.Background())

	assert.Equal(t, 1, st.ledgerSize())
	require.Equal(t, 1, sender.count())
	assert.Contains(t, sender.sent[0].HTMLBody, "msg included")
}

func TestScan_FailedRepoListingSkipsGroupAndKeepsWatermark(t *testing.T) {
	st := newMemStore()
	blocked := st.addSubscription(model.Subscription{Email: "a@example.com", Username: "limited", IsActive: true})
	healthy := st.addSubscription(model.Subscription{Email: "b@example.com", Username: "alice", IsActive: true})

	fake := &fakeUpstream{
		reposByUser:    map[string]string{"alice": "[" + repoJSON("alice", "proj") + "]"},
		repoListStatus: map[string]int{"limited": http.StatusForbidden},
		commitsByRepo: map[string]string{
			"alice/proj": "[" + commitJSON("c1", "2024-01-02T10:00:00Z") + "]",
		},
	}
	sender := &recordingSender{}
	s := setupScanner(t, st, fake, sender)

	s.Scan(context.Background())

	blockedSub, err := st.GetSubscription(context.Background(), blocked.ID)
	require.NoError(t, err)
	assert.Nil(t, blockedSub.LastChecked, "failed group keeps its stale watermark")

	healthySub, err := st.GetSubscription(context.Background(), healthy.ID)
	require.NoError(t, err)
	assert.NotNil(t, healthySub.LastChecked)
	assert.Equal(t, 1, st.ledgerSize())
}

func TestScan_PerRepoFailureDoesNotFailSubscription(t *testing.T) {
	st := newMemStore()
	sub := st.addSubscription(model.Subscription{Email: "w@example.com", Username: "alice", IsActive: true})

	fake := &fakeUpstream{
		reposByUser: map[string]string{
			"alice": "[" + repoJSON("alice", "good") + "," + repoJSON("alice", "flaky") + "]",
		},
		commitsByRepo: map[string]string{
			// "flaky" is absent: its commit fetch returns 500.
			"alice/good": "[" + commitJSON("g1", "2024-01-02T10:00:00Z") + "]",
		},
	}
	sender := &recordingSender{}
	s := setupScanner(t, st, fake, sender)

	s.Scan(context.Background())

	assert.Equal(t, 1, st.ledgerSize())
	assert.Equal(t, 1, sender.count())

	updated, err := st.GetSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.LastChecked, "watermark advances past failed repositories")
}

func TestScan_EndToEndSecondPassIsIdempotent(t *testing.T) {
	st := newMemStore()
	sub := st.addSubscription(model.Subscription{Email: "w@example.com", Username: "alice", IsActive: true})

	d2 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	fake := &fakeUpstream{
		reposByUser: map[string]string{"alice": "[" + repoJSON("alice", "proj") + "]"},
		commitsByRepo: map[string]string{
			"alice/proj": "[" + commitJSON("bbb", "2024-01-02T10:00:00Z") + "," + commitJSON("aaa", "2024-01-01T10:00:00Z") + "]",
		},
	}
	sender := &recordingSender{}
	s := setupScanner(t, st, fake, sender)

	s.Scan(context.Background())

	assert.Equal(t, 2, st.ledgerSize())
	assert.Equal(t, 2, sender.count())
	updated, err := st.GetSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastChecked)
	assert.False(t, updated.LastChecked.Before(d2), "watermark must be at or past the newest commit")

	// Repo unchanged: the second pass must notify nothing new.
	s.Scan(context.Background())

	assert.Equal(t, 2, st.ledgerSize())
	assert.Equal(t, 2, sender.count())
}

func TestScan_NoActiveSubscriptionsIsANoOp(t *testing.T) {
	st := newMemStore()
	fake := &fakeUpstream{}
	sender := &recordingSender{}
	s := setupScanner(t, st, fake, sender)

	s.Scan(context.Background())

	assert.Zero(t, st.ledgerSize())
	assert.Zero(t, sender.count())
}

func TestGroupByUsername(t *testing.T) {
	subs := []model.Subscription{
		{ID: uuid.New(), Username: "alice"},
		{ID: uuid.New(), Username: "bob"},
		{ID: uuid.New(), Username: "alice"},
	}

	order, groups := groupByUsername(subs)

	assert.Equal(t, []string{"alice", "bob"}, order)
	assert.Len(t, groups["alice"], 2)
	assert.Len(t, groups["bob"], 1)
}

func TestIsNew(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	after := watermark.Add(time.Second)
	before := watermark.Add(-time.Second)

	assert.True(t, isNew(model.Commit{AuthorDate: &before}, nil), "nil watermark treats everything as new")
	assert.True(t, isNew(model.Commit{AuthorDate: &after}, &watermark))
	assert.False(t, isNew(model.Commit{AuthorDate: &before}, &watermark))
	assert.False(t, isNew(model.Commit{AuthorDate: &watermark}, &watermark), "strictly after, not at")
	assert.False(t, isNew(model.Commit{}, &watermark), "dateless commits are only new on the first pass")
}
