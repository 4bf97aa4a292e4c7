// internal/mailer/template_test.go
package mailer

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCommitEmail(t *testing.T) {
	data := CommitEmail{
		Username:      "octocat",
		RepoName:      "hello-world",
		CommitMessage: "feat: greet the world",
		CommitSHA:     "abc1234def5678",
		Author:        "mona",
		CommitURL:     "https://github.com/octocat/hello-world/commit/abc1234def5678",
	}

	msg, err := RenderCommitEmail("watcher@example.com", data)

	require.NoError(t, err)
	assert.Equal(t, "watcher@example.com", msg.To)
	assert.Equal(t, "New commit from octocat: feat: greet the world", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "octocat pushed to hello-world")
	assert.Contains(t, msg.HTMLBody, "feat: greet the world")
	assert.Contains(t, msg.HTMLBody, "abc1234") // short SHA
	assert.Contains(t, msg.HTMLBody, data.CommitURL)
	assert.Contains(t, msg.HTMLBody, "mona")
}

func TestRenderCommitEmail_TruncatesLongSubjects(t *testing.T) {
	data := CommitEmail{
		Username:      "octocat",
		RepoName:      "r",
		CommitMessage: strings.Repeat("x", 80),
		CommitSHA:     "abc",
	}

	msg, err := RenderCommitEmail("watcher@example.com", data)

	require.NoError(t, err)
	assert.Equal(t, "New commit from octocat: "+strings.Repeat("x", 50)+"...", msg.Subject)
}

func TestRenderCommitEmail_EscapesHTML(t *testing.T) {
	data := CommitEmail{
		Username:      "octocat",
		RepoName:      "r",
		CommitMessage: `fix: handle <script>alert("x")</script>`,
		CommitSHA:     "abc",
	}

	msg, err := RenderCommitEmail("watcher@example.com", data)

	require.NoError(t, err)
	assert.NotContains(t, msg.HTMLBody, "<script>")
}

func TestNew_DisabledWithoutHost(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sender := New(Config{}, logger)

	err := sender.Send(Message{To: "watcher@example.com"})

	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestShortSHA(t *testing.T) {
	assert.Equal(t, "abc1234", CommitEmail{CommitSHA: "abc1234def"}.ShortSHA())
	assert.Equal(t, "abc", CommitEmail{CommitSHA: "abc"}.ShortSHA())
}
