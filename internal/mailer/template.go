// internal/mailer/template.go
package mailer

import (
	"fmt"
	"html/template"
	"strings"
)

// CommitEmail is the data rendered into a commit notification message.
type CommitEmail struct {
	Username      string
	RepoName      string
	CommitMessage string
	CommitSHA     string
	Author        string
	CommitURL     string
}

// ShortSHA is the abbreviated commit hash shown in the email.
func (d CommitEmail) ShortSHA() string {
	if len(d.CommitSHA) > 7 {
		return d.CommitSHA[:7]
	}
	return d.CommitSHA
}

const subjectLimit = 50

var commitTemplate = template.Must(template.New("commit").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>New Commit from {{.Username}}</title>
  </head>
  <body style="font-family: sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background: #24292e; padding: 30px; text-align: center; border-radius: 10px 10px 0 0;">
      <h1 style="color: white; margin: 0; font-size: 24px;">New Commit Alert</h1>
    </div>
    <div style="background: #ffffff; border: 1px solid #e1e5e9; border-radius: 0 0 10px 10px; padding: 30px;">
      <h2 style="margin-top: 0;">{{.Username}} pushed to {{.RepoName}}</h2>
      <div style="background: #f8f9fa; border-left: 4px solid #24292e; padding: 20px; margin: 20px 0;">
        <p style="margin: 0; font-size: 16px;"><strong>{{.CommitMessage}}</strong></p>
      </div>
      <p style="margin: 5px 0; color: #666;"><strong>Author:</strong> {{.Author}}</p>
      <p style="margin: 5px 0; color: #666;"><strong>Commit:</strong> <code>{{.ShortSHA}}</code></p>
      <div style="text-align: center; margin: 30px 0;">
        <a href="{{.CommitURL}}" style="background: #2da44e; color: white; text-decoration: none; padding: 12px 24px; border-radius: 6px; font-weight: bold; display: inline-block;">View Commit on GitHub</a>
      </div>
      <hr style="border: none; border-top: 1px solid #e1e5e9; margin: 30px 0;">
      <p style="color: #666; font-size: 14px; text-align: center;">
        You're receiving this because you're subscribed to notifications for <strong>{{.Username}}</strong>.
      </p>
    </div>
  </body>
</html>
`))

// RenderCommitEmail produces the deliverable message for one new commit.
func RenderCommitEmail(to string, data CommitEmail) (Message, error) {
	var body strings.Builder
	if err := commitTemplate.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render commit email: %w", err)
	}

	subject := data.CommitMessage
	if len(subject) > subjectLimit {
		subject = subject[:subjectLimit] + "..."
	}

	return Message{
		To:       to,
		Subject:  fmt.Sprintf("New commit from %s: %s", data.Username, subject),
		HTMLBody: body.String(),
	}, nil
}
