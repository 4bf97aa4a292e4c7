// internal/github/token.go
package github

// TokenProvider resolves the default API token used when a caller does not
// supply one explicitly. The core never inspects its own environment; the
// composition root decides where tokens come from.
type TokenProvider interface {
	Token() (string, bool)
}

// StaticTokenProvider serves a fixed token, typically read from
// configuration at startup. An empty value means no token is available.
type StaticTokenProvider string

func (s StaticTokenProvider) Token() (string, bool) {
	return string(s), s != ""
}
