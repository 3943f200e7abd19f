// Package session holds the per-provider credentials established by the authenticator
// and turns them into authenticated HTTP clients for the gateways.
package session

import (
	"net/http"
	"sync"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"golang.org/x/oauth2"
)

// Credential is an Authorization header split into its scheme and value,
// e.g. "Bearer" + token or "Basic" + base64(user:password).
type Credential struct {
	Scheme string
	Value  string
}

// Header returns the full Authorization header value.
func (c Credential) Header() string {
	return c.Scheme + " " + c.Value
}

// Session stores at most one credential per provider. It is written by the
// authenticator after a successful probe and read by every gateway call.
type Session struct {
	mu    sync.RWMutex
	creds map[domain.Provider]Credential
}

// New returns an empty session.
func New() *Session {
	return &Session{creds: make(map[domain.Provider]Credential)}
}

// Set stores the credential for provider, replacing any previous one.
func (s *Session) Set(provider domain.Provider, cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[provider] = cred
}

// Get returns the credential stored for provider.
func (s *Session) Get(provider domain.Provider) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[provider]
	return cred, ok
}

// TokenSource exposes the provider's credential as an oauth2 token. It fails with
// a *domain.AuthError while no credential is stored.
func (s *Session) TokenSource(provider domain.Provider) oauth2.TokenSource {
	return &tokenSource{session: s, provider: provider}
}

// Client returns an HTTP client whose requests carry the provider's Authorization header.
// A nil base uses http.DefaultTransport.
func (s *Session) Client(provider domain.Provider, base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Base:   base,
			Source: s.TokenSource(provider),
		},
	}
}

type tokenSource struct {
	session  *Session
	provider domain.Provider
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	cred, ok := ts.session.Get(ts.provider)
	if !ok {
		return nil, &domain.AuthError{Provider: ts.provider, Reason: "not authenticated"}
	}
	return StaticToken(cred), nil
}

// StaticToken converts a credential into an oauth2 token; used for probe calls made
// before the credential is stored.
func StaticToken(cred Credential) *oauth2.Token {
	return &oauth2.Token{AccessToken: cred.Value, TokenType: cred.Scheme}
}
