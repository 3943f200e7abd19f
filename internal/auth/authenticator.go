// Package auth validates provider credentials with a probe call and stores them in the session.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/session"
	"go.uber.org/zap"
)

// Credentials is the raw credential material for one provider. GitHub uses Token,
// Bitbucket uses Username and AppPassword.
type Credentials struct {
	Username    string
	AppPassword string
	Token       string
}

// Result reports the outcome of an authentication attempt. Err is set to a
// *domain.AuthError when OK is false.
type Result struct {
	OK      bool
	Message string
	Err     error
}

// Prober issues a cheap authenticated request against a provider.
type Prober interface {
	Probe(ctx context.Context, cred session.Credential) error
}

type messages struct {
	success string
	failure string
}

var providerMessages = map[domain.Provider]messages{
	domain.ProviderGitHub:    {success: "Correctly authenticated your github token", failure: "Incorrect github token"},
	domain.ProviderBitbucket: {success: "successfully added bitbucket authentication", failure: "incorrect bitbucket username or app password"},
}

// Authenticator derives provider auth headers, probes them and records the
// successful ones in the session.
type Authenticator struct {
	session *session.Session
	probers map[domain.Provider]Prober
	logger  *zap.SugaredLogger
}

// NewAuthenticator creates an Authenticator writing to sess.
func NewAuthenticator(sess *session.Session, probers map[domain.Provider]Prober, logger *zap.SugaredLogger) *Authenticator {
	return &Authenticator{
		session: sess,
		probers: probers,
		logger:  logger,
	}
}

// Authenticate validates creds for provider. Bad credentials are reported through
// the Result, never as a panic; the session is only changed on success.
func (a *Authenticator) Authenticate(ctx context.Context, provider domain.Provider, creds Credentials) Result {
	msgs, ok := providerMessages[provider]
	prober, hasProber := a.probers[provider]
	if !ok || !hasProber {
		return a.fail(provider, fmt.Sprintf("unsupported provider %q", provider), &domain.AuthError{Provider: provider, Reason: "unsupported provider"})
	}

	cred, err := deriveCredential(provider, creds)
	if err != nil {
		return a.fail(provider, msgs.failure, &domain.AuthError{Provider: provider, Reason: err.Error()})
	}

	if err := prober.Probe(ctx, cred); err != nil {
		reason := "probe failed"
		var reqErr *domain.ProviderRequestError
		if errors.As(err, &reqErr) {
			reason = fmt.Sprintf("probe rejected with status %d", reqErr.Status)
		}
		return a.fail(provider, msgs.failure, &domain.AuthError{Provider: provider, Reason: reason, Err: err})
	}

	a.session.Set(provider, cred)
	a.logger.Infow("Authenticated", "provider", provider)
	return Result{OK: true, Message: msgs.success}
}

func (a *Authenticator) fail(provider domain.Provider, message string, err error) Result {
	a.logger.Warnw("Authentication failed", "provider", provider, "error", err)
	return Result{OK: false, Message: message, Err: err}
}

func deriveCredential(provider domain.Provider, creds Credentials) (session.Credential, error) {
	switch provider {
	case domain.ProviderGitHub:
		if creds.Token == "" {
			return session.Credential{}, errors.New("token is empty")
		}
		return session.Credential{Scheme: "Bearer", Value: creds.Token}, nil
	case domain.ProviderBitbucket:
		if creds.Username == "" || creds.AppPassword == "" {
			return session.Credential{}, errors.New("username and app password are required")
		}
		encoded := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.AppPassword))
		return session.Credential{Scheme: "Basic", Value: encoded}, nil
	default:
		return session.Credential{}, fmt.Errorf("unsupported provider %q", provider)
	}
}
