// Package gateway provides gateways to the GitHub and Bitbucket APIs, normalizing
// their pull requests and review events into domain records.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/session"
	"go.uber.org/zap"
)

// Fetcher defines the behavior of a gateway for fetching pull requests from a provider.
type Fetcher interface {
	Provider() domain.Provider
	ParseRepo(rawURL string) (domain.Repository, error)
	// FetchPullRequests returns the pull requests merged in the last daysBack days,
	// in provider order, with empty review lists.
	FetchPullRequests(ctx context.Context, repoURL string, daysBack int) ([]*domain.PullRequest, error)
	FetchReviews(ctx context.Context, repo domain.Repository, number int) ([]domain.Review, error)
	// Probe issues a cheap "who am I" request authenticated with cred.
	Probe(ctx context.Context, cred session.Credential) error
}

// RepositoryInfo is a short description of a repository used for progress reporting.
type RepositoryInfo struct {
	NameWithOwner      string
	MergedPullRequests int
}

// Describer is implemented by gateways that can describe a repository up front.
type Describer interface {
	DescribeRepository(ctx context.Context, repo domain.Repository) (*RepositoryInfo, error)
}

// Options configures a gateway. Zero values fall back to the public cloud defaults.
type Options struct {
	APIURL     string
	GraphQLURL string
	Host       string
	PageSize   int
	Timeout    time.Duration
	Transport  http.RoundTripper
	Now        func() time.Time
}

func (o Options) withDefaults(apiURL, host string, pageSize int) Options {
	if o.APIURL == "" {
		o.APIURL = apiURL
	}
	if o.Host == "" {
		o.Host = host
	}
	if o.PageSize <= 0 {
		o.PageSize = pageSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) client(sess *session.Session, provider domain.Provider) *http.Client {
	c := sess.Client(provider, o.Transport)
	c.Timeout = o.Timeout
	return c
}

// NewFetcher builds the gateway for provider.
func NewFetcher(provider domain.Provider, sess *session.Session, opts Options, logger *zap.SugaredLogger) (Fetcher, error) {
	switch provider {
	case domain.ProviderGitHub:
		return NewGitHubGateway(sess, opts, logger)
	case domain.ProviderBitbucket:
		return NewBitbucketGateway(sess, opts, logger)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}
