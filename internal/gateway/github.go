package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/session"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	defaultGitHubAPIURL     = "https://api.github.com/"
	defaultGitHubGraphQLURL = "https://api.github.com/graphql"
	defaultGitHubHost       = "github.com"
	defaultGitHubPageSize   = 100
)

// GitHubGateway is the GitHub implementation of the Fetcher interface. Pull requests
// are listed page by page, newest first, and paging stops at the first pull request
// merged before the window.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	opts          Options
	logger        *zap.SugaredLogger
}

// repositoryQuery fetches the repository summary used for progress reporting.
type repositoryQuery struct {
	Repository struct {
		NameWithOwner string
		PullRequests  struct {
			TotalCount int
		} `graphql:"pullRequests(states: MERGED)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubGateway creates a GitHubGateway whose requests are authenticated from sess.
func NewGitHubGateway(sess *session.Session, opts Options, logger *zap.SugaredLogger) (*GitHubGateway, error) {
	opts = opts.withDefaults(defaultGitHubAPIURL, defaultGitHubHost, defaultGitHubPageSize)
	if opts.GraphQLURL == "" {
		opts.GraphQLURL = defaultGitHubGraphQLURL
	}
	httpClient := opts.client(sess, domain.ProviderGitHub)

	restClient, err := newRESTClient(httpClient, opts.APIURL)
	if err != nil {
		return nil, err
	}
	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: githubv4.NewEnterpriseClient(opts.GraphQLURL, httpClient),
		opts:          opts,
		logger:        logger,
	}, nil
}

func newRESTClient(httpClient *http.Client, apiURL string) (*github.Client, error) {
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	baseURL, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
	}
	client := github.NewClient(httpClient)
	client.BaseURL = baseURL
	return client, nil
}

func (g *GitHubGateway) Provider() domain.Provider { return domain.ProviderGitHub }

func (g *GitHubGateway) ParseRepo(rawURL string) (domain.Repository, error) {
	return domain.ParseRepoURL(rawURL, g.opts.Host)
}

// Probe calls GET /user with the candidate token.
func (g *GitHubGateway) Probe(ctx context.Context, cred session.Credential) error {
	probeClient, err := newRESTClient(&http.Client{
		Timeout: g.opts.Timeout,
		Transport: &oauth2.Transport{
			Base:   g.opts.Transport,
			Source: oauth2.StaticTokenSource(session.StaticToken(cred)),
		},
	}, g.restClient.BaseURL.String())
	if err != nil {
		return err
	}
	_, resp, err := probeClient.Users.Get(ctx, "")
	return g.checkResponse(resp, err)
}

// FetchPullRequests lists closed pull requests page by page. Items are assumed to arrive
// newest first, so the first one merged before the cutoff ends the fetch.
func (g *GitHubGateway) FetchPullRequests(ctx context.Context, repoURL string, daysBack int) ([]*domain.PullRequest, error) {
	repo, err := g.ParseRepo(repoURL)
	if err != nil {
		return nil, err
	}
	cutoff := domain.Cutoff(g.opts.Now(), daysBack)
	g.logger.Infow("Fetching pull requests", "provider", domain.ProviderGitHub, "repo", repo.String(), "cutoff", cutoff)

	fetch := func(ctx context.Context, page int) ([]*github.PullRequest, int, bool, error) {
		opts := &github.PullRequestListOptions{
			State:       "closed",
			ListOptions: github.ListOptions{PerPage: g.opts.PageSize, Page: page},
		}
		raw, resp, err := g.restClient.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
		if err := g.checkResponse(resp, err); err != nil {
			return nil, 0, false, fmt.Errorf("failed to list pull requests: %w", err)
		}
		g.logger.Debugw("  Fetched page of pull requests", "page", page, "items", len(raw))
		return raw, page + 1, len(raw) > 0, nil
	}

	prs := make([]*domain.PullRequest, 0)
	seen := make(map[int]struct{})
	visit := func(raw *github.PullRequest) (bool, error) {
		pr, err := mapGitHubPullRequest(raw)
		if err != nil {
			return false, err
		}
		if pr.MergedAt != nil && pr.MergedAt.Before(cutoff) {
			g.logger.Debugw("  Reached pull request merged before cutoff", "number", pr.Number, "merged_at", pr.MergedAt)
			return false, nil
		}
		if _, dup := seen[pr.Number]; dup {
			return true, nil
		}
		seen[pr.Number] = struct{}{}
		prs = append(prs, pr)
		return true, nil
	}

	requests, err := paginate(ctx, 1, fetch, visit)
	if err != nil {
		return nil, err
	}
	g.logger.Infow("Completed fetching pull requests", "provider", domain.ProviderGitHub, "count", len(prs), "requests", requests)
	return prs, nil
}

// FetchReviews lists the reviews of one pull request until a short page is returned.
func (g *GitHubGateway) FetchReviews(ctx context.Context, repo domain.Repository, number int) ([]domain.Review, error) {
	fetch := func(ctx context.Context, page int) ([]*github.PullRequestReview, int, bool, error) {
		opts := &github.ListOptions{PerPage: g.opts.PageSize, Page: page}
		raw, resp, err := g.restClient.PullRequests.ListReviews(ctx, repo.Owner, repo.Name, number, opts)
		if err := g.checkResponse(resp, err); err != nil {
			return nil, 0, false, fmt.Errorf("failed to list reviews of #%d: %w", number, err)
		}
		return raw, page + 1, len(raw) >= g.opts.PageSize, nil
	}

	reviews := make([]domain.Review, 0)
	visit := func(raw *github.PullRequestReview) (bool, error) {
		review, err := mapGitHubReview(number, raw)
		if err != nil {
			return false, err
		}
		reviews = append(reviews, review)
		return true, nil
	}

	if _, err := paginate(ctx, 1, fetch, visit); err != nil {
		return nil, err
	}
	return reviews, nil
}

// DescribeRepository fetches the repository name and merged pull request total via GraphQL.
func (g *GitHubGateway) DescribeRepository(ctx context.Context, repo domain.Repository) (*RepositoryInfo, error) {
	var q repositoryQuery
	variables := map[string]interface{}{
		"owner": githubv4.String(repo.Owner),
		"name":  githubv4.String(repo.Name),
	}
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to execute GraphQL query for repository: %w", err)
	}
	return &RepositoryInfo{
		NameWithOwner:      q.Repository.NameWithOwner,
		MergedPullRequests: q.Repository.PullRequests.TotalCount,
	}, nil
}

// checkResponse converts go-github failures into domain errors. Any status other
// than 200 is a failure, including the 2xx codes go-github accepts.
func (g *GitHubGateway) checkResponse(resp *github.Response, err error) error {
	var (
		errResp   *github.ErrorResponse
		rateErr   *github.RateLimitError
		abuseErr  *github.AbuseRateLimitError
		parseErr  *time.ParseError
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case err == nil:
	case errors.As(err, &errResp):
		return githubRequestError(errResp.Response, errResp.Message)
	case errors.As(err, &rateErr):
		return githubRequestError(rateErr.Response, rateErr.Message)
	case errors.As(err, &abuseErr):
		return githubRequestError(abuseErr.Response, abuseErr.Message)
	case errors.As(err, &parseErr), errors.As(err, &typeErr), errors.As(err, &syntaxErr):
		return &domain.MalformedRecordError{Provider: domain.ProviderGitHub, Field: "response", Record: "page", Err: err}
	}
	if resp != nil && resp.Response != nil && resp.StatusCode != http.StatusOK {
		return githubRequestError(resp.Response, "")
	}
	return err
}

func githubRequestError(resp *http.Response, reason string) error {
	e := &domain.ProviderRequestError{Provider: domain.ProviderGitHub, Reason: reason}
	if resp == nil {
		return e
	}
	e.Status = resp.StatusCode
	if e.Reason == "" {
		e.Reason = http.StatusText(resp.StatusCode)
	}
	if resp.Request != nil && resp.Request.URL != nil {
		e.URL = resp.Request.URL.String()
	}
	return e
}

func mapGitHubPullRequest(raw *github.PullRequest) (*domain.PullRequest, error) {
	malformed := func(field string) error {
		record := "pull request"
		if raw.Number != nil {
			record = fmt.Sprintf("#%d", raw.GetNumber())
		}
		return &domain.MalformedRecordError{Provider: domain.ProviderGitHub, Field: field, Record: record}
	}
	if raw.Number == nil {
		return nil, malformed("number")
	}
	if raw.Title == nil {
		return nil, malformed("title")
	}
	pr := &domain.PullRequest{
		Number:  raw.GetNumber(),
		Title:   raw.GetTitle(),
		Body:    raw.GetBody(),
		Reviews: []domain.Review{},
	}
	if raw.MergedAt != nil {
		mergedAt := raw.MergedAt.Time.UTC()
		pr.MergedAt = &mergedAt
	}
	return pr, nil
}

func mapGitHubReview(number int, raw *github.PullRequestReview) (domain.Review, error) {
	malformed := func(field string) error {
		return &domain.MalformedRecordError{
			Provider: domain.ProviderGitHub,
			Field:    field,
			Record:   fmt.Sprintf("review %d of #%d", raw.GetID(), number),
		}
	}
	switch {
	case raw.User == nil || raw.User.Login == nil:
		return domain.Review{}, malformed("user.login")
	case raw.State == nil:
		return domain.Review{}, malformed("state")
	case raw.SubmittedAt == nil:
		return domain.Review{}, malformed("submitted_at")
	}
	return domain.Review{
		Username:    raw.User.GetLogin(),
		State:       domain.ReviewState(raw.GetState()),
		SubmittedAt: raw.SubmittedAt.Time.UTC(),
	}, nil
}
