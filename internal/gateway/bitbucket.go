package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/session"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	defaultBitbucketAPIURL   = "https://api.bitbucket.org/2.0"
	defaultBitbucketHost     = "bitbucket.org"
	defaultBitbucketPageSize = 50

	bitbucketWindowLayout = "2006-01-02T15:04:05"
)

// BitbucketGateway is the Bitbucket Cloud implementation of the Fetcher interface.
// The merge window is applied server side through the q filter, and every page is
// followed until the response carries no next link.
type BitbucketGateway struct {
	client *http.Client
	opts   Options
	logger *zap.SugaredLogger
}

type bitbucketPage[T any] struct {
	Values []T     `json:"values"`
	Next   *string `json:"next"`
}

type bitbucketPullRequest struct {
	ID          *int    `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	UpdatedOn   *string `json:"updated_on"`
}

type bitbucketActivity struct {
	Approval *struct {
		Date *string `json:"date"`
		User *struct {
			DisplayName *string `json:"display_name"`
		} `json:"user"`
	} `json:"approval"`
}

type bitbucketErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// pullRequestListOptions is encoded into the pull request list query string.
type pullRequestListOptions struct {
	PageLen int    `url:"pagelen"`
	Page    int    `url:"page"`
	Query   string `url:"q"`
}

type activityListOptions struct {
	PageLen int `url:"pagelen"`
}

// NewBitbucketGateway creates a BitbucketGateway whose requests are authenticated from sess.
func NewBitbucketGateway(sess *session.Session, opts Options, logger *zap.SugaredLogger) (*BitbucketGateway, error) {
	opts = opts.withDefaults(defaultBitbucketAPIURL, defaultBitbucketHost, defaultBitbucketPageSize)
	opts.APIURL = strings.TrimSuffix(opts.APIURL, "/")
	if _, err := url.Parse(opts.APIURL); err != nil {
		return nil, fmt.Errorf("invalid Bitbucket API URL %q: %w", opts.APIURL, err)
	}
	return &BitbucketGateway{
		client: opts.client(sess, domain.ProviderBitbucket),
		opts:   opts,
		logger: logger,
	}, nil
}

func (b *BitbucketGateway) Provider() domain.Provider { return domain.ProviderBitbucket }

func (b *BitbucketGateway) ParseRepo(rawURL string) (domain.Repository, error) {
	return domain.ParseRepoURL(rawURL, b.opts.Host)
}

// Probe calls GET /user with the candidate credential.
func (b *BitbucketGateway) Probe(ctx context.Context, cred session.Credential) error {
	probeClient := &http.Client{
		Timeout: b.opts.Timeout,
		Transport: &oauth2.Transport{
			Base:   b.opts.Transport,
			Source: oauth2.StaticTokenSource(session.StaticToken(cred)),
		},
	}
	var user json.RawMessage
	return b.getJSON(ctx, probeClient, b.opts.APIURL+"/user", &user)
}

// FetchPullRequests collects every merged pull request updated since the cutoff.
func (b *BitbucketGateway) FetchPullRequests(ctx context.Context, repoURL string, daysBack int) ([]*domain.PullRequest, error) {
	repo, err := b.ParseRepo(repoURL)
	if err != nil {
		return nil, err
	}
	cutoff := domain.Cutoff(b.opts.Now(), daysBack)
	endpoint := b.repoEndpoint(repo) + "/pullrequests"
	filter := fmt.Sprintf(`updated_on >= %s AND state = "MERGED"`, cutoff.Format(bitbucketWindowLayout))
	b.logger.Infow("Fetching pull requests", "provider", domain.ProviderBitbucket, "repo", repo.String(), "cutoff", cutoff)

	fetch := func(ctx context.Context, page int) ([]bitbucketPullRequest, int, bool, error) {
		values, err := query.Values(pullRequestListOptions{PageLen: b.opts.PageSize, Page: page, Query: filter})
		if err != nil {
			return nil, 0, false, err
		}
		var body bitbucketPage[bitbucketPullRequest]
		if err := b.getJSON(ctx, b.client, endpoint+"?"+values.Encode(), &body); err != nil {
			return nil, 0, false, fmt.Errorf("failed to list pull requests: %w", err)
		}
		b.logger.Debugw("  Fetched page of pull requests", "page", page, "items", len(body.Values))
		return body.Values, page + 1, body.Next != nil, nil
	}

	prs := make([]*domain.PullRequest, 0)
	seen := make(map[int]struct{})
	visit := func(raw bitbucketPullRequest) (bool, error) {
		pr, err := mapBitbucketPullRequest(raw)
		if err != nil {
			return false, err
		}
		if _, dup := seen[pr.Number]; !dup {
			seen[pr.Number] = struct{}{}
			prs = append(prs, pr)
		}
		return true, nil
	}

	requests, err := paginate(ctx, 1, fetch, visit)
	if err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		b.logger.Infow("No pull requests found in the selected timeframe", "provider", domain.ProviderBitbucket, "repo", repo.String())
	}
	b.logger.Infow("Completed fetching pull requests", "provider", domain.ProviderBitbucket, "count", len(prs), "requests", requests)
	return prs, nil
}

// FetchReviews walks the activity log of one pull request, following next links,
// and keeps only approval entries.
func (b *BitbucketGateway) FetchReviews(ctx context.Context, repo domain.Repository, number int) ([]domain.Review, error) {
	values, err := query.Values(activityListOptions{PageLen: b.opts.PageSize})
	if err != nil {
		return nil, err
	}
	first := fmt.Sprintf("%s/pullrequests/%d/activity?%s", b.repoEndpoint(repo), number, values.Encode())

	fetch := func(ctx context.Context, pageURL string) ([]bitbucketActivity, string, bool, error) {
		var body bitbucketPage[bitbucketActivity]
		if err := b.getJSON(ctx, b.client, pageURL, &body); err != nil {
			return nil, "", false, fmt.Errorf("failed to list activity of #%d: %w", number, err)
		}
		if body.Next == nil {
			return body.Values, "", false, nil
		}
		return body.Values, *body.Next, true, nil
	}

	reviews := make([]domain.Review, 0)
	visit := func(raw bitbucketActivity) (bool, error) {
		if raw.Approval == nil {
			return true, nil
		}
		review, err := mapBitbucketApproval(number, raw)
		if err != nil {
			return false, err
		}
		reviews = append(reviews, review)
		return true, nil
	}

	if _, err := paginate(ctx, first, fetch, visit); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (b *BitbucketGateway) repoEndpoint(repo domain.Repository) string {
	return fmt.Sprintf("%s/repositories/%s/%s", b.opts.APIURL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name))
}

// getJSON issues a GET and decodes a 200 response into out.
func (b *BitbucketGateway) getJSON(ctx context.Context, client *http.Client, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		reason := http.StatusText(resp.StatusCode)
		var errBody bitbucketErrorBody
		if data, err := io.ReadAll(resp.Body); err == nil && json.Unmarshal(data, &errBody) == nil && errBody.Error.Message != "" {
			reason = errBody.Error.Message
		}
		return &domain.ProviderRequestError{
			Provider: domain.ProviderBitbucket,
			Status:   resp.StatusCode,
			Reason:   reason,
			URL:      rawURL,
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.MalformedRecordError{Provider: domain.ProviderBitbucket, Field: "response", Record: rawURL, Err: err}
	}
	return nil
}

func mapBitbucketPullRequest(raw bitbucketPullRequest) (*domain.PullRequest, error) {
	record := "pull request"
	if raw.ID != nil {
		record = fmt.Sprintf("#%d", *raw.ID)
	}
	malformed := func(field string, err error) error {
		return &domain.MalformedRecordError{Provider: domain.ProviderBitbucket, Field: field, Record: record, Err: err}
	}
	switch {
	case raw.ID == nil:
		return nil, malformed("id", nil)
	case raw.Title == nil:
		return nil, malformed("title", nil)
	case raw.UpdatedOn == nil:
		return nil, malformed("updated_on", nil)
	}
	mergedAt, err := domain.ParseTimestamp(*raw.UpdatedOn)
	if err != nil {
		return nil, malformed("updated_on", err)
	}
	pr := &domain.PullRequest{
		Number:   *raw.ID,
		Title:    *raw.Title,
		MergedAt: &mergedAt,
		Reviews:  []domain.Review{},
	}
	if raw.Description != nil {
		pr.Body = *raw.Description
	}
	return pr, nil
}

func mapBitbucketApproval(number int, raw bitbucketActivity) (domain.Review, error) {
	malformed := func(field string, err error) error {
		return &domain.MalformedRecordError{
			Provider: domain.ProviderBitbucket,
			Field:    field,
			Record:   fmt.Sprintf("approval on #%d", number),
			Err:      err,
		}
	}
	approval := raw.Approval
	if approval.User == nil || approval.User.DisplayName == nil {
		return domain.Review{}, malformed("approval.user.display_name", nil)
	}
	if approval.Date == nil {
		return domain.Review{}, malformed("approval.date", nil)
	}
	submittedAt, err := domain.ParseTimestamp(*approval.Date)
	if err != nil {
		return domain.Review{}, malformed("approval.date", err)
	}
	return domain.Review{
		Username:    *approval.User.DisplayName,
		State:       domain.ReviewStateApproved,
		SubmittedAt: submittedAt,
	}, nil
}
