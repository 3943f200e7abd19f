package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testRepoURL = "https://github.com/any-org/any-repo"

var fixedNow = func() time.Time { return time.Date(2024, 1, 31, 15, 0, 0, 0, time.UTC) }

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler, authenticated bool) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	sess := session.New()
	if authenticated {
		sess.Set(domain.ProviderGitHub, session.Credential{Scheme: "Bearer", Value: "test-token"})
	}
	gateway, err := NewGitHubGateway(sess, Options{
		APIURL:     server.URL + "/",
		GraphQLURL: server.URL + "/graphql",
		PageSize:   2,
		Transport:  server.Client().Transport,
		Now:        fixedNow,
	}, zap.NewNop().Sugar())
	require.NoError(t, err)

	return gateway, server
}

func githubPR(number int, mergedAt string) string {
	merged := "null"
	if mergedAt != "" {
		merged = fmt.Sprintf("%q", mergedAt)
	}
	return fmt.Sprintf(`{"number": %d, "title": "PR %d", "body": "body %d", "merged_at": %s}`, number, number, number, merged)
}

func TestGitHubGateway_FetchPullRequests(t *testing.T) {
	testCases := []struct {
		name             string
		pages            []string
		status           int
		authenticated    bool
		expectedNumbers  []int
		expectedRequests int32
		expectedErr      interface{}
	}{
		{
			name: "happy path - stops at the first pull request merged before the cutoff",
			pages: []string{
				"[" + githubPR(3, "2024-01-10T10:00:00Z") + "," + githubPR(2, "2024-01-05T10:00:00Z") + "]",
				"[" + githubPR(1, "2023-12-01T10:00:00Z") + "," + githubPR(0, "2024-01-20T10:00:00Z") + "]",
				"[" + githubPR(9, "2024-01-21T10:00:00Z") + "]",
			},
			status:           http.StatusOK,
			authenticated:    true,
			expectedNumbers:  []int{3, 2},
			expectedRequests: 2,
		},
		{
			name: "closed but unmerged pull requests are kept",
			pages: []string{
				"[" + githubPR(5, "") + "]",
				"[]",
			},
			status:           http.StatusOK,
			authenticated:    true,
			expectedNumbers:  []int{5},
			expectedRequests: 2,
		},
		{
			name:             "empty case - no pull requests",
			pages:            []string{"[]"},
			status:           http.StatusOK,
			authenticated:    true,
			expectedNumbers:  []int{},
			expectedRequests: 1,
		},
		{
			name:             "error case - GitHub API returns an error",
			pages:            []string{`{"message": "Internal Server Error"}`},
			status:           http.StatusInternalServerError,
			authenticated:    true,
			expectedRequests: 1,
			expectedErr:      new(*domain.ProviderRequestError),
		},
		{
			name:             "error case - pull request without a number",
			pages:            []string{`[{"title": "no number", "merged_at": "2024-01-10T10:00:00Z"}]`},
			status:           http.StatusOK,
			authenticated:    true,
			expectedRequests: 1,
			expectedErr:      new(*domain.MalformedRecordError),
		},
		{
			name:             "error case - not authenticated",
			pages:            []string{"[]"},
			status:           http.StatusOK,
			authenticated:    false,
			expectedRequests: 0,
			expectedErr:      new(*domain.AuthError),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var requests atomic.Int32
			handler := func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				assert.Equal(t, "/repos/any-org/any-repo/pulls", r.URL.Path)
				assert.Equal(t, "closed", r.URL.Query().Get("state"))
				assert.Equal(t, "2", r.URL.Query().Get("per_page"))
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

				var page int
				fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
				w.WriteHeader(tc.status)
				if page >= 1 && page <= len(tc.pages) {
					fmt.Fprint(w, tc.pages[page-1])
					return
				}
				fmt.Fprint(w, "[]")
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler), tc.authenticated)
			defer server.Close()

			prs, err := gateway.FetchPullRequests(context.Background(), testRepoURL, 30)

			assert.Equal(t, tc.expectedRequests, requests.Load())
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.True(t, errors.As(err, tc.expectedErr), "unexpected error type: %v", err)
				assert.Nil(t, prs)
				return
			}
			require.NoError(t, err)
			numbers := make([]int, 0, len(prs))
			for _, pr := range prs {
				numbers = append(numbers, pr.Number)
				assert.NotNil(t, pr.Reviews)
				assert.Empty(t, pr.Reviews)
			}
			assert.Equal(t, tc.expectedNumbers, numbers)
		})
	}
}

func TestGitHubGateway_FetchPullRequestsMapping(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, "[]")
			return
		}
		fmt.Fprint(w, `[{"number": 7, "title": "Fix invoice bug", "body": null, "merged_at": "2024-01-10T08:30:00Z"}]`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler), true)
	defer server.Close()

	prs, err := gateway.FetchPullRequests(context.Background(), testRepoURL, 30)
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, 7, prs[0].Number)
	assert.Equal(t, "Fix invoice bug", prs[0].Title)
	assert.Equal(t, "", prs[0].Body)
	require.NotNil(t, prs[0].MergedAt)
	assert.Equal(t, time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC), *prs[0].MergedAt)
}

func TestGitHubGateway_FetchPullRequestsInvalidURL(t *testing.T) {
	gateway, server := setupTestGateway(t, http.NotFoundHandler(), true)
	defer server.Close()

	_, err := gateway.FetchPullRequests(context.Background(), "https://bitbucket.org/any-org/any-repo", 30)
	var urlErr *domain.RepoURLError
	require.True(t, errors.As(err, &urlErr))
	assert.Equal(t, "https://bitbucket.org/any-org/any-repo", urlErr.URL)
}

func TestGitHubGateway_FetchReviews(t *testing.T) {
	review := func(id int, login, state, submittedAt string) string {
		return fmt.Sprintf(`{"id": %d, "user": {"login": %q}, "state": %q, "submitted_at": %q}`, id, login, state, submittedAt)
	}

	testCases := []struct {
		name             string
		pages            []string
		expectedReviews  []domain.Review
		expectedRequests int32
		expectError      bool
	}{
		{
			name: "happy path - short page ends pagination",
			pages: []string{
				"[" + review(1, "alice", "APPROVED", "2024-01-10T09:00:00Z") + "," + review(2, "bob", "COMMENTED", "2024-01-10T10:00:00Z") + "]",
				"[" + review(3, "carol", "APPROVED", "2024-01-11T09:00:00Z") + "]",
			},
			expectedReviews: []domain.Review{
				{Username: "alice", State: domain.ReviewStateApproved, SubmittedAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)},
				{Username: "bob", State: domain.ReviewStateCommented, SubmittedAt: time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)},
				{Username: "carol", State: domain.ReviewStateApproved, SubmittedAt: time.Date(2024, 1, 11, 9, 0, 0, 0, time.UTC)},
			},
			expectedRequests: 2,
		},
		{
			name:             "empty case - no reviews",
			pages:            []string{"[]"},
			expectedReviews:  []domain.Review{},
			expectedRequests: 1,
		},
		{
			name:             "error case - review without submitted_at",
			pages:            []string{`[{"id": 1, "user": {"login": "alice"}, "state": "APPROVED"}]`},
			expectedRequests: 1,
			expectError:      true,
		},
		{
			name:             "error case - unparsable submitted_at",
			pages:            []string{"[" + review(1, "alice", "APPROVED", "yesterday") + "]"},
			expectedRequests: 1,
			expectError:      true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var requests atomic.Int32
			handler := func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				assert.Equal(t, "/repos/any-org/any-repo/pulls/42/reviews", r.URL.Path)
				var page int
				fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
				if page >= 1 && page <= len(tc.pages) {
					fmt.Fprint(w, tc.pages[page-1])
					return
				}
				fmt.Fprint(w, "[]")
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler), true)
			defer server.Close()

			reviews, err := gateway.FetchReviews(context.Background(), domain.Repository{Owner: "any-org", Name: "any-repo"}, 42)

			assert.Equal(t, tc.expectedRequests, requests.Load())
			if tc.expectError {
				var malformed *domain.MalformedRecordError
				assert.True(t, errors.As(err, &malformed), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedReviews, reviews)
		})
	}
}

func TestGitHubGateway_Probe(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message": "Bad credentials"}`)
			return
		}
		fmt.Fprint(w, `{"login": "octocat"}`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler), false)
	defer server.Close()

	assert.NoError(t, gateway.Probe(context.Background(), session.Credential{Scheme: "Bearer", Value: "good-token"}))

	err := gateway.Probe(context.Background(), session.Credential{Scheme: "Bearer", Value: "bad-token"})
	var reqErr *domain.ProviderRequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusUnauthorized, reqErr.Status)
	assert.Equal(t, "Bad credentials", reqErr.Reason)
}

func TestGitHubGateway_DescribeRepository(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "repository(owner:")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"data":{"repository":{"nameWithOwner":"any-org/any-repo","pullRequests":{"totalCount":42}}}}`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler), true)
	defer server.Close()

	info, err := gateway.DescribeRepository(context.Background(), domain.Repository{Owner: "any-org", Name: "any-repo"})
	require.NoError(t, err)
	assert.Equal(t, &RepositoryInfo{NameWithOwner: "any-org/any-repo", MergedPullRequests: 42}, info)
}
