package usecase

import (
	"strings"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

const dateLayout = "2006-01-02"

// Analyze computes merges per day, approvals per reviewer and keyword hits over prs.
// It only reads its input, so repeated calls return equal results.
//
// Keyword matching is a case-insensitive substring search over title and body; each
// pull request counts at most once per keyword. Keywords that never match are absent.
func Analyze(prs []*domain.PullRequest, keywords ...string) domain.AnalysisResult {
	result := domain.AnalysisResult{
		MergedPRsPerDay: make(map[string]int),
		Approvers:       make(map[string]int),
		KeywordMatches:  make(map[string]int),
	}

	needles := make(map[string]string, len(keywords))
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		needles[kw] = strings.ToLower(kw)
	}

	for _, pr := range prs {
		if pr.MergedAt != nil {
			result.MergedPRsPerDay[pr.MergedAt.UTC().Format(dateLayout)]++
		}

		for _, review := range pr.Reviews {
			if review.State == domain.ReviewStateApproved {
				result.Approvers[review.Username]++
			}
		}

		if len(needles) == 0 {
			continue
		}
		title := strings.ToLower(pr.Title)
		body := strings.ToLower(pr.Body)
		for kw, needle := range needles {
			if strings.Contains(title, needle) || strings.Contains(body, needle) {
				result.KeywordMatches[kw]++
			}
		}
	}
	return result
}
