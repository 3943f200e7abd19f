// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/gateway"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Aggregator is the use case for collecting pull requests with their reviews and
// analyzing them. It orchestrates the gateway calls for one provider.
type Aggregator struct {
	fetcher     gateway.Fetcher
	logger      *zap.SugaredLogger
	concurrency int
}

// NewAggregator creates a new Aggregator instance. concurrency bounds the number of
// review fetches in flight; values below 1 mean sequential fetching.
func NewAggregator(fetcher gateway.Fetcher, logger *zap.SugaredLogger, concurrency int) *Aggregator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Aggregator{
		fetcher:     fetcher,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Collect fetches the pull requests merged in the window and attaches the reviews of
// each one. The result keeps fetch order. Any failure aborts the whole collection.
func (a *Aggregator) Collect(ctx context.Context, repoURL string, daysBack int) ([]*domain.PullRequest, error) {
	repo, err := a.fetcher.ParseRepo(repoURL)
	if err != nil {
		return nil, err
	}
	a.logger.Infow("Usecase: Starting collection...", "provider", a.fetcher.Provider(), "repo", repo.String(), "days_back", daysBack)

	if describer, ok := a.fetcher.(gateway.Describer); ok {
		info, err := describer.DescribeRepository(ctx, repo)
		if err != nil {
			a.logger.Warnw("Could not describe repository", "repo", repo.String(), "error", err)
		} else {
			a.logger.Infow("Repository", "name", info.NameWithOwner, "merged_pull_requests", info.MergedPullRequests)
		}
	}

	prs, err := a.fetcher.FetchPullRequests(ctx, repoURL, daysBack)
	if err != nil {
		return nil, err
	}

	// Each goroutine owns exactly one pull request, so assignments never overlap.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)
	for _, pr := range prs {
		pr := pr
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			reviews, err := a.fetcher.FetchReviews(egCtx, repo, pr.Number)
			if err != nil {
				return fmt.Errorf("failed to fetch reviews of #%d: %w", pr.Number, err)
			}
			pr.Reviews = reviews
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	a.logger.Infow("Usecase: Collection complete.", "pull_requests", len(prs))
	return prs, nil
}

// Run collects the pull requests and returns their analysis. Summaries are
// computed when summarize is set.
func (a *Aggregator) Run(ctx context.Context, repoURL string, daysBack int, keywords []string, summarize bool) (*Report, error) {
	prs, err := a.Collect(ctx, repoURL, daysBack)
	if err != nil {
		return nil, err
	}
	report := &Report{
		Provider:       a.fetcher.Provider(),
		PullRequests:   len(prs),
		AnalysisResult: Analyze(prs, keywords...),
	}
	if summarize {
		if err := report.summarize(); err != nil {
			return nil, err
		}
	}
	return report, nil
}
