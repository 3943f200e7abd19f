package usecase

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/naka-gawa/pr-stats/internal/domain"
)

// Distribution describes the values of a frequency table.
type Distribution struct {
	Total  int     `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Report is the analysis of one collection run, as emitted by the CLI and the HTTP server.
type Report struct {
	Provider     domain.Provider `json:"provider"`
	PullRequests int             `json:"pull_requests"`
	domain.AnalysisResult
	MergedPerDaySummary         *Distribution `json:"merged_pr_per_day_summary,omitempty"`
	ApprovalsPerReviewerSummary *Distribution `json:"approvals_per_reviewer_summary,omitempty"`
}

func (r *Report) summarize() error {
	merged, err := Summarize(r.MergedPRsPerDay)
	if err != nil {
		return fmt.Errorf("failed to summarize merges per day: %w", err)
	}
	approvals, err := Summarize(r.Approvers)
	if err != nil {
		return fmt.Errorf("failed to summarize approvals per reviewer: %w", err)
	}
	r.MergedPerDaySummary = &merged
	r.ApprovalsPerReviewerSummary = &approvals
	return nil
}

// Summarize computes descriptive statistics over the values of counter.
// An empty counter yields a zero Distribution.
func Summarize(counter map[string]int) (Distribution, error) {
	if len(counter) == 0 {
		return Distribution{}, nil
	}
	data := make(stats.Float64Data, 0, len(counter))
	total := 0
	for _, v := range counter {
		data = append(data, float64(v))
		total += v
	}

	mean, err := data.Mean()
	if err != nil {
		return Distribution{}, err
	}
	median, err := data.Median()
	if err != nil {
		return Distribution{}, err
	}
	p90, err := data.Percentile(90)
	if err != nil {
		return Distribution{}, err
	}
	maxValue, err := data.Max()
	if err != nil {
		return Distribution{}, err
	}
	return Distribution{Total: total, Mean: mean, Median: median, P90: p90, Max: maxValue}, nil
}
