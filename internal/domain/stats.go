// Package domain contains the core data structures and domain logic for the application.
package domain

// AnalysisResult holds the frequency tables computed over a set of pull requests.
// It is the core output of this application.
type AnalysisResult struct {
	MergedPRsPerDay map[string]int `json:"merged_pr_counter_per_day"`
	Approvers       map[string]int `json:"approvers_counter"`
	KeywordMatches  map[string]int `json:"str_matches_counter"`
}
