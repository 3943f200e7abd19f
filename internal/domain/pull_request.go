package domain

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies a hosted code-review platform.
type Provider string

const (
	ProviderGitHub    Provider = "github"
	ProviderBitbucket Provider = "bitbucket"
)

// Providers lists every supported provider.
var Providers = []Provider{ProviderGitHub, ProviderBitbucket}

// ParseProvider converts a user supplied name into a Provider.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case ProviderGitHub, ProviderBitbucket:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider %q (expected github or bitbucket)", name)
	}
}

// ReviewState is the state of a review event as reported by the provider.
// Unknown states are kept verbatim.
type ReviewState string

const (
	ReviewStateApproved         ReviewState = "APPROVED"
	ReviewStateChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewStateCommented        ReviewState = "COMMENTED"
	ReviewStateDismissed        ReviewState = "DISMISSED"
	ReviewStatePending          ReviewState = "PENDING"
)

// Review is a single review or approval event on a pull request.
type Review struct {
	Username    string      `json:"username"`
	State       ReviewState `json:"state"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// PullRequest is the provider-independent representation of a pull request.
// MergedAt is nil for pull requests that were closed without being merged.
type PullRequest struct {
	Number   int        `json:"number"`
	Title    string     `json:"title"`
	Body     string     `json:"body"`
	MergedAt *time.Time `json:"merged_at"`
	Reviews  []Review   `json:"reviews"`
}

// Repository identifies a repository on a provider. Owner is the GitHub
// owner or the Bitbucket workspace.
type Repository struct {
	Owner string
	Name  string
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}
