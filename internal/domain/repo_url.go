package domain

import (
	"net/url"
	"strings"
)

// ParseRepoURL extracts the owner and repository name from a repository URL on host.
// The owner and name are the second and third path segments; anything after them
// (branches, commits, query strings) is ignored.
func ParseRepoURL(rawURL, host string) (Repository, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(u.Hostname(), host) {
		return Repository{}, &RepoURLError{URL: rawURL}
	}
	segments := strings.Split(u.Path, "/")
	if len(segments) < 3 || segments[1] == "" || segments[2] == "" {
		return Repository{}, &RepoURLError{URL: rawURL}
	}
	return Repository{Owner: segments[1], Name: segments[2]}, nil
}
