package domain

import "fmt"

// RepoURLError is returned when a repository URL is malformed or points at a foreign host.
type RepoURLError struct {
	URL string
}

func (e *RepoURLError) Error() string {
	return fmt.Sprintf("%q is not a valid repository URL", e.URL)
}

// AuthError is returned when a provider call cannot be authenticated, either because
// the probe rejected the credentials or because no credential was stored.
type AuthError struct {
	Provider Provider
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s authentication failed: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s authentication failed: %s", e.Provider, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProviderRequestError is returned for any provider response whose status is not 200.
type ProviderRequestError struct {
	Provider Provider
	Status   int
	Reason   string
	URL      string
}

func (e *ProviderRequestError) Error() string {
	return fmt.Sprintf("%s request %s failed with status %d: %s", e.Provider, e.URL, e.Status, e.Reason)
}

// MalformedRecordError is returned when a record from the provider lacks a required
// field or carries an unparsable timestamp. It aborts the whole fetch.
type MalformedRecordError struct {
	Provider Provider
	Field    string
	Record   string
	Err      error
}

func (e *MalformedRecordError) Error() string {
	msg := fmt.Sprintf("malformed %s record %s: field %q", e.Provider, e.Record, e.Field)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }
