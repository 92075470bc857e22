package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// ErrConflict is returned by item stores when an insert races a concurrent
// duplicate into the unique fingerprint constraint. The ingestion state
// machine reinterprets it as a Duplicate outcome.
var ErrConflict = errors.New("unique constraint conflict")

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// AuthorizationError marks a URL outside the domain allow-list. It is
// structural, never retried.
type AuthorizationError struct {
	Domain string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("domain %q is not on the allow-list", e.Domain)
}

// FetchError wraps a network or HTTP failure retrieving a URL. Transient:
// the dispatcher retries it under the job's backoff policy.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DegradedError marks the failure of an optional capability (secondary
// extraction, bookmarking, archival, event publish). Logged and swallowed;
// processing continues.
type DegradedError struct {
	Capability string
	Err        error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("%s capability degraded: %v", e.Capability, e.Err)
}

func (e *DegradedError) Unwrap() error { return e.Err }

// ServiceUnavailableError marks an unconfigured external capability. It is a
// configuration problem, so retrying buys nothing.
type ServiceUnavailableError struct {
	Service string
	Reason  string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %s", e.Service, e.Reason)
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// IsDegraded reports whether err is a DegradedError.
func IsDegraded(err error) bool {
	var de *DegradedError
	return errors.As(err, &de)
}

// IsServiceUnavailable reports whether err is a ServiceUnavailableError.
func IsServiceUnavailable(err error) bool {
	var se *ServiceUnavailableError
	return errors.As(err, &se)
}

// Fatal reports whether err should never be retried: structural and
// configuration failures, plus caller cancellation.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	if IsAuthorization(err) || IsServiceUnavailable(err) {
		return true
	}
	return errors.Is(err, context.Canceled)
}
