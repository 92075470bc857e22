package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorPredicates(t *testing.T) {
	t.Parallel()

	authErr := fmt.Errorf("ingest: %w", &AuthorizationError{Domain: "evil.example.com"})
	require.True(t, IsAuthorization(authErr))
	require.True(t, Fatal(authErr))

	fetchErr := &FetchError{URL: "https://fda.gov/doc", Err: errors.New("connection reset")}
	require.False(t, IsAuthorization(fetchErr))
	require.False(t, Fatal(fetchErr))

	degraded := &DegradedError{Capability: "bookmark", Err: errors.New("503")}
	require.True(t, IsDegraded(fmt.Errorf("wrapped: %w", degraded)))
	require.False(t, Fatal(degraded))

	unavail := &ServiceUnavailableError{Service: "analysis", Reason: "no api key"}
	require.True(t, IsServiceUnavailable(unavail))
	require.True(t, Fatal(unavail))

	require.True(t, Fatal(context.Canceled))
	require.False(t, Fatal(context.DeadlineExceeded))
	require.False(t, Fatal(nil))
}

func TestFetchErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("dial tcp: timeout")
	err := &FetchError{URL: "https://sec.gov/a", Err: inner}
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "sec.gov")
}
