package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second}

	transient := &pipeline.FetchError{URL: "https://fda.gov/x", Err: errors.New("503")}
	require.True(t, p.ShouldRetry(transient, 1))
	require.True(t, p.ShouldRetry(transient, 2))
	require.False(t, p.ShouldRetry(transient, 3), "attempt ceiling reached")

	require.False(t, p.ShouldRetry(nil, 1))
	require.False(t, p.ShouldRetry(&pipeline.AuthorizationError{Domain: "x"}, 1))
	require.False(t, p.ShouldRetry(&pipeline.ServiceUnavailableError{Service: "analysis"}, 1))
	require.False(t, p.ShouldRetry(context.Canceled, 1))

	// A deadline on an external call is transient.
	require.True(t, p.ShouldRetry(context.DeadlineExceeded, 1))
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	for attempt := 0; attempt < 8; attempt++ {
		d := p.Backoff(attempt)
		require.Positive(t, d)
		require.LessOrEqual(t, d, time.Second)
	}
	// Early backoffs stay near the base delay.
	require.LessOrEqual(t, p.Backoff(0), 200*time.Millisecond)
}
