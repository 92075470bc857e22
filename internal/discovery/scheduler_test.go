package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/jobs"
	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
	"github.com/hkfcheung/regintel-sub001/internal/store"
)

type fakeEnqueuer struct {
	calls []string
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, _ jobs.Class, identity string, _ jobs.Payload) (string, error) {
	f.calls = append(f.calls, identity)
	return identity, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestDomainsDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fresh := now.Add(-time.Hour)
	stale := now.Add(-8 * 24 * time.Hour)

	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.PutPolicy(ctx, pipeline.DomainPolicy{Domain: "never.gov", Active: true}))
	require.NoError(t, mem.PutPolicy(ctx, pipeline.DomainPolicy{Domain: "fresh.gov", Active: true, LastDiscoveredAt: &fresh}))
	require.NoError(t, mem.PutPolicy(ctx, pipeline.DomainPolicy{Domain: "stale.gov", Active: true, LastDiscoveredAt: &stale}))
	require.NoError(t, mem.PutPolicy(ctx, pipeline.DomainPolicy{Domain: "inactive.gov", Active: false}))

	s := New(Config{Interval: 7 * 24 * time.Hour}, mem, mem, &fakeEnqueuer{}, fixedClock{t: now}, zap.NewNop())
	due, err := s.DomainsDue(ctx, now)
	require.NoError(t, err)

	var names []string
	for _, p := range due {
		names = append(names, p.Domain)
	}
	require.ElementsMatch(t, []string{"never.gov", "stale.gov"}, names)
}

func TestRunUnknownDomain(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	s := New(Config{}, mem, mem, &fakeEnqueuer{}, fixedClock{t: time.Now()}, zap.NewNop())

	_, err := s.Run(context.Background(), "unlisted.example.com")
	require.Error(t, err)
	require.True(t, pipeline.IsAuthorization(err))
}

func TestRunInactiveDomain(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.PutPolicy(ctx, pipeline.DomainPolicy{Domain: "paused.gov", Active: false}))

	s := New(Config{}, mem, mem, &fakeEnqueuer{}, fixedClock{t: time.Now()}, zap.NewNop())

	results, err := s.Run(ctx, "paused.gov")
	require.Error(t, err)
	require.True(t, pipeline.IsAuthorization(err))
	require.Empty(t, results)
}

func TestCandidateURL(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"https://example.gov/guidance/2024": true,
		"https://example.gov/doc.pdf":       true,
		"https://example.gov/style.css":     false,
		"https://example.gov/app.js?v=3":    false,
		"https://example.gov/logo.svg":      false,
		"mailto:info@example.gov":           false,
		"javascript:void(0)":                false,
	}
	for link, want := range cases {
		require.Equal(t, want, candidateURL(link), link)
	}
}
