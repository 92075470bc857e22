package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

func TestMemoryItemFingerprintUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	first := pipeline.SourceItem{
		ID:          "item-1",
		URL:         "https://fda.gov/guidance/a",
		Source:      "fda.gov",
		Category:    pipeline.CategoryGuidance,
		Fingerprint: "fp-1",
		Status:      pipeline.StatusIntake,
		FetchedAt:   time.Now().UTC(),
	}
	require.NoError(t, m.InsertItem(ctx, first))

	// Same content via a different URL conflicts on the fingerprint.
	second := first
	second.ID = "item-2"
	second.URL = "https://fda.gov/guidance/a?utm=feed"
	require.ErrorIs(t, m.InsertItem(ctx, second), pipeline.ErrConflict)

	got, ok, err := m.FindByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "item-1", got.ID)

	_, ok, err = m.FindByFingerprint(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, ok)

	byURL, ok, err := m.FindByURL(ctx, "https://fda.gov/guidance/a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "item-1", byURL.ID)
}

func TestMemoryBookmarkUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertItem(ctx, pipeline.SourceItem{ID: "item-1", Fingerprint: "fp", URL: "u"}))
	require.NoError(t, m.SetBookmarkID(ctx, "item-1", "bm-9"))

	item, err := m.GetItem(ctx, "item-1")
	require.NoError(t, err)
	require.Equal(t, "bm-9", item.BookmarkID)

	require.ErrorIs(t, m.SetBookmarkID(ctx, "missing", "x"), pipeline.ErrNotFound)
}

func TestMemoryLatestAnalysis(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, m.InsertAnalysis(ctx, pipeline.AnalysisRecord{ID: "a1", ItemID: "item-1", CreatedAt: base}))
	require.NoError(t, m.InsertAnalysis(ctx, pipeline.AnalysisRecord{ID: "a2", ItemID: "item-1", CreatedAt: base.Add(time.Hour)}))

	latest, ok, err := m.LatestAnalysis(ctx, "item-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a2", latest.ID)

	_, ok, err = m.LatestAnalysis(ctx, "item-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryPolicyAndFeedStamps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutPolicy(ctx, pipeline.DomainPolicy{Domain: "fda.gov", Active: true}))
	require.NoError(t, m.PutPolicy(ctx, pipeline.DomainPolicy{Domain: "old.gov", Active: false}))

	active, err := m.ActivePolicies(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "fda.gov", active[0].Domain)

	now := time.Now().UTC()
	require.NoError(t, m.SetLastDiscovered(ctx, "fda.gov", now))
	p, ok, err := m.GetPolicy(ctx, "fda.gov")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, p.LastDiscoveredAt)
	require.Equal(t, now, *p.LastDiscoveredAt)

	require.NoError(t, m.PutFeed(ctx, pipeline.FeedSubscription{ID: "feed-1", URL: "https://fda.gov/rss"}))
	require.NoError(t, m.SetLastPolled(ctx, "feed-1", now))
	f, ok, err := m.GetFeed(ctx, "feed-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, now, *f.LastPolledAt)
}
