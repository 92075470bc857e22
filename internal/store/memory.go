// Package store provides persistence for items, analyses, domain policies,
// and feed subscriptions.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// Memory is an in-memory implementation of the pipeline store interfaces,
// used for local development and tests. The fingerprint uniqueness rule is
// enforced the same way Postgres enforces it, so ingestion behaves
// identically against either store.
type Memory struct {
	mu       sync.RWMutex
	items    map[string]pipeline.SourceItem // keyed by id
	byFP     map[string]string              // fingerprint -> id
	byURL    map[string]string              // url -> id
	analyses map[string][]pipeline.AnalysisRecord
	policies map[string]pipeline.DomainPolicy
	feeds    map[string]pipeline.FeedSubscription
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		items:    make(map[string]pipeline.SourceItem),
		byFP:     make(map[string]string),
		byURL:    make(map[string]string),
		analyses: make(map[string][]pipeline.AnalysisRecord),
		policies: make(map[string]pipeline.DomainPolicy),
		feeds:    make(map[string]pipeline.FeedSubscription),
	}
}

// InsertItem stores a new source item, returning pipeline.ErrConflict when
// the fingerprint is already present.
func (m *Memory) InsertItem(_ context.Context, item pipeline.SourceItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byFP[item.Fingerprint]; exists {
		return pipeline.ErrConflict
	}
	m.items[item.ID] = item
	m.byFP[item.Fingerprint] = item.ID
	m.byURL[item.URL] = item.ID
	return nil
}

// FindByFingerprint is the deduplication index lookup.
func (m *Memory) FindByFingerprint(_ context.Context, fingerprint string) (pipeline.SourceItem, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byFP[fingerprint]
	if !ok {
		return pipeline.SourceItem{}, false, nil
	}
	return m.items[id], true, nil
}

// FindByURL looks an item up by its origin URL.
func (m *Memory) FindByURL(_ context.Context, url string) (pipeline.SourceItem, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byURL[url]
	if !ok {
		return pipeline.SourceItem{}, false, nil
	}
	return m.items[id], true, nil
}

// GetItem fetches an item by ID.
func (m *Memory) GetItem(_ context.Context, id string) (pipeline.SourceItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return pipeline.SourceItem{}, pipeline.ErrNotFound
	}
	return item, nil
}

// SetBookmarkID records the external bookmark identifier on an item.
func (m *Memory) SetBookmarkID(_ context.Context, id, bookmarkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return pipeline.ErrNotFound
	}
	item.BookmarkID = bookmarkID
	m.items[id] = item
	return nil
}

// InsertAnalysis appends an analysis record for an item.
func (m *Memory) InsertAnalysis(_ context.Context, rec pipeline.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses[rec.ItemID] = append(m.analyses[rec.ItemID], rec)
	return nil
}

// LatestAnalysis returns the newest analysis record for an item.
func (m *Memory) LatestAnalysis(_ context.Context, itemID string) (pipeline.AnalysisRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.analyses[itemID]
	if len(recs) == 0 {
		return pipeline.AnalysisRecord{}, false, nil
	}
	latest := recs[0]
	for _, r := range recs[1:] {
		// Ties go to the later insert, matching the insert-only contract.
		if !r.CreatedAt.Before(latest.CreatedAt) {
			latest = r
		}
	}
	return latest, true, nil
}

// PutPolicy inserts or replaces an allow-list entry.
func (m *Memory) PutPolicy(_ context.Context, p pipeline.DomainPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.Domain] = p
	return nil
}

// ActivePolicies lists active allow-list entries sorted by domain.
func (m *Memory) ActivePolicies(_ context.Context) ([]pipeline.DomainPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]pipeline.DomainPolicy, 0, len(m.policies))
	for _, p := range m.policies {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

// GetPolicy fetches one allow-list entry.
func (m *Memory) GetPolicy(_ context.Context, domain string) (pipeline.DomainPolicy, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[domain]
	return p, ok, nil
}

// SetLastDiscovered stamps a domain after a discovery pass.
func (m *Memory) SetLastDiscovered(_ context.Context, domain string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[domain]
	if !ok {
		return pipeline.ErrNotFound
	}
	p.LastDiscoveredAt = &t
	m.policies[domain] = p
	return nil
}

// PutFeed inserts or replaces a feed subscription.
func (m *Memory) PutFeed(_ context.Context, f pipeline.FeedSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeds[f.ID] = f
	return nil
}

// ListFeeds returns all feed subscriptions sorted by id.
func (m *Memory) ListFeeds(_ context.Context) ([]pipeline.FeedSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]pipeline.FeedSubscription, 0, len(m.feeds))
	for _, f := range m.feeds {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetFeed fetches one feed subscription.
func (m *Memory) GetFeed(_ context.Context, id string) (pipeline.FeedSubscription, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.feeds[id]
	return f, ok, nil
}

// SetLastPolled stamps a feed after a poll attempt.
func (m *Memory) SetLastPolled(_ context.Context, id string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.feeds[id]
	if !ok {
		return pipeline.ErrNotFound
	}
	f.LastPolledAt = &t
	m.feeds[id] = f
	return nil
}
