package pipeline

import (
	"context"
	"time"
)

// Fetcher retrieves a URL and returns extracted content plus metadata.
// Implementations must verify the allow-list before any network call.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResult, error)
}

// SecondaryExtractor pulls text out of a canonical secondary document (an
// attached PDF or a rendered viewer page). Optional capability: a failure is
// degraded, never fatal.
type SecondaryExtractor interface {
	Extract(ctx context.Context, rawURL string) (string, error)
	Available() bool
}

// ItemStore persists source items. InsertItem returns ErrConflict when the
// fingerprint already exists; FindByFingerprint is the deduplication index.
type ItemStore interface {
	InsertItem(ctx context.Context, item SourceItem) error
	FindByFingerprint(ctx context.Context, fingerprint string) (SourceItem, bool, error)
	FindByURL(ctx context.Context, url string) (SourceItem, bool, error)
	GetItem(ctx context.Context, id string) (SourceItem, error)
	SetBookmarkID(ctx context.Context, id, bookmarkID string) error
}

// AnalysisStore persists analysis records. Records are never mutated.
type AnalysisStore interface {
	InsertAnalysis(ctx context.Context, rec AnalysisRecord) error
	LatestAnalysis(ctx context.Context, itemID string) (AnalysisRecord, bool, error)
}

// PolicyStore holds the domain allow-list.
type PolicyStore interface {
	ActivePolicies(ctx context.Context) ([]DomainPolicy, error)
	GetPolicy(ctx context.Context, domain string) (DomainPolicy, bool, error)
	SetLastDiscovered(ctx context.Context, domain string, t time.Time) error
}

// FeedStore holds feed subscriptions. SetLastPolled is the only mutator of
// the last-polled timestamp, written after every poll attempt.
type FeedStore interface {
	ListFeeds(ctx context.Context) ([]FeedSubscription, error)
	GetFeed(ctx context.Context, id string) (FeedSubscription, bool, error)
	SetLastPolled(ctx context.Context, id string, t time.Time) error
}

// Bookmarker mirrors a stored item into an external bookmark service and
// returns the external identifier.
type Bookmarker interface {
	Create(ctx context.Context, b Bookmark) (string, error)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes outcome events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content fingerprints.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces item and analysis IDs.
type IDGenerator interface {
	NewID() (string, error)
}
