// Package pipeline defines core types shared across the acquisition subsystems.
package pipeline

import (
	"time"
)

// Category classifies a source item into a fixed document taxonomy.
type Category string

// Document categories assigned by the classifier.
const (
	CategoryGuidance    Category = "guidance"
	CategoryRulemaking  Category = "rulemaking"
	CategoryEnforcement Category = "enforcement"
	CategoryMeeting     Category = "meeting"
	CategoryNotice      Category = "notice"
	CategoryReport      Category = "report"
	CategoryOther       Category = "other"
)

// ParseCategory maps a string onto a known Category.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryGuidance, CategoryRulemaking, CategoryEnforcement,
		CategoryMeeting, CategoryNotice, CategoryReport, CategoryOther:
		return Category(s), true
	default:
		return "", false
	}
}

// ItemStatus represents the review lifecycle of a source item. The pipeline
// only ever writes StatusIntake; later transitions belong to human review.
type ItemStatus string

// Item status values persisted in the item store.
const (
	StatusIntake   ItemStatus = "intake"
	StatusReview   ItemStatus = "review"
	StatusApproved ItemStatus = "approved"
	StatusRejected ItemStatus = "rejected"
)

// SourceItem is a discovered document. Uniqueness is per content
// fingerprint, not per URL: the same document reachable through two URLs
// yields exactly one row.
type SourceItem struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	SecondaryURL string     `json:"secondary_url,omitempty"`
	Source       string     `json:"source"`
	Category     Category   `json:"category"`
	Title        string     `json:"title"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Fingerprint  string     `json:"fingerprint"`
	Status       ItemStatus `json:"status"`
	Tags         []string   `json:"tags,omitempty"`
	BookmarkID   string     `json:"bookmark_id,omitempty"`
	FetchedAt    time.Time  `json:"fetched_at"`
}

// AnalysisRecord is the output of one analysis run for a source item.
// Records are insert-only; the newest by CreatedAt is authoritative.
type AnalysisRecord struct {
	ID        string            `json:"id"`
	ItemID    string            `json:"item_id"`
	Summary   string            `json:"summary"`
	Impact    string            `json:"impact"`
	Citations []string          `json:"citations,omitempty"`
	ModelMeta map[string]string `json:"model_meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// DomainPolicy is one allow-listed source domain. The policy set is the sole
// authorization boundary for what may be fetched.
type DomainPolicy struct {
	Domain           string     `json:"domain"`
	Active           bool       `json:"active"`
	Description      string     `json:"description,omitempty"`
	LastDiscoveredAt *time.Time `json:"last_discovered_at,omitempty"`
}

// FeedSubscription is one polled feed.
type FeedSubscription struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`
}

// FetchResult is what the source fetcher returns for one URL.
type FetchResult struct {
	Title        string
	Text         string
	Fingerprint  string
	SecondaryURL string
	PublishedAt  *time.Time
	RawBody      []byte
	StatusCode   int
}

// Bookmark is the narrow payload mirrored to the external bookmark service.
type Bookmark struct {
	URL   string
	Title string
	Tags  []string
}

// DomainResult reports one discovery pass over a domain. Per-URL errors are
// collected, never raised, so one bad link cannot abort the rest.
type DomainResult struct {
	Domain     string   `json:"domain"`
	URLsFound  int      `json:"urls_found"`
	URLsQueued int      `json:"urls_queued"`
	Errors     []string `json:"errors,omitempty"`
}

// PollResult reports one poll of a feed subscription.
type PollResult struct {
	FeedID      string   `json:"feed_id"`
	ItemsFound  int      `json:"items_found"`
	ItemsQueued int      `json:"items_queued"`
	Errors      []string `json:"errors,omitempty"`
}
