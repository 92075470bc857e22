package jobs

import (
	"encoding/base64"
)

// Identity derivation is deterministic: re-submitting logically-the-same
// request produces the same key, which is what lets the store collapse
// duplicate enqueues. URLs are base64-url encoded so the identity stays a
// flat, path-safe token.

// IngestIdentity derives the identity for an ingestion job from its URL.
func IngestIdentity(rawURL string) string {
	return "ingest:" + base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

// AnalysisIdentity derives the identity for an analysis job from the item id.
func AnalysisIdentity(itemID string) string {
	return "analysis:" + itemID
}

// DiscoveryIdentity derives the identity for a discovery run. An empty
// domain means "all due domains" and collapses onto a single run key.
func DiscoveryIdentity(domain string) string {
	if domain == "" {
		return "discovery:all"
	}
	return "discovery:" + domain
}

// FeedPollIdentity derives the identity for a feed poll run.
func FeedPollIdentity(feedID string) string {
	if feedID == "" {
		return "feedpoll:all"
	}
	return "feedpoll:" + feedID
}
