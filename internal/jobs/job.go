// Package jobs implements the idempotent job-dispatch layer: deterministic
// job identities, identity-collapsing enqueue, per-class retry policy, and
// worker fan-out over class-specific queues.
package jobs

import (
	"time"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// Class partitions jobs into independent queues and worker pools.
type Class string

// Job classes.
const (
	ClassIngest    Class = "ingest"
	ClassDiscovery Class = "discovery"
	ClassFeedPoll  Class = "feedpoll"
	ClassAnalysis  Class = "analysis"
)

// State represents the lifecycle of a job record.
type State string

// Job state values.
const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether a state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Payload carries per-class job input. Only the fields relevant to the
// job's class are set.
type Payload struct {
	URL      string `json:"url,omitempty"`
	Source   string `json:"source,omitempty"`
	Category string `json:"category,omitempty"`
	ItemID   string `json:"item_id,omitempty"`
	Domain   string `json:"domain,omitempty"`
	FeedID   string `json:"feed_id,omitempty"`
}

// Result is the tagged per-class job output. Exactly one field is set,
// matching the job's class.
type Result struct {
	Outcome    *pipeline.Outcome       `json:"outcome,omitempty"`
	AnalysisID string                  `json:"analysis_id,omitempty"`
	Domains    []pipeline.DomainResult `json:"domains,omitempty"`
	Feeds      []pipeline.PollResult   `json:"feeds,omitempty"`
}

// Job is the record kept for each enqueued unit of work, keyed by its
// deterministic identity.
type Job struct {
	Identity      string     `json:"identity"`
	Class         Class      `json:"class"`
	State         State      `json:"state"`
	Attempts      int        `json:"attempts"`
	Payload       Payload    `json:"payload"`
	Result        *Result    `json:"result,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Submitted     time.Time  `json:"submitted_at"`
	Started       *time.Time `json:"started_at,omitempty"`
	Finished      *time.Time `json:"finished_at,omitempty"`
}
