package pipeline

// OutcomeKind tags the terminal outcome of one ingestion run.
type OutcomeKind string

// Terminal outcome kinds.
const (
	OutcomeCreated   OutcomeKind = "created"
	OutcomeDuplicate OutcomeKind = "duplicate"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the tagged result of an ingestion run. Exactly one constructor
// below produces each kind; callers switch on Kind.
type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	ItemID     string      `json:"item_id,omitempty"`
	BookmarkID string      `json:"bookmark_id,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// CreatedOutcome reports a newly stored item. BookmarkID is empty when the
// bookmark side-effect was skipped or degraded.
func CreatedOutcome(itemID, bookmarkID string) Outcome {
	return Outcome{Kind: OutcomeCreated, ItemID: itemID, BookmarkID: bookmarkID}
}

// DuplicateOutcome reports already-seen content. This is a success, not an
// error: ItemID references the existing row.
func DuplicateOutcome(itemID string) Outcome {
	return Outcome{Kind: OutcomeDuplicate, ItemID: itemID}
}

// FailedOutcome reports a terminal failure with an operator-visible reason.
func FailedOutcome(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}
