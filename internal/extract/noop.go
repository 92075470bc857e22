package extract

import (
	"context"
	"errors"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// Noop is the extractor used when no headless browser is configured. Every
// call degrades, so ingestion proceeds with primary text only.
type Noop struct{}

// NewNoop returns the disabled extractor.
func NewNoop() *Noop { return &Noop{} }

// Available reports that the capability is off.
func (*Noop) Available() bool { return false }

// Extract always degrades.
func (*Noop) Extract(context.Context, string) (string, error) {
	return "", &pipeline.DegradedError{
		Capability: "secondary_extract",
		Err:        errors.New("no extractor configured"),
	}
}
