// Package analysis runs the external analysis capability over stored items
// and persists insert-only analysis records.
package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// Finding is what one capability run produces for an item.
type Finding struct {
	Summary   string   `json:"summary"`
	Impact    string   `json:"impact"`
	Citations []string `json:"citations,omitempty"`
}

// Capability is the external analysis backend. Available is checked before
// every run; an unavailable capability fails fast instead of burning
// retries on a configuration problem.
type Capability interface {
	Available() bool
	Analyze(ctx context.Context, item pipeline.SourceItem) (Finding, map[string]string, error)
}

// Config bounds one analysis run.
type Config struct {
	Timeout time.Duration
}

// Orchestrator coordinates capability runs and record persistence. Records
// are never deduplicated: re-analysis is explicit, and the newest record is
// authoritative.
type Orchestrator struct {
	cfg        Config
	capability Capability
	items      pipeline.ItemStore
	analyses   pipeline.AnalysisStore
	ids        pipeline.IDGenerator
	clock      pipeline.Clock
	logger     *zap.Logger
}

// New builds an Orchestrator.
func New(cfg Config, capability Capability, items pipeline.ItemStore, analyses pipeline.AnalysisStore, ids pipeline.IDGenerator, clock pipeline.Clock, logger *zap.Logger) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Orchestrator{
		cfg:        cfg,
		capability: capability,
		items:      items,
		analyses:   analyses,
		ids:        ids,
		clock:      clock,
		logger:     logger,
	}
}

// Analyze runs the capability for one item and persists exactly one new
// record.
func (o *Orchestrator) Analyze(ctx context.Context, itemID string) (pipeline.AnalysisRecord, error) {
	if o.capability == nil || !o.capability.Available() {
		return pipeline.AnalysisRecord{}, &pipeline.ServiceUnavailableError{
			Service: "analysis",
			Reason:  "no analysis capability configured",
		}
	}

	item, err := o.items.GetItem(ctx, itemID)
	if err != nil {
		return pipeline.AnalysisRecord{}, fmt.Errorf("load item %s: %w", itemID, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	finding, meta, err := o.capability.Analyze(runCtx, item)
	if err != nil {
		return pipeline.AnalysisRecord{}, fmt.Errorf("analyze item %s: %w", itemID, err)
	}

	id, err := o.ids.NewID()
	if err != nil {
		return pipeline.AnalysisRecord{}, fmt.Errorf("allocate analysis id: %w", err)
	}
	rec := pipeline.AnalysisRecord{
		ID:        id,
		ItemID:    itemID,
		Summary:   finding.Summary,
		Impact:    finding.Impact,
		Citations: finding.Citations,
		ModelMeta: meta,
		CreatedAt: o.clock.Now().UTC(),
	}
	if err := o.analyses.InsertAnalysis(ctx, rec); err != nil {
		return pipeline.AnalysisRecord{}, fmt.Errorf("persist analysis: %w", err)
	}

	o.logger.Info("analysis recorded",
		zap.String("analysis_id", rec.ID),
		zap.String("item_id", itemID))
	return rec, nil
}

// Existing returns the latest analysis record for an item, if any. The
// submit path uses it to short-circuit re-submission of analyzed items.
func (o *Orchestrator) Existing(ctx context.Context, itemID string) (pipeline.AnalysisRecord, bool, error) {
	return o.analyses.LatestAnalysis(ctx, itemID)
}
