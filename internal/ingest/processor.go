// Package ingest implements the ingestion state machine: authorize, fetch,
// dedup, secondary extraction, classify, persist, then side effects.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/classifier"
	"github.com/hkfcheung/regintel-sub001/internal/metrics"
	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// Request is one ingestion submission. Source and Category are optional
// caller-supplied overrides.
type Request struct {
	URL      string
	Source   string
	Category string
}

// Config bounds the per-call timeouts of the optional capabilities.
type Config struct {
	SecondaryTimeout  time.Duration
	SideEffectTimeout time.Duration
	EventTopic        string
}

// Processor runs one ingestion to a terminal outcome. Bookmarker, blobs,
// and publisher are optional; nil disables the corresponding side effect.
type Processor struct {
	cfg       Config
	fetcher   pipeline.Fetcher
	extractor pipeline.SecondaryExtractor
	items     pipeline.ItemStore
	policies  pipeline.PolicyStore
	bookmarks pipeline.Bookmarker
	blobs     pipeline.BlobStore
	events    pipeline.Publisher
	ids       pipeline.IDGenerator
	clock     pipeline.Clock
	logger    *zap.Logger
}

// New builds a Processor.
func New(
	cfg Config,
	fetcher pipeline.Fetcher,
	extractor pipeline.SecondaryExtractor,
	items pipeline.ItemStore,
	policies pipeline.PolicyStore,
	bookmarks pipeline.Bookmarker,
	blobs pipeline.BlobStore,
	events pipeline.Publisher,
	ids pipeline.IDGenerator,
	clock pipeline.Clock,
	logger *zap.Logger,
) *Processor {
	if cfg.SecondaryTimeout == 0 {
		cfg.SecondaryTimeout = 60 * time.Second
	}
	if cfg.SideEffectTimeout == 0 {
		cfg.SideEffectTimeout = 10 * time.Second
	}
	return &Processor{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		items:     items,
		policies:  policies,
		bookmarks: bookmarks,
		blobs:     blobs,
		events:    events,
		ids:       ids,
		clock:     clock,
		logger:    logger,
	}
}

// Process runs the state machine for one URL. It returns a Created or
// Duplicate outcome on success. Errors are returned for the dispatcher to
// classify: authorization failures are terminal, fetch failures retryable.
// Degraded capabilities never produce an error.
func (p *Processor) Process(ctx context.Context, req Request) (pipeline.Outcome, error) {
	domain, err := pipeline.Authorize(ctx, p.policies, req.URL)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	fetched, err := p.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	if existing, ok, err := p.items.FindByFingerprint(ctx, fetched.Fingerprint); err != nil {
		return pipeline.Outcome{}, fmt.Errorf("dedup lookup: %w", err)
	} else if ok {
		metrics.RecordDedupHit()
		metrics.RecordOutcome(string(pipeline.OutcomeDuplicate))
		p.logger.Info("duplicate content",
			zap.String("url", req.URL),
			zap.String("item_id", existing.ID))
		return pipeline.DuplicateOutcome(existing.ID), nil
	}

	text := fetched.Text
	if secondary := p.extractSecondary(ctx, fetched.SecondaryURL); secondary != "" {
		if text != "" {
			text += "\n\n" + secondary
		} else {
			text = secondary
		}
	}

	category := p.classify(req, fetched.Title)
	source := req.Source
	if source == "" {
		source = domain
	}

	id, err := p.ids.NewID()
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("allocate item id: %w", err)
	}
	now := p.clock.Now().UTC()
	item := pipeline.SourceItem{
		ID:           id,
		URL:          req.URL,
		SecondaryURL: fetched.SecondaryURL,
		Source:       source,
		Category:     category,
		Title:        fetched.Title,
		PublishedAt:  fetched.PublishedAt,
		Fingerprint:  fetched.Fingerprint,
		Status:       pipeline.StatusIntake,
		Tags:         itemTags(source, category, now, fetched.PublishedAt),
		FetchedAt:    now,
	}
	if err := p.items.InsertItem(ctx, item); err != nil {
		if errors.Is(err, pipeline.ErrConflict) {
			return p.conflictAsDuplicate(ctx, req.URL, fetched.Fingerprint)
		}
		return pipeline.Outcome{}, fmt.Errorf("persist item: %w", err)
	}

	p.archive(ctx, item, fetched.RawBody, []byte(text))
	bookmarkID := p.bookmark(ctx, item)
	p.publish(ctx, item, bookmarkID)

	metrics.RecordOutcome(string(pipeline.OutcomeCreated))
	p.logger.Info("item created",
		zap.String("item_id", item.ID),
		zap.String("url", item.URL),
		zap.String("category", string(item.Category)))
	return pipeline.CreatedOutcome(item.ID, bookmarkID), nil
}

// conflictAsDuplicate resolves a unique-constraint race by re-reading the
// winning row. The advisory dedup check ran, so a conflict means another
// worker inserted the same content between check and insert.
func (p *Processor) conflictAsDuplicate(ctx context.Context, url, fingerprint string) (pipeline.Outcome, error) {
	existing, ok, err := p.items.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("resolve conflicting item for %s: %w", url, err)
	}
	if !ok {
		return pipeline.Outcome{}, fmt.Errorf("conflicting item for %s not found after unique violation", url)
	}
	metrics.RecordDedupHit()
	metrics.RecordOutcome(string(pipeline.OutcomeDuplicate))
	p.logger.Info("insert race resolved as duplicate",
		zap.String("url", url),
		zap.String("item_id", existing.ID))
	return pipeline.DuplicateOutcome(existing.ID), nil
}

func (p *Processor) classify(req Request, title string) pipeline.Category {
	if req.Category != "" {
		if c, ok := pipeline.ParseCategory(req.Category); ok {
			return c
		}
		p.logger.Warn("unknown caller category, classifying instead",
			zap.String("category", req.Category))
	}
	return classifier.Classify(req.URL, title)
}

// extractSecondary runs the optional secondary-document extraction. Any
// failure is logged and swallowed.
func (p *Processor) extractSecondary(ctx context.Context, secondaryURL string) string {
	if secondaryURL == "" || p.extractor == nil || !p.extractor.Available() {
		return ""
	}
	extractCtx, cancel := context.WithTimeout(ctx, p.cfg.SecondaryTimeout)
	defer cancel()

	text, err := p.extractor.Extract(extractCtx, secondaryURL)
	if err != nil {
		metrics.RecordDegraded("secondary_extract")
		p.logger.Warn("secondary extraction degraded",
			zap.String("secondary_url", secondaryURL),
			zap.Error(err))
		return ""
	}
	return text
}

// archive stores the raw body and extracted text. Non-fatal.
func (p *Processor) archive(ctx context.Context, item pipeline.SourceItem, raw, text []byte) {
	if p.blobs == nil {
		return
	}
	putCtx, cancel := context.WithTimeout(ctx, p.cfg.SideEffectTimeout)
	defer cancel()

	if uri, err := p.blobs.PutObject(putCtx, "raw/"+item.ID+".html", "text/html", raw); err != nil {
		metrics.RecordDegraded("archive")
		p.logger.Warn("raw archive degraded", zap.String("item_id", item.ID), zap.Error(err))
	} else {
		p.logger.Debug("raw body archived", zap.String("uri", uri))
	}
	if len(text) == 0 {
		return
	}
	if uri, err := p.blobs.PutObject(putCtx, "text/"+item.ID+".txt", "text/plain; charset=utf-8", text); err != nil {
		metrics.RecordDegraded("archive")
		p.logger.Warn("text archive degraded", zap.String("item_id", item.ID), zap.Error(err))
	} else {
		p.logger.Debug("extracted text archived", zap.String("uri", uri))
	}
}

// bookmark mirrors the item into the external bookmark service. Non-fatal:
// the item is already created and stays created.
func (p *Processor) bookmark(ctx context.Context, item pipeline.SourceItem) string {
	if p.bookmarks == nil {
		return ""
	}
	bmCtx, cancel := context.WithTimeout(ctx, p.cfg.SideEffectTimeout)
	defer cancel()

	bookmarkID, err := p.bookmarks.Create(bmCtx, pipeline.Bookmark{
		URL:   item.URL,
		Title: item.Title,
		Tags:  item.Tags,
	})
	if err != nil {
		metrics.RecordDegraded("bookmark")
		p.logger.Warn("bookmark side effect degraded",
			zap.String("item_id", item.ID),
			zap.Error(err))
		return ""
	}
	if err := p.items.SetBookmarkID(ctx, item.ID, bookmarkID); err != nil {
		p.logger.Warn("record bookmark id failed",
			zap.String("item_id", item.ID),
			zap.Error(err))
	}
	return bookmarkID
}

// publish emits the created-item event. Non-fatal.
func (p *Processor) publish(ctx context.Context, item pipeline.SourceItem, bookmarkID string) {
	if p.events == nil || p.cfg.EventTopic == "" {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, p.cfg.SideEffectTimeout)
	defer cancel()

	event := map[string]any{
		"kind":        "item_created",
		"item_id":     item.ID,
		"url":         item.URL,
		"category":    string(item.Category),
		"bookmark_id": bookmarkID,
		"fetched_at":  item.FetchedAt,
	}
	if _, err := p.events.Publish(pubCtx, p.cfg.EventTopic, event); err != nil {
		metrics.RecordDegraded("publish")
		p.logger.Warn("event publish degraded",
			zap.String("item_id", item.ID),
			zap.Error(err))
	}
}

// itemTags builds the source/category/week/status tag set. The week tag
// follows the published date when known, the fetch time otherwise.
func itemTags(source string, category pipeline.Category, fetched time.Time, published *time.Time) []string {
	week := fetched
	if published != nil {
		week = *published
	}
	return []string{
		"source:" + source,
		"category:" + string(category),
		"week:" + pipeline.ISOWeek(week),
		"status:" + string(pipeline.StatusIntake),
	}
}
