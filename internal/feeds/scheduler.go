// Package feeds polls RSS/Atom subscriptions on a cadence and feeds new
// entries into the ingestion queue.
package feeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/jobs"
	"github.com/hkfcheung/regintel-sub001/internal/metrics"
	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// Enqueuer is the slice of the dispatcher the scheduler needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, class jobs.Class, identity string, payload jobs.Payload) (string, error)
}

// feedParser is the gofeed seam, swappable in tests.
type feedParser interface {
	ParseURLWithContext(feedURL string, ctx context.Context) (*gofeed.Feed, error)
}

// Config bounds one poll cycle.
type Config struct {
	Interval   time.Duration
	MaxPerFeed int
	Timeout    time.Duration
}

// Scheduler polls due feed subscriptions. It never retries within a cycle;
// the next due cycle is the retry.
type Scheduler struct {
	cfg    Config
	feeds  pipeline.FeedStore
	items  pipeline.ItemStore
	enq    Enqueuer
	parser feedParser
	clock  pipeline.Clock
	logger *zap.Logger
}

// New builds a Scheduler.
func New(cfg Config, feeds pipeline.FeedStore, items pipeline.ItemStore, enq Enqueuer, clock pipeline.Clock, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxPerFeed <= 0 {
		cfg.MaxPerFeed = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Scheduler{
		cfg:    cfg,
		feeds:  feeds,
		items:  items,
		enq:    enq,
		parser: gofeed.NewParser(),
		clock:  clock,
		logger: logger,
	}
}

// FeedsDue returns subscriptions never polled or last polled at least one
// interval ago. Read-only.
func (s *Scheduler) FeedsDue(ctx context.Context, now time.Time) ([]pipeline.FeedSubscription, error) {
	subs, err := s.feeds.ListFeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	var due []pipeline.FeedSubscription
	for _, f := range subs {
		if f.LastPolledAt == nil || now.Sub(*f.LastPolledAt) >= s.cfg.Interval {
			due = append(due, f)
		}
	}
	return due, nil
}

// Run polls one named feed, or every due feed when the id is empty.
func (s *Scheduler) Run(ctx context.Context, feedID string) ([]pipeline.PollResult, error) {
	if feedID != "" {
		feed, ok, err := s.feeds.GetFeed(ctx, feedID)
		if err != nil {
			return nil, fmt.Errorf("load feed %q: %w", feedID, err)
		}
		if !ok {
			return nil, fmt.Errorf("feed %q: %w", feedID, pipeline.ErrNotFound)
		}
		return []pipeline.PollResult{s.pollFeed(ctx, feed)}, nil
	}

	due, err := s.FeedsDue(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	results := make([]pipeline.PollResult, 0, len(due))
	for _, feed := range due {
		results = append(results, s.pollFeed(ctx, feed))
	}
	return results, nil
}

// pollFeed fetches current entries and queues ingestion for each unseen
// one. The last-polled timestamp is written after every attempt, success
// or failure, so a bad poll waits out a full interval instead of storming.
func (s *Scheduler) pollFeed(ctx context.Context, feed pipeline.FeedSubscription) (result pipeline.PollResult) {
	result = pipeline.PollResult{FeedID: feed.ID}
	// Named return: the deferred stamp failure must land in the caller's copy.
	defer func() {
		if err := s.feeds.SetLastPolled(ctx, feed.ID, s.clock.Now().UTC()); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record poll time: %v", err))
		}
	}()

	parseCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	parsed, err := s.parser.ParseURLWithContext(feed.URL, parseCtx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("parse feed: %v", err))
		return result
	}

	for _, entry := range parsed.Items {
		if result.ItemsFound >= s.cfg.MaxPerFeed {
			break
		}
		link := entryLink(entry)
		if link == "" {
			continue
		}
		result.ItemsFound++

		if _, ok, err := s.items.FindByURL(ctx, link); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("lookup %s: %v", link, err))
			continue
		} else if ok {
			continue
		}
		payload := jobs.Payload{URL: link, Source: feedSource(feed)}
		if _, err := s.enq.Enqueue(ctx, jobs.ClassIngest, jobs.IngestIdentity(link), payload); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("enqueue %s: %v", link, err))
			continue
		}
		metrics.RecordQueued("feedpoll")
		result.ItemsQueued++
	}

	s.logger.Info("feed poll finished",
		zap.String("feed_id", feed.ID),
		zap.Int("items_found", result.ItemsFound),
		zap.Int("items_queued", result.ItemsQueued),
		zap.Int("errors", len(result.Errors)))
	return result
}

func entryLink(item *gofeed.Item) string {
	if item.Link != "" {
		return strings.TrimSpace(item.Link)
	}
	return strings.TrimSpace(item.GUID)
}

func feedSource(feed pipeline.FeedSubscription) string {
	if feed.Title != "" {
		return feed.Title
	}
	if domain, err := pipeline.DomainOf(feed.URL); err == nil {
		return domain
	}
	return feed.URL
}
