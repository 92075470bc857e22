// Package discovery crawls allow-listed domains on a cadence and feeds
// candidate document URLs into the ingestion queue.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/jobs"
	"github.com/hkfcheung/regintel-sub001/internal/metrics"
	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// Enqueuer is the slice of the dispatcher the scheduler needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, class jobs.Class, identity string, payload jobs.Payload) (string, error)
}

// Config bounds one discovery crawl.
type Config struct {
	Interval  time.Duration
	MaxDepth  int
	MaxPages  int
	UserAgent string
	Timeout   time.Duration
}

// Scheduler runs cadence-based discovery over the domain allow-list.
type Scheduler struct {
	cfg      Config
	policies pipeline.PolicyStore
	items    pipeline.ItemStore
	enq      Enqueuer
	clock    pipeline.Clock
	logger   *zap.Logger
}

// New builds a Scheduler.
func New(cfg Config, policies pipeline.PolicyStore, items pipeline.ItemStore, enq Enqueuer, clock pipeline.Clock, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 7 * 24 * time.Hour
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 2
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Scheduler{
		cfg:      cfg,
		policies: policies,
		items:    items,
		enq:      enq,
		clock:    clock,
		logger:   logger,
	}
}

// DomainsDue returns the active domains never discovered or last discovered
// longer than one interval ago. Read-only.
func (s *Scheduler) DomainsDue(ctx context.Context, now time.Time) ([]pipeline.DomainPolicy, error) {
	policies, err := s.policies.ActivePolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active policies: %w", err)
	}
	var due []pipeline.DomainPolicy
	for _, p := range policies {
		if p.LastDiscoveredAt == nil || now.Sub(*p.LastDiscoveredAt) >= s.cfg.Interval {
			due = append(due, p)
		}
	}
	return due, nil
}

// Run discovers one named domain, or every due domain when the name is
// empty. The error return covers only setup failures; per-URL errors live
// in the results.
func (s *Scheduler) Run(ctx context.Context, domain string) ([]pipeline.DomainResult, error) {
	if domain != "" {
		policy, ok, err := s.policies.GetPolicy(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("load policy %q: %w", domain, err)
		}
		if !ok || !policy.Active {
			return nil, &pipeline.AuthorizationError{Domain: domain}
		}
		return []pipeline.DomainResult{s.discoverDomain(ctx, domain)}, nil
	}

	due, err := s.DomainsDue(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	results := make([]pipeline.DomainResult, 0, len(due))
	for _, p := range due {
		results = append(results, s.discoverDomain(ctx, p.Domain))
	}
	return results, nil
}

// discoverDomain crawls one domain breadth-first within the depth and page
// bounds, queuing an ingestion job per unseen candidate URL. A result is
// always returned, even when every candidate failed.
func (s *Scheduler) discoverDomain(ctx context.Context, domain string) pipeline.DomainResult {
	result := pipeline.DomainResult{Domain: domain}

	var (
		mu         sync.Mutex
		pages      int
		candidates []string
		seen       = map[string]struct{}{}
	)

	collector := colly.NewCollector(
		colly.AllowedDomains(domain, "www."+domain),
		colly.MaxDepth(s.cfg.MaxDepth),
		colly.UserAgent(s.cfg.UserAgent),
	)
	collector.AllowURLRevisit = false
	collector.SetRequestTimeout(s.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		mu.Lock()
		defer mu.Unlock()
		if pages >= s.cfg.MaxPages || ctx.Err() != nil {
			r.Abort()
			return
		}
		pages++
	})
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || !candidateURL(link) {
			return
		}
		mu.Lock()
		if _, dup := seen[link]; !dup {
			seen[link] = struct{}{}
			candidates = append(candidates, link)
		}
		mu.Unlock()
		if err := e.Request.Visit(e.Attr("href")); err != nil {
			s.logger.Debug("link not followed", zap.String("url", link), zap.Error(err))
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		result.Errors = append(result.Errors, fmt.Sprintf("crawl %s: %v", r.Request.URL, err))
		mu.Unlock()
	})

	if err := collector.Visit("https://" + domain + "/"); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("visit root: %v", err))
	}
	collector.Wait()

	result.URLsFound = len(candidates)
	for _, link := range candidates {
		if _, ok, err := s.items.FindByURL(ctx, link); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("lookup %s: %v", link, err))
			continue
		} else if ok {
			continue
		}
		payload := jobs.Payload{URL: link, Source: domain}
		if _, err := s.enq.Enqueue(ctx, jobs.ClassIngest, jobs.IngestIdentity(link), payload); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("enqueue %s: %v", link, err))
			continue
		}
		metrics.RecordQueued("discovery")
		result.URLsQueued++
	}

	now := s.clock.Now().UTC()
	if err := s.policies.SetLastDiscovered(ctx, domain, now); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("record discovery time: %v", err))
	}

	s.logger.Info("domain discovery finished",
		zap.String("domain", domain),
		zap.Int("urls_found", result.URLsFound),
		zap.Int("urls_queued", result.URLsQueued),
		zap.Int("errors", len(result.Errors)))
	return result
}

// candidateURL filters obvious non-document links out of the crawl frontier.
func candidateURL(link string) bool {
	lower := strings.ToLower(link)
	for _, ext := range []string{".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".woff", ".woff2", ".zip", ".mp4"} {
		if strings.HasSuffix(strings.SplitN(lower, "?", 2)[0], ext) {
			return false
		}
	}
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
