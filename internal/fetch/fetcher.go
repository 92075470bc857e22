// Package fetch implements the source fetcher: allow-list gated retrieval,
// text extraction, fingerprinting, and secondary-document inference.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/hkfcheung/regintel-sub001/internal/metrics"
	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// Config controls fetcher behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements pipeline.Fetcher using a Colly collector. The domain
// allow-list is checked before any network call; violation aborts with an
// AuthorizationError.
type Fetcher struct {
	cfg      Config
	policies pipeline.PolicyStore
	hasher   pipeline.Hasher
	base     *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config, policies pipeline.PolicyStore, hasher pipeline.Hasher) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	return &Fetcher{
		cfg:      cfg,
		policies: policies,
		hasher:   hasher,
		base:     c,
	}
}

// Fetch retrieves a single URL and returns extracted content plus metadata.
// Network and HTTP failures come back as FetchError so the dispatcher
// retries them; unextractable content is not fatal and yields empty text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (pipeline.FetchResult, error) {
	domain, err := pipeline.Authorize(ctx, f.policies, rawURL)
	if err != nil {
		return pipeline.FetchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return pipeline.FetchResult{}, fmt.Errorf("fetch canceled: %w", err)
	}

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
		status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	if err := collector.Visit(rawURL); err != nil {
		return pipeline.FetchResult{}, &pipeline.FetchError{URL: rawURL, Err: err}
	}
	collector.Wait()
	if fetchErr != nil {
		return pipeline.FetchResult{}, &pipeline.FetchError{URL: rawURL, Err: fetchErr}
	}
	metrics.ObserveFetch(domain, time.Since(start))

	result, err := f.extract(rawURL, body)
	if err != nil {
		return pipeline.FetchResult{}, err
	}
	result.StatusCode = status
	return result, nil
}

func (f *Fetcher) extract(rawURL string, body []byte) (pipeline.FetchResult, error) {
	doc := parseDocument(rawURL, body)
	content := []byte(doc.Text)
	if doc.Text == "" {
		// Unparseable content still needs a deterministic fingerprint.
		content = body
	}
	fingerprint, err := f.hasher.Hash(content)
	if err != nil {
		return pipeline.FetchResult{}, fmt.Errorf("fingerprint content: %w", err)
	}
	return pipeline.FetchResult{
		Title:        doc.Title,
		Text:         doc.Text,
		Fingerprint:  fingerprint,
		SecondaryURL: doc.SecondaryURL,
		PublishedAt:  doc.PublishedAt,
		RawBody:      body,
	}, nil
}
