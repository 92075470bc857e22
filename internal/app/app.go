// Package app assembles the service from configuration: stores, side-effect
// providers, the job dispatcher, schedulers, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/analysis"
	"github.com/hkfcheung/regintel-sub001/internal/api"
	"github.com/hkfcheung/regintel-sub001/internal/blob"
	"github.com/hkfcheung/regintel-sub001/internal/bookmark"
	"github.com/hkfcheung/regintel-sub001/internal/clock/system"
	"github.com/hkfcheung/regintel-sub001/internal/config"
	"github.com/hkfcheung/regintel-sub001/internal/discovery"
	"github.com/hkfcheung/regintel-sub001/internal/events"
	"github.com/hkfcheung/regintel-sub001/internal/extract"
	"github.com/hkfcheung/regintel-sub001/internal/feeds"
	"github.com/hkfcheung/regintel-sub001/internal/fetch"
	"github.com/hkfcheung/regintel-sub001/internal/hash/sha256"
	"github.com/hkfcheung/regintel-sub001/internal/id/uuid"
	"github.com/hkfcheung/regintel-sub001/internal/ingest"
	"github.com/hkfcheung/regintel-sub001/internal/jobs"
	"github.com/hkfcheung/regintel-sub001/internal/metrics"
	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
	"github.com/hkfcheung/regintel-sub001/internal/store"
)

// DataStore is the union of the store interfaces the pipeline needs; both
// the memory and Postgres stores satisfy it.
type DataStore interface {
	pipeline.ItemStore
	pipeline.AnalysisStore
	pipeline.PolicyStore
	pipeline.FeedStore
	PutPolicy(ctx context.Context, p pipeline.DomainPolicy) error
	PutFeed(ctx context.Context, f pipeline.FeedSubscription) error
}

// App holds every assembled component plus the close hooks for the ones
// that own external resources.
type App struct {
	Cfg        config.Config
	Logger     *zap.Logger
	Store      DataStore
	Dispatcher *jobs.Dispatcher
	Discovery  *discovery.Scheduler
	Feeds      *feeds.Scheduler
	Analysis   *analysis.Orchestrator
	Server     *api.Server

	closers []func()
}

// New builds the application. Provider selection follows configuration:
// empty DSN means in-memory stores, and the storage/pubsub providers fall
// back to in-process implementations.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	a := &App{Cfg: cfg, Logger: logger}

	dataStore, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = dataStore

	blobs, err := a.buildBlobs(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	var bookmarker pipeline.Bookmarker
	if cfg.Bookmark.BaseURL != "" {
		bookmarker = bookmark.New(bookmark.Config{
			BaseURL: cfg.Bookmark.BaseURL,
			Token:   cfg.Bookmark.Token,
			Timeout: time.Duration(cfg.Bookmark.TimeoutSeconds) * time.Second,
		})
	}

	extractor, err := a.buildExtractor()
	if err != nil {
		return nil, err
	}

	clock := system.New()
	ids := uuid.New()
	hasher := sha256.New()

	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, dataStore, hasher)

	processor := ingest.New(
		ingest.Config{
			SecondaryTimeout:  time.Duration(cfg.Fetch.ExtractTimeout) * time.Second,
			SideEffectTimeout: time.Duration(cfg.Bookmark.TimeoutSeconds) * time.Second,
			EventTopic:        cfg.PubSub.Topic,
		},
		fetcher, extractor, dataStore, dataStore,
		bookmarker, blobs, publisher,
		ids, clock, logger,
	)

	var capability analysis.Capability
	if cfg.Analysis.APIKey != "" {
		gemini, err := analysis.NewGemini(ctx, cfg.Analysis.APIKey, cfg.Analysis.Model)
		if err != nil {
			return nil, fmt.Errorf("analysis capability: %w", err)
		}
		capability = gemini
	}
	a.Analysis = analysis.New(
		analysis.Config{Timeout: time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second},
		capability, dataStore, dataStore, ids, clock, logger,
	)

	a.Dispatcher = a.buildDispatcher(processor, clock)

	a.Discovery = discovery.New(discovery.Config{
		Interval:  cfg.DiscoveryInterval(),
		MaxDepth:  cfg.Discovery.MaxDepth,
		MaxPages:  cfg.Discovery.MaxPages,
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, dataStore, dataStore, a.Dispatcher, clock, logger)

	a.Feeds = feeds.New(feeds.Config{
		Interval: cfg.FeedPollInterval(),
		Timeout:  time.Duration(cfg.Feeds.TimeoutSeconds) * time.Second,
	}, dataStore, dataStore, a.Dispatcher, clock, logger)

	a.Server = api.NewServer(a.Dispatcher, dataStore, a.Analysis, cfg, logger)
	return a, nil
}

// Close releases owned resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Run starts the dispatcher workers, the cadence tickers, and the HTTP
// server, blocking until the context finishes.
func (a *App) Run(ctx context.Context) error {
	go a.Dispatcher.Run(ctx)
	go a.runTicker(ctx, a.Cfg.DiscoveryInterval()/4, jobs.ClassDiscovery, jobs.DiscoveryIdentity(""))
	go a.runTicker(ctx, a.Cfg.FeedPollInterval(), jobs.ClassFeedPoll, jobs.FeedPollIdentity(""))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Cfg.Server.Port),
		Handler:           a.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.Logger.Info("http server listening", zap.Int("port", a.Cfg.Server.Port))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

// runTicker enqueues a run-everything-due job on a cadence. Identity
// collapsing makes overlapping ticks harmless.
func (a *App) runTicker(ctx context.Context, every time.Duration, class jobs.Class, identity string) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Dispatcher.Enqueue(ctx, class, identity, jobs.Payload{}); err != nil {
				a.Logger.Warn("scheduled enqueue failed",
					zap.String("class", string(class)),
					zap.Error(err))
			}
		}
	}
}

func (a *App) buildStore(ctx context.Context) (DataStore, error) {
	if a.Cfg.DB.DSN == "" {
		a.Logger.Info("using in-memory data store")
		return store.NewMemory(), nil
	}
	pg, err := store.NewPG(ctx, store.PGConfig{
		DSN:      a.Cfg.DB.DSN,
		MaxConns: int32(a.Cfg.DB.MaxOpenConns),
		MinConns: int32(a.Cfg.DB.MinConns),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	a.closers = append(a.closers, pg.Close)
	return pg, nil
}

func (a *App) buildBlobs(ctx context.Context) (pipeline.BlobStore, error) {
	switch a.Cfg.Storage.Provider {
	case "", "memory":
		return blob.NewMemory(), nil
	case "local":
		return blob.NewLocal(blob.LocalConfig{BaseDir: a.Cfg.Storage.LocalDir})
	case "gcs":
		gcs, err := blob.NewGCS(ctx, blob.GCSConfig{Bucket: a.Cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = gcs.Close() })
		return gcs, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", a.Cfg.Storage.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context) (pipeline.Publisher, error) {
	switch a.Cfg.PubSub.Provider {
	case "", "memory":
		return events.NewMemory(), nil
	case "pubsub":
		ps, err := events.NewPubSub(ctx, events.PubSubConfig{ProjectID: a.Cfg.PubSub.ProjectID})
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, func() { _ = ps.Close() })
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown pubsub provider %q", a.Cfg.PubSub.Provider)
	}
}

func (a *App) buildExtractor() (pipeline.SecondaryExtractor, error) {
	if !a.Cfg.Fetch.HeadlessExtract {
		return extract.NewNoop(), nil
	}
	headless, err := extract.NewHeadless(extract.Config{
		UserAgent:         a.Cfg.Fetch.UserAgent,
		NavigationTimeout: time.Duration(a.Cfg.Fetch.ExtractTimeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("headless extractor: %w", err)
	}
	a.closers = append(a.closers, headless.Close)
	return headless, nil
}

func (a *App) buildDispatcher(processor *ingest.Processor, clock pipeline.Clock) *jobs.Dispatcher {
	classCfg := func(jc config.JobClassConfig) (int, jobs.RetryPolicy) {
		return jc.Concurrency, jobs.RetryPolicy{
			MaxAttempts: jc.MaxAttempts,
			BaseDelay:   time.Duration(jc.BackoffBaseMs) * time.Millisecond,
			MaxDelay:    time.Duration(jc.BackoffMaxMs) * time.Millisecond,
		}
	}

	retain := map[jobs.Class]int{
		jobs.ClassIngest:    a.Cfg.Jobs.Ingest.RetainFinished,
		jobs.ClassDiscovery: a.Cfg.Jobs.Discovery.RetainFinished,
		jobs.ClassFeedPoll:  a.Cfg.Jobs.FeedPoll.RetainFinished,
		jobs.ClassAnalysis:  a.Cfg.Jobs.Analysis.RetainFinished,
	}
	jobStore := jobs.NewStore(retain, 200)

	ingestConc, ingestRetry := classCfg(a.Cfg.Jobs.Ingest)
	discConc, discRetry := classCfg(a.Cfg.Jobs.Discovery)
	feedConc, feedRetry := classCfg(a.Cfg.Jobs.FeedPoll)
	anConc, anRetry := classCfg(a.Cfg.Jobs.Analysis)

	classes := map[jobs.Class]jobs.ClassConfig{
		jobs.ClassIngest: {
			Concurrency: ingestConc,
			QueueDepth:  a.Cfg.Jobs.QueueDepth,
			Retry:       ingestRetry,
			Handler: func(ctx context.Context, job jobs.Job) (jobs.Result, error) {
				out, err := processor.Process(ctx, ingest.Request{
					URL:      job.Payload.URL,
					Source:   job.Payload.Source,
					Category: job.Payload.Category,
				})
				if err != nil {
					return jobs.Result{}, err
				}
				return jobs.Result{Outcome: &out}, nil
			},
		},
		jobs.ClassDiscovery: {
			Concurrency: discConc,
			QueueDepth:  a.Cfg.Jobs.QueueDepth,
			Retry:       discRetry,
			Handler: func(ctx context.Context, job jobs.Job) (jobs.Result, error) {
				domains, err := a.Discovery.Run(ctx, job.Payload.Domain)
				if err != nil {
					return jobs.Result{}, err
				}
				return jobs.Result{Domains: domains}, nil
			},
		},
		jobs.ClassFeedPoll: {
			Concurrency: feedConc,
			QueueDepth:  a.Cfg.Jobs.QueueDepth,
			Retry:       feedRetry,
			Handler: func(ctx context.Context, job jobs.Job) (jobs.Result, error) {
				polls, err := a.Feeds.Run(ctx, job.Payload.FeedID)
				if err != nil {
					return jobs.Result{}, err
				}
				return jobs.Result{Feeds: polls}, nil
			},
		},
		jobs.ClassAnalysis: {
			Concurrency: anConc,
			QueueDepth:  a.Cfg.Jobs.QueueDepth,
			Retry:       anRetry,
			Handler: func(ctx context.Context, job jobs.Job) (jobs.Result, error) {
				rec, err := a.Analysis.Analyze(ctx, job.Payload.ItemID)
				if err != nil {
					return jobs.Result{}, err
				}
				return jobs.Result{AnalysisID: rec.ID}, nil
			},
		},
	}
	return jobs.NewDispatcher(jobStore, classes, clock, a.Logger)
}
