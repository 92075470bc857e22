package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/metrics"
	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// Handler executes one job and returns its class-tagged result.
type Handler func(ctx context.Context, job Job) (Result, error)

// ClassConfig binds a handler to its queue depth, concurrency, and retry
// policy.
type ClassConfig struct {
	Handler     Handler
	Concurrency int
	QueueDepth  int
	Retry       RetryPolicy
}

// Dispatcher is the enqueue/execute boundary. Identity collapsing in the
// store is the only cross-worker ordering guarantee; workers take no locks
// beyond the store's own.
type Dispatcher struct {
	store   *Store
	classes map[Class]ClassConfig
	queues  map[Class]*Queue
	clock   pipeline.Clock
	logger  *zap.Logger
}

// NewDispatcher constructs a Dispatcher over explicit class configs. No
// process-wide state: callers hold the instance and pass it where needed.
func NewDispatcher(store *Store, classes map[Class]ClassConfig, clock pipeline.Clock, logger *zap.Logger) *Dispatcher {
	queues := make(map[Class]*Queue, len(classes))
	for class, cfg := range classes {
		queues[class] = NewQueue(cfg.QueueDepth)
	}
	return &Dispatcher{
		store:   store,
		classes: classes,
		queues:  queues,
		clock:   clock,
		logger:  logger,
	}
}

// Enqueue registers a job under its deterministic identity and pushes it to
// the class queue. A second call with an identity that is still active
// collapses onto the existing job and enqueues nothing.
func (d *Dispatcher) Enqueue(ctx context.Context, class Class, identity string, payload Payload) (string, error) {
	queue, ok := d.queues[class]
	if !ok {
		return "", fmt.Errorf("unknown job class %q", class)
	}
	job, created := d.store.Create(Job{
		Identity:  identity,
		Class:     class,
		Payload:   payload,
		Submitted: d.clock.Now(),
	})
	if !created {
		d.logger.Debug("enqueue collapsed onto active job",
			zap.String("identity", identity),
			zap.String("class", string(class)),
		)
		return job.Identity, nil
	}
	if err := queue.Enqueue(ctx, Item{Identity: identity, Class: class}); err != nil {
		d.store.MarkFailed(identity, "enqueue: "+err.Error(), d.clock.Now())
		return "", fmt.Errorf("queue enqueue: %w", err)
	}
	return identity, nil
}

// Status returns the job record for an identity, if retained.
func (d *Dispatcher) Status(identity string) (Job, bool) {
	return d.store.Get(identity)
}

// Run starts the per-class worker pools and blocks until the context
// finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for class, cfg := range d.classes {
		for i := 0; i < cfg.Concurrency; i++ {
			wg.Add(1)
			go func(class Class, cfg ClassConfig) {
				defer wg.Done()
				d.workerLoop(ctx, class, cfg)
			}(class, cfg)
		}
	}
	<-ctx.Done()
	wg.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context, class Class, cfg ClassConfig) {
	queue := d.queues[class]
	for {
		item, err := queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("dequeue failed", zap.String("class", string(class)), zap.Error(err))
			continue
		}
		d.execute(ctx, item, cfg)
	}
}

// execute runs a job to a terminal state, retrying transient failures
// in-place under the class policy.
func (d *Dispatcher) execute(ctx context.Context, item Item, cfg ClassConfig) {
	job, ok := d.store.Get(item.Identity)
	if !ok {
		d.logger.Warn("queued job missing from store", zap.String("identity", item.Identity))
		return
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		d.store.MarkRunning(item.Identity, d.clock.Now())

		result, err := cfg.Handler(ctx, job)
		if err == nil {
			d.store.MarkSucceeded(item.Identity, result, d.clock.Now())
			metrics.RecordJob(string(item.Class), string(StateSucceeded))
			return
		}
		lastErr = err

		if !cfg.Retry.ShouldRetry(err, attempt+1) {
			break
		}
		backoff := cfg.Retry.Backoff(attempt)
		d.logger.Warn("job attempt failed, backing off",
			zap.String("identity", item.Identity),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			d.store.MarkFailed(item.Identity, "canceled: "+ctx.Err().Error(), d.clock.Now())
			metrics.RecordJob(string(item.Class), string(StateFailed))
			return
		case <-time.After(backoff):
		}
	}

	d.store.MarkFailed(item.Identity, lastErr.Error(), d.clock.Now())
	metrics.RecordJob(string(item.Class), string(StateFailed))
	d.logger.Error("job failed",
		zap.String("identity", item.Identity),
		zap.String("class", string(item.Class)),
		zap.Error(lastErr),
	)
}
