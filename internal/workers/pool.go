// Package workers runs the pool of executors that drain the reliable queue
// and drive the job lifecycle.
package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/fabworks/backoffice/internal/artifacts"
	"github.com/fabworks/backoffice/internal/jobs"
	"github.com/fabworks/backoffice/internal/queue"
	"github.com/fabworks/backoffice/internal/store"
	"github.com/fabworks/backoffice/pkg/metrics"
)

type Pool struct {
	count        int
	pollInterval time.Duration
	scratchRoot  string
	queue        *queue.Queue
	registry     *jobs.Registry
	store        store.Store
	materializer *artifacts.Materializer
}

type Config struct {
	Workers      int
	PollInterval time.Duration
	ScratchRoot  string
}

func NewPool(cfg Config, q *queue.Queue, registry *jobs.Registry, s store.Store, m *artifacts.Materializer) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Pool{
		count:        cfg.Workers,
		pollInterval: cfg.PollInterval,
		scratchRoot:  cfg.ScratchRoot,
		queue:        q,
		registry:     registry,
		store:        s,
		materializer: m,
	}
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight job has finished.
func (p *Pool) Run(ctx context.Context, newContext func(d *queue.Delivery) *jobs.Context) {
	logger := zap.S().Named("worker_pool")
	logger.Infof("starting %d workers, handlers: %v", p.count, p.registry.Kinds())

	var wg sync.WaitGroup
	for i := 0; i < p.count; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.runWorker(ctx, worker, newContext)
		}(i)
	}
	wg.Wait()

	logger.Info("worker pool stopped")
}

func (p *Pool) runWorker(ctx context.Context, worker int, newContext func(d *queue.Delivery) *jobs.Context) {
	logger := zap.S().Named("worker").With("worker", worker)

	// Jittered polling keeps the workers from hammering the queue in
	// lockstep.
	ticker := jitterbug.New(p.pollInterval, &jitterbug.Norm{Stdev: p.pollInterval / 10})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx, logger, newContext)
		}
	}
}

// drain processes claimable items until the queue is empty. Each worker
// processes one job to completion before pulling the next.
func (p *Pool) drain(ctx context.Context, logger *zap.SugaredLogger, newContext func(d *queue.Delivery) *jobs.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		delivery, err := p.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) {
				logger.Errorf("dequeue failed: %v", err)
			}
			return
		}

		p.process(ctx, logger, delivery, newContext(delivery))

		if depth, err := p.queue.Depth(ctx); err == nil {
			metrics.UpdateQueueDepthMetric(depth)
		}
	}
}

// ProcessOne claims and processes a single item. Used by tests to drive
// the engine synchronously; returns queue.ErrEmpty when nothing is due.
func (p *Pool) ProcessOne(ctx context.Context, newContext func(d *queue.Delivery) *jobs.Context) error {
	delivery, err := p.queue.Dequeue(ctx)
	if err != nil {
		return err
	}
	p.process(ctx, zap.S().Named("worker"), delivery, newContext(delivery))
	return nil
}

func (p *Pool) process(ctx context.Context, logger *zap.SugaredLogger, d *queue.Delivery, jc *jobs.Context) {
	item := d.Item
	logger = logger.With("job_id", item.JobID.String(), "kind", item.Kind, "attempt", d.Attempt)
	logger.Info("job claimed")

	if err := p.store.Job().MarkRunning(ctx, item.JobID); err != nil {
		// Record gone, most likely deleted while queued. Nothing to do.
		logger.Warnf("failed to mark job running: %v", err)
		_ = p.queue.Discard(ctx, d, err)
		return
	}

	handler, found := p.registry.Resolve(item.Kind)
	if !found {
		// Missing code, not a transient fault. No point retrying.
		err := fmt.Errorf("no handler registered for job type %q", item.Kind)
		logger.Error(err)
		p.fail(ctx, d, err)
		_ = p.queue.Discard(ctx, d, err)
		return
	}

	start := time.Now()
	result, err := p.runHandler(ctx, handler, jc, item.Payload)
	metrics.ObserveJobDurationMetric(item.Kind, time.Since(start))
	if err != nil {
		logger.Errorf("handler failed: %v", err)
		p.fail(ctx, d, err)
		p.retryOrDiscard(ctx, logger, d, err)
		return
	}

	if err := p.materializer.Materialize(ctx, jc, result); err != nil {
		logger.Errorf("materialization failed: %v", err)
		p.fail(ctx, d, err)
		p.retryOrDiscard(ctx, logger, d, err)
		return
	}

	if err := p.queue.Complete(ctx, d); err != nil {
		logger.Warnf("failed to complete queue item: %v", err)
	}

	metrics.IncreaseJobsCompletedMetric(item.Kind)
	logger.Info("job completed")
}

// runHandler executes the handler, converting panics into errors so a
// misbehaving handler never takes the worker down.
func (p *Pool) runHandler(ctx context.Context, handler jobs.Handler, jc *jobs.Context, payload map[string]any) (result *jobs.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, jc, payload)
}

func (p *Pool) fail(ctx context.Context, d *queue.Delivery, cause error) {
	metrics.IncreaseJobsFailedMetric(d.Item.Kind)
	if err := p.store.Job().MarkFailed(ctx, d.Item.JobID, cause.Error()); err != nil {
		zap.S().Named("worker").Warnf("failed to mark job %s failed: %v", d.Item.JobID, err)
	}
}

func (p *Pool) retryOrDiscard(ctx context.Context, logger *zap.SugaredLogger, d *queue.Delivery, cause error) {
	retried, err := p.queue.Fail(ctx, d, cause)
	if err != nil {
		logger.Warnf("failed to record queue failure: %v", err)
		return
	}
	if retried {
		metrics.IncreaseJobsRetriedMetric(d.Item.Kind)
		logger.Infof("attempt %d failed, retry scheduled", d.Attempt)
	} else {
		logger.Infof("attempt budget exhausted, item retained for inspection")
	}
}
