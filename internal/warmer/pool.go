// Package warmer prefetches profiles into the cache with a bounded pool of
// workers that share one upstream rate limiter.
package warmer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"instalytics/pkg/logger"
	"instalytics/pkg/metrics"
	"instalytics/pkg/models"
	"instalytics/pkg/ratelimit"
)

// Job statuses, also used as metric labels
const (
	StatusCached  = "cached"
	StatusFetched = "fetched"
	StatusFailed  = "failed"
)

// Job asks for one handle to be warmed
type Job struct {
	Handle string
	// Force refetches even when the cache already holds a live record
	Force bool
}

// Result is the outcome of one job
type Result struct {
	Job      Job
	Status   string
	Profile  *models.Profile
	Error    error
	Duration time.Duration
}

// Resolver runs the profile pipeline
type Resolver interface {
	Profile(ctx context.Context, handle string) (*models.Result, error)
	Refresh(ctx context.Context, handle string) (*models.Result, error)
}

// Cache reports live records without touching upstream
type Cache interface {
	Get(ctx context.Context, handle string) *models.Profile
}

// Pool is a fixed set of workers draining a job queue
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	resolver    Resolver
	cache       Cache
	limiter     ratelimit.Limiter
	logger      logger.Logger
	metrics     *metrics.Metrics
}

// NewPool creates a pool. Every upstream fetch first waits on limiter; cache
// hits do not.
func NewPool(ctx context.Context, numWorkers int, resolver Resolver, cache Cache, limiter ratelimit.Limiter, log logger.Logger, m *metrics.Metrics) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		resolver:    resolver,
		cache:       cache,
		limiter:     limiter,
		logger:      log.WithField("component", "warmer"),
		metrics:     m,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	logger.LogComponentStart(p.logger, "warmer", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue, waits for in-flight jobs and closes Results.
// Call it once, after the last Submit.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()

	logger.LogComponentStop(p.logger, "warmer", "queue drained")
}

// Cancel abandons queued jobs; in-flight jobs see a cancelled context
func (p *Pool) Cancel() {
	p.cancel()
}

// Submit queues a job, blocking while the queue is full
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("warmer is shutting down")
	}
}

// Results streams one Result per processed job
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		result := p.process(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			p.logger.DebugWithFields("Worker stopping, context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			// keep draining so Stop does not block on queued jobs
		}
	}
}

func (p *Pool) process(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	finish := func(status string, err error) Result {
		result.Status = status
		result.Error = err
		result.Duration = time.Since(start)
		p.metrics.WarmerJobs.WithLabelValues(status).Inc()
		return result
	}

	if err := p.ctx.Err(); err != nil {
		return finish(StatusFailed, err)
	}

	if !job.Force {
		if cached := p.cache.Get(p.ctx, job.Handle); cached != nil {
			result.Profile = cached
			return finish(StatusCached, nil)
		}
	}

	if err := p.limiter.Wait(p.ctx); err != nil {
		return finish(StatusFailed, fmt.Errorf("waiting for rate limit: %w", err))
	}

	resolve := p.resolver.Profile
	if job.Force {
		resolve = p.resolver.Refresh
	}

	r, err := resolve(p.ctx, job.Handle)
	if err != nil {
		p.logger.WithError(err).WarnWithFields("Failed to warm profile", map[string]interface{}{
			"worker_id": workerID,
			"handle":    job.Handle,
		})
		return finish(StatusFailed, err)
	}

	result.Profile = r.Profile
	status := StatusFetched
	if r.Source == models.SourceCache {
		status = StatusCached
	}

	p.logger.DebugWithFields("Profile warmed", map[string]interface{}{
		"worker_id": workerID,
		"handle":    job.Handle,
		"source":    r.Source,
	})
	return finish(status, nil)
}

// Summary counts the outcomes of a Warm call
type Summary struct {
	Cached  int
	Fetched int
	Failed  []string
	Elapsed time.Duration
}

// Warm starts the pool, runs one job per handle and stops the pool once every
// result is in. onResult, if set, sees each result as it arrives. The pool
// cannot be reused afterwards.
func (p *Pool) Warm(handles []string, force bool, onResult func(Result)) Summary {
	start := time.Now()
	p.Start()

	go func() {
		defer p.Stop()
		for _, h := range handles {
			if err := p.Submit(Job{Handle: h, Force: force}); err != nil {
				return
			}
		}
	}()

	var s Summary
	pending := make(map[string]int, len(handles))
	for _, h := range handles {
		pending[h]++
	}
	for r := range p.Results() {
		pending[r.Job.Handle]--
		switch r.Status {
		case StatusCached:
			s.Cached++
		case StatusFetched:
			s.Fetched++
		default:
			s.Failed = append(s.Failed, r.Job.Handle)
		}
		if onResult != nil {
			onResult(r)
		}
	}

	// jobs never submitted, or dropped after cancellation
	for _, h := range handles {
		if pending[h] > 0 {
			pending[h]--
			s.Failed = append(s.Failed, h)
		}
	}

	s.Elapsed = time.Since(start)
	return s
}
