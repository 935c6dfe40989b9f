// Package queue is the in-process background job queue. It gives
// at-least-once execution within one process, optional suppression of
// duplicate enqueues by key and a per-job timeout.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shopify-order-sync/internal/logger"
	"shopify-order-sync/internal/metrics"
)

var (
	ErrQueueClosed = errors.New("queue closed")
	ErrQueueFull   = errors.New("queue full")
)

const (
	DefaultSize         = 256
	DefaultDedupeWindow = 5 * time.Minute
	DefaultTimeout      = 5 * time.Minute
)

type Job struct {
	Name string
	// Key suppresses a second enqueue with the same key inside the dedupe
	// window. Empty keys are never deduplicated.
	Key     string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type Queue struct {
	jobs chan Job

	mu      sync.Mutex
	seen    map[string]time.Time
	closed  bool
	workers int

	window         time.Duration
	defaultTimeout time.Duration
	now            func() time.Time

	wg sync.WaitGroup
}

func New(size int, window, defaultTimeout time.Duration) *Queue {
	if size <= 0 {
		size = DefaultSize
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Queue{
		jobs:           make(chan Job, size),
		seen:           make(map[string]time.Time),
		window:         window,
		defaultTimeout: defaultTimeout,
		now:            time.Now,
	}
}

// Enqueue adds job to the queue. It returns false without error when the job
// was dropped as a duplicate.
func (q *Queue) Enqueue(ctx context.Context, job Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}

	now := q.now()
	q.prune(now)
	if job.Key != "" && q.window > 0 {
		if at, ok := q.seen[job.Key]; ok && now.Sub(at) < q.window {
			metrics.JobsDeduplicatedTotal.Inc()
			logger.Ctx(ctx).Debug().Str("job", job.Name).Str("key", job.Key).Msg("duplicate job dropped")
			return false, nil
		}
	}

	select {
	case q.jobs <- job:
	default:
		return false, ErrQueueFull
	}

	if job.Key != "" && q.window > 0 {
		q.seen[job.Key] = now
	}
	metrics.QueueDepth.Set(float64(len(q.jobs)))
	return true, nil
}

func (q *Queue) prune(now time.Time) {
	for key, at := range q.seen {
		if now.Sub(at) >= q.window {
			delete(q.seen, key)
		}
	}
}

// Start launches workers goroutines that run jobs until Stop is called or
// ctx is done.
func (q *Queue) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	q.mu.Lock()
	q.workers += workers
	q.mu.Unlock()

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, i)
	}
}

func (q *Queue) work(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			metrics.QueueDepth.Set(float64(len(q.jobs)))
			q.run(ctx, id, job)
		}
	}
}

func (q *Queue) run(ctx context.Context, worker int, job Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = q.defaultTimeout
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := logger.Ctx(ctx).With().Str("job", job.Name).Int("worker", worker).Logger()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("job panicked: %v", r)
			}
		}()
		done <- job.Run(jobCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("job failed")
		}
	case <-jobCtx.Done():
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			metrics.JobsTimedOutTotal.Inc()
			log.Warn().Dur("timeout", timeout).Msg("job timed out")
		}
	}
}

// Stop closes the queue to new jobs and waits for queued ones to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	metrics.QueueDepth.Set(0)
}

func (q *Queue) Depth() int {
	return len(q.jobs)
}

func (q *Queue) Workers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.workers
}
