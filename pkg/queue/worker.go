package queue

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/platinummonkey/beacon/pkg/observability"
)

// Handler processes one dequeued job. Returning an error triggers the
// worker's retry policy; a nil return acknowledges the job.
type Handler func(ctx context.Context, job *Job) error

// Worker consumes one queue with a fixed number of goroutines. A job
// that keeps failing after the retry budget is logged and dropped so a
// poison job cannot wedge the queue.
type Worker struct {
	queue       *Queue
	handler     Handler
	concurrency int
	logger      *observability.Logger
	metrics     *observability.Metrics

	// Retry policy, overridable in tests.
	maxAttempts uint
	retryDelay  time.Duration
	popTimeout  time.Duration
}

// NewWorker creates a worker for the queue. Concurrency below 1 is
// clamped to 1.
func NewWorker(q *Queue, handler Handler, concurrency int, logger *observability.Logger, metrics *observability.Metrics) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:       q,
		handler:     handler,
		concurrency: concurrency,
		logger:      logger,
		metrics:     metrics,
		maxAttempts: 3,
		retryDelay:  2 * time.Second,
		popTimeout:  5 * time.Second,
	}
}

// Run consumes jobs until the context is cancelled, then waits for
// in-flight handlers to finish.
func (w *Worker) Run(ctx context.Context) {
	w.logger.WithField("queue", w.queue.Name()).
		WithField("concurrency", w.concurrency).
		Info("starting queue worker")

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	wg.Wait()

	w.logger.WithField("queue", w.queue.Name()).Info("queue worker stopped")
}

func (w *Worker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.WithError(err).WithField("queue", w.queue.Name()).Error("dequeue failed")
			// Back off briefly so a dead Redis does not spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

// process runs one job through the retry policy. Panics in the handler
// are recovered and treated as a failed attempt.
func (w *Worker) process(ctx context.Context, job *Job) {
	log := w.logger.WithField("queue", w.queue.Name()).
		WithField("job_id", job.ID).
		WithField("kind", job.Kind)

	start := time.Now()
	attempt := 0
	err := retry.Do(
		func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).
						WithField("stack", string(debug.Stack())).
						Error("PANIC recovered in queue handler")
					err = observability.MustRecover(r)
				}
			}()
			attempt++
			return w.handler(ctx, job)
		},
		retry.Attempts(w.maxAttempts),
		retry.Delay(w.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if w.metrics != nil {
				w.metrics.JobRetriesTotal.WithLabelValues(w.queue.Name()).Inc()
			}
			log.WithError(err).Warnf("job attempt %d failed, retrying", n+1)
		}),
	)

	if w.metrics != nil {
		w.metrics.JobDuration.WithLabelValues(w.queue.Name()).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if w.metrics != nil {
			w.metrics.JobsProcessedTotal.WithLabelValues(w.queue.Name(), "dropped").Inc()
		}
		log.WithError(err).WithField("attempts", attempt).Error("job failed after retries, dropping")
		return
	}

	if w.metrics != nil {
		w.metrics.JobsProcessedTotal.WithLabelValues(w.queue.Name(), "ok").Inc()
	}
	log.Debug("job processed")
}
