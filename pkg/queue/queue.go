package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/platinummonkey/beacon/pkg/observability"
)

// Queue names used by the ingestion pipeline.
const (
	MetricsQueue = "metrics"
	ErrorsQueue  = "errors"
)

// keyPrefix namespaces queue lists in Redis.
const keyPrefix = "beacon:queue:"

// Job is the envelope stored on the Redis list. Payload is the
// marshaled job body; Kind tells the worker which handler owns it.
type Job struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Queue is one named Redis-backed job list.
type Queue struct {
	redis   *redis.Client
	name    string
	key     string
	logger  *observability.Logger
	metrics *observability.Metrics
}

// New creates a queue bound to a named Redis list. metrics may be nil
// when no instrumentation is wanted.
func New(client *redis.Client, name string, logger *observability.Logger, metrics *observability.Metrics) *Queue {
	return &Queue{
		redis:   client,
		name:    name,
		key:     keyPrefix + name,
		logger:  logger,
		metrics: metrics,
	}
}

// Name returns the queue's name.
func (q *Queue) Name() string {
	return q.name
}

// Enqueue marshals the payload into a job envelope and pushes it onto
// the queue. It returns the generated job ID.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	job := Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job envelope: %w", err)
	}

	if err := q.redis.LPush(ctx, q.key, data).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue %s job: %w", kind, err)
	}

	if q.metrics != nil {
		q.metrics.JobsEnqueuedTotal.WithLabelValues(q.name).Inc()
	}

	q.logger.WithField("queue", q.name).
		WithField("job_id", job.ID).
		WithField("kind", kind).
		Debug("job enqueued")
	return job.ID, nil
}

// Depth returns the number of jobs currently waiting on the queue.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.key).Result()
}

// Dequeue blocks up to timeout waiting for the next job. It returns
// (nil, nil) when the timeout elapses with no job available.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.redis.BRPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue from %s: %w", q.name, err)
	}

	// BRPOP returns [key, value].
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("malformed job envelope on %s: %w", q.name, err)
	}
	return &job, nil
}

// MonitorDepth periodically reports the queue depth to the gauge until
// the context is cancelled.
func (q *Queue) MonitorDepth(ctx context.Context, interval time.Duration, metrics *observability.Metrics) {
	defer observability.RecoverPanic(q.logger, "queue depth monitor")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := q.Depth(ctx)
			if err != nil {
				q.logger.WithError(err).WithField("queue", q.name).Warn("failed to read queue depth")
				continue
			}
			metrics.QueueDepth.WithLabelValues(q.name).Set(float64(depth))
		}
	}
}
