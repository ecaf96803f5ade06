// Package dispatch is the retrying outbound send queue. Jobs are delivered
// at least once: a send that errors is retried up to the attempt limit, then
// parked as permanently failed where operators can inspect it. Consumers must
// treat duplicate delivery as acceptable, not as corruption.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/deskgate/internal/channel"
)

const (
	defaultAttempts = 3
	retryDelay      = 2 * time.Second
	queueDepth      = 256
)

// Job is one outbound send request.
type Job struct {
	AccountID string
	Number    string // target native id
	Body      string
	MediaPath string
	TicketID  uuid.UUID

	attempt int
}

// SentFunc is called after a successful send with the channel-native id the
// session returned. Used by the pipeline to record the message at send time.
type SentFunc func(ctx context.Context, job Job, nativeID string)

// Queue dispatches jobs through registered channel sessions with retries.
type Queue struct {
	sessions *channel.Manager
	onSent   SentFunc
	attempts int
	retryGap time.Duration

	jobs   chan Job
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	failed []Job
}

// NewQueue creates a dispatch queue. onSent may be nil.
func NewQueue(sessions *channel.Manager, onSent SentFunc) *Queue {
	return &Queue{
		sessions: sessions,
		onSent:   onSent,
		attempts: defaultAttempts,
		retryGap: retryDelay,
		jobs:     make(chan Job, queueDepth),
	}
}

// Start launches the consumer loop. Call Stop to drain and exit.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(1)
	go q.consume(ctx)
	slog.Info("outbound dispatcher started")
}

// Stop cancels the consumer loop and waits for it to exit.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	slog.Info("outbound dispatcher stopped")
}

// Submit enqueues a job. Fire and forget; when the queue is full the job is
// dropped with an error log rather than blocking the caller.
func (q *Queue) Submit(job Job) {
	select {
	case q.jobs <- job:
	default:
		slog.Error("outbound queue full, dropping job",
			"account", job.AccountID, "ticket", job.TicketID)
	}
}

// Failed returns a snapshot of permanently failed jobs.
func (q *Queue) Failed() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.failed))
	copy(out, q.failed)
	return out
}

func (q *Queue) consume(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	job.attempt++

	nativeID, err := q.send(ctx, job)
	if err == nil {
		if q.onSent != nil {
			q.onSent(ctx, job, nativeID)
		}
		return
	}

	if job.attempt >= q.attempts {
		slog.Error("outbound send permanently failed",
			"account", job.AccountID,
			"number", job.Number,
			"ticket", job.TicketID,
			"attempts", job.attempt,
			"error", err)
		q.mu.Lock()
		q.failed = append(q.failed, job)
		q.mu.Unlock()
		return
	}

	slog.Warn("outbound send failed, retrying",
		"account", job.AccountID,
		"attempt", job.attempt,
		"error", err)

	// Re-enqueue after a delay without holding up the consumer.
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		select {
		case <-ctx.Done():
		case <-time.After(q.retryGap):
			select {
			case q.jobs <- job:
			default:
				slog.Error("outbound queue full, dropping retry", "ticket", job.TicketID)
			}
		}
	}()
}

func (q *Queue) send(ctx context.Context, job Job) (string, error) {
	sess, err := q.sessions.Get(job.AccountID)
	if err != nil {
		return "", err
	}
	return sess.Send(ctx, job.Number, channel.Outbound{
		Body:      job.Body,
		MediaPath: job.MediaPath,
	})
}
