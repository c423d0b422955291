package events

import (
	"context"
	"sync"

	"github.com/jmerrifield20/postledger/internal/postledger"
	"go.uber.org/zap"
)

// Delivery outcomes reported to a MetricsRecorder.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// DeliverFunc pushes one notification to a sink.
type DeliverFunc func(ctx context.Context, ev postledger.PostCreated) error

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(sink, outcome string)

// Queue is a postledger.Listener that hands notifications to a single worker
// goroutine through a bounded buffer. Events are delivered in the order they
// were emitted; when the buffer is full new events are dropped.
type Queue struct {
	name    string
	deliver DeliverFunc
	logger  *zap.Logger

	mu        sync.Mutex
	closed    bool
	ch        chan postledger.PostCreated
	onMetrics MetricsRecorder

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue starts a worker that calls deliver for each queued event.
// size is the buffer capacity (minimum 1).
func NewQueue(name string, size int, deliver DeliverFunc, logger *zap.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		name:    name,
		deliver: deliver,
		logger:  logger.With(zap.String("sink", name)),
		ch:      make(chan postledger.PostCreated, size),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// SetMetricsRecorder configures the metrics callback.
func (q *Queue) SetMetricsRecorder(fn MetricsRecorder) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onMetrics = fn
}

// OnPostCreated implements postledger.Listener. It never blocks.
func (q *Queue) OnPostCreated(ev postledger.PostCreated) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- ev:
	default:
		q.logger.Warn("event queue full, dropping notification", zap.Uint64("id", ev.ID))
		q.recordLocked(OutcomeDropped)
	}
}

// Close stops accepting events and waits for the worker to drain the buffer.
// If ctx expires first, in-flight deliveries are cancelled.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-q.done
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for ev := range q.ch {
		if err := q.deliver(q.ctx, ev); err != nil {
			q.logger.Warn("event delivery failed", zap.Uint64("id", ev.ID), zap.Error(err))
			q.record(OutcomeFailed)
			continue
		}
		q.record(OutcomeDelivered)
	}
}

func (q *Queue) record(outcome string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recordLocked(outcome)
}

func (q *Queue) recordLocked(outcome string) {
	if q.onMetrics != nil {
		q.onMetrics(q.name, outcome)
	}
}
