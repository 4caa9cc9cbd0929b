package memory

import (
	"context"
	"sync"
	"time"

	"github.com/peertube-pod/internal/core/services"
	"github.com/peertube-pod/internal/logging"
	"github.com/peertube-pod/internal/metrics"
)

// MaxAttempts bounds the immediate re-attempts of a message whose handler failed or
// that no subscription matched.
const MaxAttempts = 3

type subscription struct {
	topic   string
	handler services.MessageHandler
}

type pendingMessage struct {
	msg      services.Message
	attempts int
}

type InMemoryQueue struct {
	mu            sync.RWMutex
	clock         services.Clock
	subscriptions map[string]*subscription
	pending       []pendingMessage
}

func NewInMemoryQueue(clock services.Clock) *InMemoryQueue {
	return &InMemoryQueue{
		clock:         clock,
		subscriptions: make(map[string]*subscription),
		pending:       make([]pendingMessage, 0),
	}
}

func (q *InMemoryQueue) Publish(ctx context.Context, msg services.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if msg.DeliverAt.IsZero() {
		msg.DeliverAt = q.clock.Now()
	}

	q.pending = append(q.pending, pendingMessage{msg: msg, attempts: 0})
	metrics.QueuePending.Set(float64(len(q.pending)))
	return nil
}

func (q *InMemoryQueue) Subscribe(ctx context.Context, subscriptionID string, topic string, handler services.MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.subscriptions[subscriptionID] = &subscription{
		topic:   topic,
		handler: handler,
	}
	return nil
}

func (q *InMemoryQueue) Unsubscribe(subscriptionID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.subscriptions, subscriptionID)
	return nil
}

// Tick hands every message due at the current clock time to the subscription of its
// topic. Handlers run without the lock held and may publish.
func (q *InMemoryQueue) Tick(ctx context.Context) (delivered int, requeued int) {
	q.mu.Lock()
	now := q.clock.Now()

	var ready []pendingMessage
	var stillPending []pendingMessage

	for _, pm := range q.pending {
		if !pm.msg.DeliverAt.After(now) {
			ready = append(ready, pm)
		} else {
			stillPending = append(stillPending, pm)
		}
	}
	q.pending = stillPending
	q.mu.Unlock()

	var toRequeue []pendingMessage

	for _, pm := range ready {
		q.mu.RLock()
		var matchedHandler services.MessageHandler
		for _, sub := range q.subscriptions {
			if sub.topic == pm.msg.Topic {
				matchedHandler = sub.handler
				break
			}
		}
		q.mu.RUnlock()

		if matchedHandler == nil {
			pm.attempts++
			if pm.attempts < MaxAttempts {
				toRequeue = append(toRequeue, pm)
			} else {
				logging.Warn().Str("topic", pm.msg.Topic).Str("message_id", pm.msg.MessageID).Msg("no subscriber for message, dropping")
			}
			continue
		}

		err := matchedHandler(ctx, pm.msg)
		if err != nil {
			pm.attempts++
			if pm.attempts < MaxAttempts {
				toRequeue = append(toRequeue, pm)
				requeued++
			} else {
				logging.Error().Err(err).Str("topic", pm.msg.Topic).Str("message_id", pm.msg.MessageID).Msg("message handler failed, dropping")
			}
		} else {
			delivered++
		}
	}

	q.mu.Lock()
	q.pending = append(q.pending, toRequeue...)
	metrics.QueuePending.Set(float64(len(q.pending)))
	q.mu.Unlock()

	return delivered, requeued
}

// Process ticks until no due message is left.
func (q *InMemoryQueue) Process(ctx context.Context) (totalDelivered int) {
	for {
		delivered, requeued := q.Tick(ctx)
		totalDelivered += delivered
		if delivered == 0 && requeued == 0 {
			break
		}
	}
	return totalDelivered
}

func (q *InMemoryQueue) PendingCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}

type processable interface {
	Process(ctx context.Context) int
}

// Processor drives a queue on a fixed interval until its context is cancelled.
type Processor struct {
	queue    processable
	interval time.Duration
}

func NewProcessor(queue processable, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Processor{queue: queue, interval: interval}
}

func (p *Processor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.queue.Process(ctx)
		}
	}
}

func (p *Processor) String() string {
	return "queue-processor"
}
