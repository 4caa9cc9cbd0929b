package services

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/peertube-pod/internal/logging"
	"github.com/peertube-pod/internal/metrics"
)

const (
	MaxDeliveryAttempts  = 5
	DeliveryBaseBackoff  = time.Second
	deliveryBackoffLimit = 10 * time.Minute
)

// ActivityDeliveryConsumer posts queued activities to remote inboxes. A failed delivery
// is rescheduled with exponential backoff; after maxAttempts it is dropped.
type ActivityDeliveryConsumer struct {
	client      RemotePodClient
	queue       Queue
	clock       Clock
	maxAttempts int
	baseBackoff time.Duration
}

func NewActivityDeliveryConsumer(client RemotePodClient, queue Queue, clock Clock, maxAttempts int, baseBackoff time.Duration) *ActivityDeliveryConsumer {
	if maxAttempts <= 0 {
		maxAttempts = MaxDeliveryAttempts
	}
	if baseBackoff <= 0 {
		baseBackoff = DeliveryBaseBackoff
	}
	return &ActivityDeliveryConsumer{
		client:      client,
		queue:       queue,
		clock:       clock,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
	}
}

func (c *ActivityDeliveryConsumer) Handle(ctx context.Context, msg Message) error {
	var payload DeliveryPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("parsing delivery payload: %w", err)
	}
	if payload.Attempt < 1 {
		payload.Attempt = 1
	}

	if id := msg.Metadata["correlationID"]; id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}
	log := logging.Ctx(ctx).With().
		Str("inbox", payload.Inbox).
		Str("activity_type", payload.ActivityType).
		Int("attempt", payload.Attempt).
		Logger()

	err := c.client.PostInbox(ctx, payload.Inbox, payload.Activity)
	if err == nil {
		metrics.ActivitiesDelivered.WithLabelValues(payload.ActivityType, "ok").Inc()
		log.Debug().Msg("activity delivered")
		return nil
	}

	if payload.Attempt >= c.maxAttempts {
		metrics.ActivitiesDelivered.WithLabelValues(payload.ActivityType, "dropped").Inc()
		log.Error().Err(err).Msg("giving up activity delivery")
		return nil
	}

	metrics.ActivitiesDelivered.WithLabelValues(payload.ActivityType, "retry").Inc()
	log.Warn().Err(err).Msg("activity delivery failed, rescheduling")

	backoff := c.baseBackoff * time.Duration(1<<(payload.Attempt-1))
	if backoff > deliveryBackoffLimit {
		backoff = deliveryBackoffLimit
	}

	payload.Attempt++
	next, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return c.queue.Publish(ctx, Message{
		MessageID: msg.MessageID,
		Topic:     TopicActivityDelivery,
		Payload:   next,
		Metadata:  msg.Metadata,
		DeliverAt: c.clock.Now().Add(backoff),
	})
}
