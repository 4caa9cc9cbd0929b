package services

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/logging"
)

const (
	MaxFollowAttempts = 5
	FollowBaseBackoff = time.Minute
	// FollowResendInterval is the longest gap between two Follows of one check chain.
	// A scan leaves alone follows touched more recently than that.
	FollowResendInterval = FollowBaseBackoff << (MaxFollowAttempts - 2)
)

type FollowCheckPayload struct {
	FollowingHost string `json:"followingHost"`
	Attempt       int    `json:"attempt"`
}

// FollowReconciler finds follows that were never accepted and schedules a check for each.
type FollowReconciler struct {
	host  string
	store Store
	queue Queue
	clock Clock
}

func NewFollowReconciler(host string, store Store, queue Queue, clock Clock) *FollowReconciler {
	return &FollowReconciler{
		host:  host,
		store: store,
		queue: queue,
		clock: clock,
	}
}

func (r *FollowReconciler) Scan(ctx context.Context) error {
	follows, err := r.store.Follows().ListFollowing(ctx, r.host)
	if err != nil {
		return err
	}

	now := r.clock.Now()
	for _, follow := range follows {
		if follow.State != domain.FollowPending {
			continue
		}
		// a check chain is still running for this host
		if now.Sub(follow.UpdatedAt) < FollowResendInterval {
			continue
		}

		if err := r.store.Follows().Touch(ctx, follow.ID, now); err != nil {
			return err
		}

		payload, err := json.Marshal(FollowCheckPayload{
			FollowingHost: follow.FollowingHost,
			Attempt:       1,
		})
		if err != nil {
			return err
		}

		err = r.queue.Publish(ctx, Message{
			Topic:    TopicFollowCheck,
			Payload:  payload,
			Metadata: map[string]string{},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// FollowCheckConsumer re-sends the Follow of a pending follow until the remote pod
// accepts it or MaxFollowAttempts is reached.
type FollowCheckConsumer struct {
	host    string
	store   Store
	follows *FollowService
	queue   Queue
	clock   Clock
}

func NewFollowCheckConsumer(host string, store Store, follows *FollowService, queue Queue, clock Clock) *FollowCheckConsumer {
	return &FollowCheckConsumer{
		host:    host,
		store:   store,
		follows: follows,
		queue:   queue,
		clock:   clock,
	}
}

func (c *FollowCheckConsumer) Handle(ctx context.Context, msg Message) error {
	var payload FollowCheckPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return err
	}
	if payload.Attempt < 1 {
		payload.Attempt = 1
	}

	follow, err := c.store.Follows().Find(ctx, c.host, payload.FollowingHost)
	if err != nil {
		return err
	}

	if follow == nil || follow.State == domain.FollowAccepted {
		return nil
	}

	if payload.Attempt >= MaxFollowAttempts {
		logging.Ctx(ctx).Warn().
			Str("following", payload.FollowingHost).
			Int("attempt", payload.Attempt).
			Msg("follow still pending, giving up until next scan")
		return nil
	}

	if err := c.follows.SendFollow(ctx, payload.FollowingHost); err != nil {
		return err
	}
	if err := c.store.Follows().Touch(ctx, follow.ID, c.clock.Now()); err != nil {
		return err
	}

	nextPayload, err := json.Marshal(FollowCheckPayload{
		FollowingHost: payload.FollowingHost,
		Attempt:       payload.Attempt + 1,
	})
	if err != nil {
		return err
	}

	backoff := FollowBaseBackoff * time.Duration(1<<(payload.Attempt-1))
	deliverAt := c.clock.Now().Add(backoff)

	return c.queue.Publish(ctx, Message{
		Topic:     TopicFollowCheck,
		Payload:   nextPayload,
		Metadata:  map[string]string{},
		DeliverAt: deliverAt,
	})
}
