package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
	"github.com/peertube-pod/internal/federation"
)

func TestFollow_CreatesPendingFollowsAndSkipsKnownHosts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follows := services.NewFollowService(h.urls, h.store, h.sender, h.clock)

	if err := follows.Follow(ctx, []string{"pod-b.example", "pod-c.example"}); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	deliveries := h.drain()
	if len(deliveries) != 2 {
		t.Fatalf("%d deliveries, want 2", len(deliveries))
	}
	for _, d := range deliveries {
		if d.Activity.Type != federation.TypeFollow || d.Activity.Actor != h.urls.Actor() {
			t.Errorf("delivery = %s by %s", d.Activity.Type, d.Activity.Actor)
		}
		target, err := d.Activity.ObjectIRI()
		if err != nil {
			t.Fatal(err)
		}
		host, _ := federation.HostOf(target)
		if d.Inbox != "https://"+host+"/inbox" {
			t.Errorf("Follow of %s sent to %s", target, d.Inbox)
		}
	}

	following, err := follows.ListFollowing(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(following) != 2 {
		t.Fatalf("following %d pods, want 2", len(following))
	}
	for _, f := range following {
		if f.State != domain.FollowPending {
			t.Errorf("follow of %s is %s, want pending", f.FollowingHost, f.State)
		}
	}

	if err := follows.Follow(ctx, []string{"pod-b.example"}); err != nil {
		t.Fatalf("Follow again: %v", err)
	}
	if deliveries := h.drain(); len(deliveries) != 0 {
		t.Errorf("re-following a known host sent %d activities", len(deliveries))
	}
}

func TestFollow_RejectsSelf(t *testing.T) {
	h := newHarness(t)
	follows := services.NewFollowService(h.urls, h.store, h.sender, h.clock)

	err := follows.Follow(context.Background(), []string{localHost})
	if !errors.Is(err, services.ErrFollowSelf) {
		t.Fatalf("err = %v, want ErrFollowSelf", err)
	}
}

func TestUnfollow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follows := services.NewFollowService(h.urls, h.store, h.sender, h.clock)

	if err := follows.Unfollow(ctx, "pod-b.example"); !errors.Is(err, services.ErrFollowNotFound) {
		t.Fatalf("err = %v, want ErrFollowNotFound", err)
	}

	if err := follows.Follow(ctx, []string{"pod-b.example"}); err != nil {
		t.Fatal(err)
	}
	h.drain()

	if err := follows.Unfollow(ctx, "pod-b.example"); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	deliveries := h.drain()
	if got := activityTypes(deliveries); len(got) != 1 || got[0] != "Undo(Follow)" {
		t.Fatalf("activities = %v, want [Undo(Follow)]", got)
	}

	following, err := follows.ListFollowing(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(following) != 0 {
		t.Errorf("still following %d pods", len(following))
	}
}

func TestFollowReconciler_ResendsPendingFollowsWithBackoff(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follows := services.NewFollowService(h.urls, h.store, h.sender, h.clock)

	if err := follows.Follow(ctx, []string{"pod-b.example"}); err != nil {
		t.Fatal(err)
	}
	h.drain()

	var checks []services.FollowCheckPayload
	consumer := services.NewFollowCheckConsumer(localHost, h.store, follows, h.queue, h.clock)
	err := h.queue.Subscribe(ctx, "followcheck", services.TopicFollowCheck, func(ctx context.Context, msg services.Message) error {
		var payload services.FollowCheckPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}
		checks = append(checks, payload)
		return consumer.Handle(ctx, msg)
	})
	if err != nil {
		t.Fatal(err)
	}

	reconciler := services.NewFollowReconciler(localHost, h.store, h.queue, h.clock)
	if err := reconciler.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := h.drain(); len(got) != 0 || len(checks) != 0 {
		t.Fatalf("fresh follow re-sent: %v", activityTypes(got))
	}

	h.clock.Advance(services.FollowResendInterval)
	if err := reconciler.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	// attempt 1 runs now and re-sends the Follow
	if got := activityTypes(h.drain()); len(got) != 1 || got[0] != "Follow" {
		t.Fatalf("activities = %v, want one Follow", got)
	}
	if len(checks) != 1 || checks[0].Attempt != 1 {
		t.Fatalf("checks = %+v", checks)
	}

	// attempt 2 is due one base backoff later
	h.clock.Advance(services.FollowBaseBackoff - time.Second)
	if got := h.drain(); len(got) != 0 {
		t.Fatalf("follow re-sent before its backoff: %v", activityTypes(got))
	}
	h.clock.Advance(time.Second)
	if got := activityTypes(h.drain()); len(got) != 1 {
		t.Fatalf("activities = %v after the backoff, want one Follow", got)
	}
	if len(checks) != 2 || checks[1].Attempt != 2 {
		t.Fatalf("checks = %+v", checks)
	}

	// once accepted the chain stops
	follow, err := h.store.Follows().Find(ctx, localHost, "pod-b.example")
	if err != nil {
		t.Fatal(err)
	}
	follow.State = domain.FollowAccepted
	if err := h.store.Follows().Update(ctx, follow); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(2 * services.FollowBaseBackoff)
	if got := h.drain(); len(got) != 0 {
		t.Fatalf("accepted follow re-sent: %v", activityTypes(got))
	}
	if h.queue.PendingCount() != 0 {
		t.Errorf("%d messages still pending", h.queue.PendingCount())
	}
}

func TestFollowCheckConsumer_StopsAtMaxAttempts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follows := services.NewFollowService(h.urls, h.store, h.sender, h.clock)
	if err := follows.Follow(ctx, []string{"pod-b.example"}); err != nil {
		t.Fatal(err)
	}
	h.drain()

	consumer := services.NewFollowCheckConsumer(localHost, h.store, follows, h.queue, h.clock)
	payload, _ := json.Marshal(services.FollowCheckPayload{
		FollowingHost: "pod-b.example",
		Attempt:       services.MaxFollowAttempts,
	})
	if err := consumer.Handle(ctx, services.Message{Topic: services.TopicFollowCheck, Payload: payload}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := h.drain(); len(got) != 0 {
		t.Errorf("Follow re-sent at the last attempt: %v", activityTypes(got))
	}
	if h.queue.PendingCount() != 0 {
		t.Errorf("%d messages pending, want none", h.queue.PendingCount())
	}
}

func TestFollowReconciler_FrequentScansKeepTheBackoff(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	follows := services.NewFollowService(h.urls, h.store, h.sender, h.clock)
	if err := follows.Follow(ctx, []string{"pod-b.example"}); err != nil {
		t.Fatal(err)
	}
	h.drain()

	consumer := services.NewFollowCheckConsumer(localHost, h.store, follows, h.queue, h.clock)
	if err := h.queue.Subscribe(ctx, "followcheck", services.TopicFollowCheck, consumer.Handle); err != nil {
		t.Fatal(err)
	}
	reconciler := services.NewFollowReconciler(localHost, h.store, h.queue, h.clock)

	// pod-b never answers; the pod scans every minute for an hour
	sent := 0
	for minute := 1; minute <= 60; minute++ {
		h.clock.Advance(time.Minute)
		if err := reconciler.Scan(ctx); err != nil {
			t.Fatalf("Scan: %v", err)
		}
		sent += len(h.drain())
	}

	// one chain of MaxFollowAttempts-1 Follows every 15 minutes
	if sent < 12 || sent > 16 {
		t.Errorf("%d Follows sent in an hour, want 12 to 16", sent)
	}
	if n := h.queue.PendingCount(); n > 1 {
		t.Errorf("%d follow checks pending, want at most one chain", n)
	}
}
