package pod

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

type testPod struct {
	app  *App
	host string
	down atomic.Bool
}

func newTestPod(t *testing.T, clock *services.FakeClock) *testPod {
	t.Helper()

	p := &testPod{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		p.app.Handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	host := strings.TrimPrefix(srv.URL, "http://")

	cfg := defaultConfig()
	cfg.Server.Host = host
	cfg.Server.Scheme = "http"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.BcryptCost = 4
	cfg.Federation.KeyPath = t.TempDir()
	// breakers run on wall time, not on the fake clock
	cfg.Federation.BreakerFailures = 100

	ctx := context.Background()
	app, err := Wire(ctx, cfg, &WireOptions{Clock: clock})
	if err != nil {
		t.Fatalf("Wire(%s): %v", host, err)
	}
	t.Cleanup(func() { app.Close() })

	if err := app.SubscribeActivityDelivery(ctx); err != nil {
		t.Fatal(err)
	}
	if err := app.SubscribeFollowCheck(ctx); err != nil {
		t.Fatal(err)
	}

	p.app, p.host = app, host
	return p
}

// settle processes every queue until no pod delivers anything.
func settle(t *testing.T, pods ...*testPod) {
	t.Helper()
	ctx := context.Background()
	for round := 0; round < 20; round++ {
		delivered := 0
		for _, p := range pods {
			delivered += p.app.Queue.Process(ctx)
		}
		if delivered == 0 {
			return
		}
	}
	t.Fatal("queues did not settle")
}

func registerWithChannel(t *testing.T, p *testPod, name string) (*domain.Account, *domain.VideoChannel) {
	t.Helper()
	ctx := context.Background()

	account, err := p.app.Accounts.Register(ctx, name, "password", domain.RoleUser)
	if err != nil {
		t.Fatalf("Register(%s): %v", name, err)
	}
	channels, err := p.app.Accounts.ListChannels(ctx, account.ID)
	if err != nil || len(channels) == 0 {
		t.Fatalf("ListChannels(%s) = %v, %v", name, channels, err)
	}
	return account, channels[0]
}

func requireFollowState(t *testing.T, p *testPod, follower, following string, want domain.FollowState) {
	t.Helper()
	follow, err := p.app.Store.Follows().Find(context.Background(), follower, following)
	if err != nil {
		t.Fatal(err)
	}
	if follow == nil {
		t.Fatalf("%s: no follow %s -> %s", p.host, follower, following)
	}
	if follow.State != want {
		t.Fatalf("%s: follow %s -> %s is %s, want %s", p.host, follower, following, follow.State, want)
	}
}

func TestFederation_FollowThenRatePropagates(t *testing.T) {
	ctx := context.Background()
	clock := services.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	origin := newTestPod(t, clock)
	podA := newTestPod(t, clock)
	podC := newTestPod(t, clock)
	pods := []*testPod{origin, podA, podC}

	// A and C follow the origin pod.
	if err := podA.app.Follows.Follow(ctx, []string{origin.host}); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := podC.app.Follows.Follow(ctx, []string{origin.host}); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	requireFollowState(t, podA, podA.host, origin.host, domain.FollowPending)

	settle(t, pods...)

	requireFollowState(t, podA, podA.host, origin.host, domain.FollowAccepted)
	requireFollowState(t, podC, podC.host, origin.host, domain.FollowAccepted)
	requireFollowState(t, origin, podA.host, origin.host, domain.FollowAccepted)

	followers, err := origin.app.Follows.ListFollowers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(followers) != 2 {
		t.Fatalf("origin has %d followers, want 2", len(followers))
	}

	// The origin publishes a video, which reaches both followers.
	owner, channel := registerWithChannel(t, origin, "bob")
	video, err := origin.app.Videos.Create(ctx, owner, channel.ID, "Sunset timelapse", "over the bay")
	if err != nil {
		t.Fatalf("Create video: %v", err)
	}
	settle(t, pods...)

	remoteOnA, err := podA.app.Store.Videos().FindByURL(ctx, video.URL)
	if err != nil {
		t.Fatal(err)
	}
	if remoteOnA == nil {
		t.Fatal("video was not federated to pod A")
	}
	if remoteOnA.Host != origin.host || remoteOnA.Name != "Sunset timelapse" {
		t.Fatalf("federated video = %+v", remoteOnA)
	}

	// A local account of A likes the remote video.
	alice, _ := registerWithChannel(t, podA, "alice")
	if err := podA.app.Rates.RateVideo(ctx, alice, remoteOnA.ID, domain.RateLike); err != nil {
		t.Fatalf("RateVideo: %v", err)
	}

	local, err := podA.app.Store.Videos().FindByID(ctx, remoteOnA.ID)
	if err != nil {
		t.Fatal(err)
	}
	if local.Likes != 1 {
		t.Errorf("pod A likes = %d, want 1 before federation", local.Likes)
	}

	settle(t, pods...)

	authoritative, err := origin.app.Store.Videos().FindByID(ctx, video.ID)
	if err != nil {
		t.Fatal(err)
	}
	if authoritative.Likes != 1 || authoritative.Dislikes != 0 {
		t.Fatalf("origin counters = %d/%d, want 1/0", authoritative.Likes, authoritative.Dislikes)
	}

	remoteAccount, err := origin.app.Store.Accounts().FindByURL(ctx, alice.URL)
	if err != nil {
		t.Fatal(err)
	}
	if remoteAccount == nil || remoteAccount.Host != podA.host {
		t.Fatalf("origin did not record the remote account: %+v", remoteAccount)
	}

	// C learns the new counters through the Update broadcast.
	onC, err := podC.app.Store.Videos().FindByURL(ctx, video.URL)
	if err != nil {
		t.Fatal(err)
	}
	if onC == nil || onC.Likes != 1 {
		t.Fatalf("pod C video = %+v, want 1 like", onC)
	}

	// Switching to a dislike sends Undo(Like) then Dislike.
	if err := podA.app.Rates.RateVideo(ctx, alice, remoteOnA.ID, domain.RateDislike); err != nil {
		t.Fatalf("RateVideo: %v", err)
	}
	settle(t, pods...)

	authoritative, err = origin.app.Store.Videos().FindByID(ctx, video.ID)
	if err != nil {
		t.Fatal(err)
	}
	if authoritative.Likes != 0 || authoritative.Dislikes != 1 {
		t.Fatalf("origin counters = %d/%d, want 0/1", authoritative.Likes, authoritative.Dislikes)
	}
	onC, err = podC.app.Store.Videos().FindByURL(ctx, video.URL)
	if err != nil {
		t.Fatal(err)
	}
	if onC.Likes != 0 || onC.Dislikes != 1 {
		t.Fatalf("pod C counters = %d/%d, want 0/1", onC.Likes, onC.Dislikes)
	}
}

func TestFederation_UnfollowRemovesFollower(t *testing.T) {
	ctx := context.Background()
	clock := services.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	origin := newTestPod(t, clock)
	follower := newTestPod(t, clock)

	if err := follower.app.Follows.Follow(ctx, []string{origin.host}); err != nil {
		t.Fatal(err)
	}
	settle(t, origin, follower)
	requireFollowState(t, origin, follower.host, origin.host, domain.FollowAccepted)

	if err := follower.app.Follows.Unfollow(ctx, origin.host); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	settle(t, origin, follower)

	follow, err := origin.app.Store.Follows().Find(ctx, follower.host, origin.host)
	if err != nil {
		t.Fatal(err)
	}
	if follow != nil {
		t.Fatalf("origin still has follower %+v", follow)
	}
}

func TestFederation_PendingFollowIsResent(t *testing.T) {
	ctx := context.Background()
	clock := services.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	origin := newTestPod(t, clock)
	follower := newTestPod(t, clock)

	origin.down.Store(true)
	if err := follower.app.Follows.Follow(ctx, []string{origin.host}); err != nil {
		t.Fatal(err)
	}
	settle(t, origin, follower)

	requireFollowState(t, follower, follower.host, origin.host, domain.FollowPending)
	if n := follower.app.Queue.PendingCount(); n != 1 {
		t.Fatalf("follower has %d pending messages, want the rescheduled Follow", n)
	}

	// every delivery attempt fails and the Follow is dropped
	for i := 0; i < 40; i++ {
		clock.Advance(time.Second)
		settle(t, origin, follower)
	}
	if n := follower.app.Queue.PendingCount(); n != 0 {
		t.Fatalf("follower has %d pending messages after the delivery gave up", n)
	}
	requireFollowState(t, follower, follower.host, origin.host, domain.FollowPending)

	// the reconciler leaves a recent follow alone, then sends a fresh Follow
	origin.down.Store(false)
	if err := follower.app.FollowReconciler.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	settle(t, origin, follower)
	requireFollowState(t, follower, follower.host, origin.host, domain.FollowPending)

	clock.Advance(services.FollowResendInterval)
	if err := follower.app.FollowReconciler.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	settle(t, origin, follower)

	requireFollowState(t, follower, follower.host, origin.host, domain.FollowAccepted)
	requireFollowState(t, origin, follower.host, origin.host, domain.FollowAccepted)
}
