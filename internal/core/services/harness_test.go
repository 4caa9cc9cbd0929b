package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/peertube-pod/internal/adapters/queue/memory"
	memoryrepo "github.com/peertube-pod/internal/adapters/repo/memory"
	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
	"github.com/peertube-pod/internal/federation"
)

const localHost = "pod-a.example"

var fastRetry = services.RetryPolicy{
	MaxRetries:      3,
	InitialInterval: time.Millisecond,
	MaxInterval:     time.Millisecond,
}

type delivery struct {
	Inbox    string
	Activity *federation.Activity
}

type harness struct {
	clock     *services.FakeClock
	store     *memoryrepo.Store
	queue     *memory.InMemoryQueue
	urls      federation.URLs
	sender    *services.ActivitySender
	accounts  *services.AccountService
	delivered []delivery
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock: services.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		store: memoryrepo.NewStore(),
		urls:  federation.NewURLs("https", localHost),
	}
	h.queue = memory.NewInMemoryQueue(h.clock)
	h.sender = services.NewActivitySender(h.urls, h.store, h.queue, h.clock)
	h.accounts = services.NewAccountService(h.urls, h.store, h.clock, 4)

	err := h.queue.Subscribe(context.Background(), "collector", services.TopicActivityDelivery, func(ctx context.Context, msg services.Message) error {
		var payload services.DeliveryPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}
		activity, err := federation.Decode(payload.Activity)
		if err != nil {
			return err
		}
		h.delivered = append(h.delivered, delivery{Inbox: payload.Inbox, Activity: activity})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

// drain processes the queue and returns the activities handed to the delivery topic.
func (h *harness) drain() []delivery {
	h.queue.Process(context.Background())
	out := h.delivered
	h.delivered = nil
	return out
}

func (h *harness) localAccount(t *testing.T, name string, role domain.Role) (*domain.Account, *domain.VideoChannel) {
	t.Helper()
	ctx := context.Background()

	account, err := h.accounts.Register(ctx, name, "password", role)
	if err != nil {
		t.Fatalf("Register(%s): %v", name, err)
	}
	channels, err := h.accounts.ListChannels(ctx, account.ID)
	if err != nil || len(channels) != 1 {
		t.Fatalf("ListChannels(%s) = %v, %v", name, channels, err)
	}
	return account, channels[0]
}

func (h *harness) remoteAccount(t *testing.T, host, name string) *domain.Account {
	t.Helper()
	account := &domain.Account{
		UUID:      uuid.NewString(),
		Name:      name,
		URL:       h.urls.ForHost(host).Account(name),
		Host:      host,
		Role:      domain.RoleUser,
		CreatedAt: h.clock.Now(),
	}
	if err := h.store.Accounts().Create(context.Background(), account); err != nil {
		t.Fatal(err)
	}
	return account
}

func (h *harness) ownedVideo(t *testing.T, owner *domain.Account, channel *domain.VideoChannel, name string) *domain.Video {
	t.Helper()
	id := uuid.NewString()
	video := &domain.Video{
		UUID:      id,
		URL:       h.urls.Video(id),
		Name:      name,
		AccountID: owner.ID,
		ChannelID: channel.ID,
		CreatedAt: h.clock.Now(),
		UpdatedAt: h.clock.Now(),
	}
	if err := h.store.Videos().Create(context.Background(), video); err != nil {
		t.Fatal(err)
	}
	return video
}

func (h *harness) remoteVideo(t *testing.T, host, name string) *domain.Video {
	t.Helper()
	owner := h.remoteAccount(t, host, "owner-"+name)
	id := uuid.NewString()
	video := &domain.Video{
		UUID:      id,
		URL:       h.urls.ForHost(host).Video(id),
		Name:      name,
		AccountID: owner.ID,
		Host:      host,
		CreatedAt: h.clock.Now(),
		UpdatedAt: h.clock.Now(),
	}
	if err := h.store.Videos().Create(context.Background(), video); err != nil {
		t.Fatal(err)
	}
	return video
}

func (h *harness) addFollower(t *testing.T, host string) {
	t.Helper()
	err := h.store.Follows().Create(context.Background(), &domain.Follow{
		FollowerHost:  host,
		FollowingHost: h.urls.Host,
		State:         domain.FollowAccepted,
		CreatedAt:     h.clock.Now(),
		UpdatedAt:     h.clock.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (h *harness) reload(t *testing.T, videoID int64) *domain.Video {
	t.Helper()
	video, err := h.store.Videos().FindByID(context.Background(), videoID)
	if err != nil || video == nil {
		t.Fatalf("FindByID(%d) = %v, %v", videoID, video, err)
	}
	return video
}

func activityTypes(deliveries []delivery) []string {
	types := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		typ := string(d.Activity.Type)
		if d.Activity.Type == federation.TypeUndo {
			typ += "(" + d.Activity.ObjectType() + ")"
		}
		types = append(types, typ)
	}
	return types
}

// conflictingStore fails the first failures transactions with ErrTransactionConflict.
type conflictingStore struct {
	services.Store
	failures int
	calls    int
}

func (s *conflictingStore) InTx(ctx context.Context, fn func(ctx context.Context, tx services.Repositories) error) error {
	s.calls++
	if s.failures > 0 {
		s.failures--
		return services.ErrTransactionConflict
	}
	return s.Store.InTx(ctx, fn)
}
