package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peertube-pod/internal/adapters/repo/memory"
	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

func seedVideo(t *testing.T, store *memory.Store, name string, createdAt time.Time) *domain.Video {
	t.Helper()
	video := &domain.Video{
		UUID:      name + "-uuid",
		URL:       "https://pod1.example/videos/watch/" + name,
		Name:      name,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := store.Videos().Create(context.Background(), video); err != nil {
		t.Fatalf("create video failed: %v", err)
	}
	return video
}

func TestStore_InTxRollsBackOnError(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	video := seedVideo(t, store, "first", time.Now())

	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, tx services.Repositories) error {
		if err := tx.Videos().IncrementRates(ctx, video.ID, 1, 0); err != nil {
			return err
		}
		err := tx.Rates().Create(ctx, &domain.AccountVideoRate{AccountID: 1, VideoID: video.ID, Type: domain.RateLike})
		if err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := store.Videos().FindByID(ctx, video.ID)
	if got.Likes != 0 {
		t.Errorf("expected likes rolled back to 0, got %d", got.Likes)
	}
	rate, _ := store.Rates().Load(ctx, 1, video.ID)
	if rate != nil {
		t.Errorf("expected rate rolled back, got %+v", rate)
	}
}

func TestStore_InTxCommits(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	video := seedVideo(t, store, "first", time.Now())

	err := store.InTx(ctx, func(ctx context.Context, tx services.Repositories) error {
		return tx.Videos().IncrementRates(ctx, video.ID, 1, 2)
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	got, _ := store.Videos().FindByID(ctx, video.ID)
	if got.Likes != 1 || got.Dislikes != 2 {
		t.Errorf("expected 1/2, got %d/%d", got.Likes, got.Dislikes)
	}
}

func TestStore_RollbackKeepsWritesMadeOutsideTheTransaction(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- store.InTx(ctx, func(ctx context.Context, tx services.Repositories) error {
			if err := tx.Follows().Create(ctx, &domain.Follow{FollowerHost: "a", FollowingHost: "c"}); err != nil {
				return err
			}
			close(started)
			<-release
			return services.ErrVideoNotFound
		})
	}()
	<-started

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- store.Follows().Create(ctx, &domain.Follow{FollowerHost: "b", FollowingHost: "a", State: domain.FollowAccepted})
	}()

	close(release)
	if err := <-txDone; !errors.Is(err, services.ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
	if err := <-writeDone; err != nil {
		t.Fatalf("create failed: %v", err)
	}

	follow, _ := store.Follows().Find(ctx, "b", "a")
	if follow == nil {
		t.Fatal("follow written outside the transaction was lost by its rollback")
	}
	if rolledBack, _ := store.Follows().Find(ctx, "a", "c"); rolledBack != nil {
		t.Errorf("expected the transaction's follow rolled back, got %+v", rolledBack)
	}
}

func TestStore_CommitKeepsEarlierWrites(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	video := seedVideo(t, store, "first", time.Now())

	if err := store.Pods().Upsert(ctx, &domain.Pod{Host: "pod2.example"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	err := store.InTx(ctx, func(ctx context.Context, tx services.Repositories) error {
		return tx.Videos().IncrementRates(ctx, video.ID, 1, 0)
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	if pod, _ := store.Pods().FindByHost(ctx, "pod2.example"); pod == nil {
		t.Error("expected pod to survive the commit")
	}
	if got, _ := store.Videos().FindByID(ctx, video.ID); got.Likes != 1 {
		t.Errorf("expected 1 like, got %d", got.Likes)
	}
}

func TestVideoRepository_ListExcludesBlacklistedAndSorts(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	b := seedVideo(t, store, "b", base)
	seedVideo(t, store, "a", base.Add(time.Hour))
	seedVideo(t, store, "c", base.Add(2*time.Hour))

	if err := store.Blacklist().Create(ctx, &domain.VideoBlacklist{VideoID: b.ID}); err != nil {
		t.Fatalf("blacklist failed: %v", err)
	}

	videos, total, err := store.Videos().List(ctx, services.VideoListOptions{Sort: "name"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 || len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d (total %d)", len(videos), total)
	}
	if videos[0].Name != "a" || videos[1].Name != "c" {
		t.Errorf("unexpected order %s, %s", videos[0].Name, videos[1].Name)
	}

	videos, _, _ = store.Videos().List(ctx, services.VideoListOptions{Sort: "-createdAt", Count: 1})
	if len(videos) != 1 || videos[0].Name != "c" {
		t.Errorf("expected newest video c first, got %+v", videos)
	}
}

func TestBlacklistRepository_ListSortsByVideoName(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Now()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		video := seedVideo(t, store, name, now)
		if err := store.Blacklist().Create(ctx, &domain.VideoBlacklist{VideoID: video.ID, CreatedAt: now}); err != nil {
			t.Fatalf("blacklist failed: %v", err)
		}
	}

	entries, total, err := store.Blacklist().List(ctx, services.BlacklistListOptions{Sort: "-name"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 entries, got %d", total)
	}
	want := []string{"zeta", "mid", "alpha"}
	for i, entry := range entries {
		if entry.VideoName != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], entry.VideoName)
		}
	}

	err = store.Blacklist().Create(ctx, &domain.VideoBlacklist{VideoID: entries[0].VideoID})
	if !errors.Is(err, services.ErrAlreadyBlacklisted) {
		t.Errorf("expected ErrAlreadyBlacklisted, got %v", err)
	}
}

func TestAccountRepository_RejectsDuplicateLocalName(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	first := &domain.Account{Name: "alice", URL: "https://pod1.example/accounts/alice"}
	if err := store.Accounts().Create(ctx, first); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	remote := &domain.Account{Name: "alice", URL: "https://pod2.example/accounts/alice", Host: "pod2.example"}
	if err := store.Accounts().Create(ctx, remote); err != nil {
		t.Fatalf("remote account with the same name should be accepted: %v", err)
	}

	dup := &domain.Account{Name: "alice", URL: "https://pod1.example/accounts/alice2"}
	if err := store.Accounts().Create(ctx, dup); !errors.Is(err, services.ErrAccountExists) {
		t.Errorf("expected ErrAccountExists, got %v", err)
	}
}
