package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/peertube-pod/internal/adapters/repo/mysql"
	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set, skipping integration test")
	}

	db, err := mysql.Open(dsn)
	if err != nil {
		t.Fatalf("failed to open MySQL: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping MySQL: %v", err)
	}
	if err := mysql.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	cleanupTables(t, db)
	return db
}

func cleanupTables(t *testing.T, db *sql.DB) {
	t.Helper()

	tables := []string{
		"accounts", "video_channels", "videos", "account_video_rates",
		"follows", "pods", "video_blacklist", "video_change_ownerships",
	}
	for _, table := range tables {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("failed to clean %s: %v", table, err)
		}
	}
}

func TestMySQL_RateTransaction(t *testing.T) {
	db := openTestDB(t)
	store := mysql.NewStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	account := &domain.Account{UUID: "6f1f3c1e-8d1e-4a53-9d55-0d3cf5f6a001", Name: "alice", URL: "https://pod1.example/accounts/alice", Role: domain.RoleUser, CreatedAt: now}
	if err := store.Accounts().Create(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	video := &domain.Video{UUID: "6f1f3c1e-8d1e-4a53-9d55-0d3cf5f6a002", URL: "https://pod1.example/videos/watch/v1", Name: "v1", AccountID: account.ID, CreatedAt: now, UpdatedAt: now}
	if err := store.Videos().Create(ctx, video); err != nil {
		t.Fatalf("create video: %v", err)
	}

	t.Run("commit applies rate and counters", func(t *testing.T) {
		err := store.InTx(ctx, func(ctx context.Context, tx services.Repositories) error {
			if err := tx.Rates().Create(ctx, &domain.AccountVideoRate{AccountID: account.ID, VideoID: video.ID, Type: domain.RateLike, CreatedAt: now, UpdatedAt: now}); err != nil {
				return err
			}
			return tx.Videos().IncrementRates(ctx, video.ID, 1, 0)
		})
		if err != nil {
			t.Fatalf("InTx: %v", err)
		}

		got, err := store.Videos().FindByID(ctx, video.ID)
		if err != nil || got == nil {
			t.Fatalf("find video: %v", err)
		}
		if got.Likes != 1 {
			t.Errorf("expected 1 like, got %d", got.Likes)
		}
	})

	t.Run("rollback discards changes", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.InTx(ctx, func(ctx context.Context, tx services.Repositories) error {
			if err := tx.Rates().Delete(ctx, account.ID, video.ID); err != nil {
				return err
			}
			if err := tx.Videos().IncrementRates(ctx, video.ID, -1, 0); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		rate, err := store.Rates().Load(ctx, account.ID, video.ID)
		if err != nil {
			t.Fatalf("load rate: %v", err)
		}
		if rate == nil || rate.Type != domain.RateLike {
			t.Errorf("expected like rate to survive rollback, got %+v", rate)
		}
	})

	t.Run("duplicate local account", func(t *testing.T) {
		dup := &domain.Account{UUID: "6f1f3c1e-8d1e-4a53-9d55-0d3cf5f6a003", Name: "alice", URL: "https://pod1.example/accounts/alice-2", Role: domain.RoleUser, CreatedAt: now}
		if err := store.Accounts().Create(ctx, dup); !errors.Is(err, services.ErrAccountExists) {
			t.Errorf("expected ErrAccountExists, got %v", err)
		}
	})

	t.Run("blacklisted videos are not listed", func(t *testing.T) {
		if err := store.Blacklist().Create(ctx, &domain.VideoBlacklist{VideoID: video.ID, CreatedAt: now}); err != nil {
			t.Fatalf("blacklist: %v", err)
		}
		videos, total, err := store.Videos().List(ctx, services.VideoListOptions{Count: 10, Sort: "-createdAt"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 0 || len(videos) != 0 {
			t.Errorf("expected no listed video, got %d", total)
		}

		entry, err := store.Blacklist().FindByVideoID(ctx, video.ID)
		if err != nil || entry == nil {
			t.Fatalf("find blacklist: %v", err)
		}
		if entry.VideoName != "v1" {
			t.Errorf("expected video name v1, got %q", entry.VideoName)
		}
	})
}

func TestMySQL_FollowAndPodUpsert(t *testing.T) {
	db := openTestDB(t)
	store := mysql.NewStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	follow := &domain.Follow{FollowerHost: "pod1.example", FollowingHost: "pod2.example", State: domain.FollowPending, CreatedAt: now, UpdatedAt: now}
	if err := store.Follows().Create(ctx, follow); err != nil {
		t.Fatalf("create follow: %v", err)
	}
	follow.State = domain.FollowAccepted
	if err := store.Follows().Update(ctx, follow); err != nil {
		t.Fatalf("update follow: %v", err)
	}

	followers, err := store.Follows().ListFollowers(ctx, "pod2.example")
	if err != nil {
		t.Fatalf("list followers: %v", err)
	}
	if len(followers) != 1 || followers[0].State != domain.FollowAccepted {
		t.Errorf("unexpected followers %+v", followers)
	}

	pod := &domain.Pod{Host: "pod2.example", ActorURL: "https://pod2.example/actor", InboxURL: "https://pod2.example/inbox", PublicKey: make([]byte, 32), UpdatedAt: now}
	if err := store.Pods().Upsert(ctx, pod); err != nil {
		t.Fatalf("upsert pod: %v", err)
	}
	pod.InboxURL = "https://pod2.example/shared-inbox"
	if err := store.Pods().Upsert(ctx, pod); err != nil {
		t.Fatalf("second upsert pod: %v", err)
	}

	got, err := store.Pods().FindByHost(ctx, "pod2.example")
	if err != nil || got == nil {
		t.Fatalf("find pod: %v", err)
	}
	if got.InboxURL != "https://pod2.example/shared-inbox" {
		t.Errorf("expected updated inbox, got %s", got.InboxURL)
	}
}
