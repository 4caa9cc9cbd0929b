package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/peertube-pod/internal/adapters/dedup/memory"
	"github.com/peertube-pod/internal/core/services"
)

func TestActivityLog_ExpiresAfterTTL(t *testing.T) {
	clock := services.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	log := memory.NewActivityLog(clock, time.Hour)
	ctx := context.Background()

	const id = "https://pod2.example/activities/1"

	if seen, _ := log.Seen(ctx, id); seen {
		t.Fatal("activity should not be seen before Mark")
	}

	log.Mark(ctx, id)
	if seen, _ := log.Seen(ctx, id); !seen {
		t.Fatal("activity should be seen after Mark")
	}

	clock.Advance(59 * time.Minute)
	if seen, _ := log.Seen(ctx, id); !seen {
		t.Error("activity should still be seen before TTL")
	}

	clock.Advance(time.Minute)
	if seen, _ := log.Seen(ctx, id); seen {
		t.Error("activity should be forgotten after TTL")
	}
}

func TestActivityLog_SweepsExpiredIdsOncePerTTL(t *testing.T) {
	clock := services.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	log := memory.NewActivityLog(clock, time.Hour)
	ctx := context.Background()

	log.Mark(ctx, "a")
	clock.Advance(30 * time.Minute)
	log.Mark(ctx, "b")

	// a has expired and the first sweep is due
	clock.Advance(30 * time.Minute)
	log.Mark(ctx, "c")
	if log.Len() != 2 {
		t.Fatalf("held %d ids after the sweep, want b and c", log.Len())
	}

	// b expires at 13:30, the next sweep runs at 14:00
	clock.Advance(45 * time.Minute)
	log.Mark(ctx, "d")
	if log.Len() != 3 {
		t.Errorf("held %d ids between sweeps, want b, c and d", log.Len())
	}
	if seen, _ := log.Seen(ctx, "b"); seen {
		t.Error("expired id reported as seen before it was swept")
	}

	clock.Advance(15 * time.Minute)
	log.Mark(ctx, "e")
	if log.Len() != 2 {
		t.Errorf("held %d ids after the second sweep, want d and e", log.Len())
	}
}
