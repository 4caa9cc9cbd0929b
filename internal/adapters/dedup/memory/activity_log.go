package memory

import (
	"context"
	"sync"
	"time"

	"github.com/peertube-pod/internal/core/services"
)

// ActivityLog keeps processed activity ids in memory until ttl elapses. Expired ids
// are dropped by a sweep that runs at most once per ttl, on Mark.
type ActivityLog struct {
	mu        sync.Mutex
	clock     services.Clock
	ttl       time.Duration
	expires   map[string]time.Time
	nextSweep time.Time
}

var _ services.ActivityLog = (*ActivityLog)(nil)

func NewActivityLog(clock services.Clock, ttl time.Duration) *ActivityLog {
	return &ActivityLog{
		clock:     clock,
		ttl:       ttl,
		expires:   make(map[string]time.Time),
		nextSweep: clock.Now().Add(ttl),
	}
}

func (l *ActivityLog) Seen(ctx context.Context, activityID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiresAt, ok := l.expires[activityID]
	if !ok {
		return false, nil
	}
	if !l.clock.Now().Before(expiresAt) {
		delete(l.expires, activityID)
		return false, nil
	}
	return true, nil
}

func (l *ActivityLog) Mark(ctx context.Context, activityID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if !now.Before(l.nextSweep) {
		l.sweep(now)
	}
	l.expires[activityID] = now.Add(l.ttl)
	return nil
}

func (l *ActivityLog) sweep(now time.Time) {
	for id, expiresAt := range l.expires {
		if !now.Before(expiresAt) {
			delete(l.expires, id)
		}
	}
	l.nextSweep = now.Add(l.ttl)
}

// Len reports how many ids are held, expired ones not yet swept included.
func (l *ActivityLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.expires)
}
