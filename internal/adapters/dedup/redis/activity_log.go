package redis

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/peertube-pod/internal/core/services"
)

// ActivityLog remembers processed activity ids in Redis so every replica of a pod
// shares the same view.
type ActivityLog struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ services.ActivityLog = (*ActivityLog)(nil)

type Option func(*ActivityLog)

func WithPrefix(prefix string) Option {
	return func(l *ActivityLog) { l.prefix = strings.Trim(prefix, ":") }
}

func WithTTL(d time.Duration) Option {
	return func(l *ActivityLog) { l.ttl = d }
}

func NewActivityLog(rdb *redis.Client, opts ...Option) *ActivityLog {
	l := &ActivityLog{
		rdb:    rdb,
		prefix: "pod:activities",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ActivityLog) key(activityID string) string {
	return l.prefix + ":" + activityID
}

func (l *ActivityLog) Seen(ctx context.Context, activityID string) (bool, error) {
	n, err := l.rdb.Exists(ctx, l.key(activityID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *ActivityLog) Mark(ctx context.Context, activityID string) error {
	return l.rdb.Set(ctx, l.key(activityID), 1, l.ttl).Err()
}
