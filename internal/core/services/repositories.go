package services

import (
	"context"
	"time"

	"github.com/peertube-pod/internal/core/domain"
)

// Finders return (nil, nil) when no row matches.

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	FindByUUID(ctx context.Context, uuid string) (*domain.Account, error)
	FindByURL(ctx context.Context, url string) (*domain.Account, error)
	FindLocalByName(ctx context.Context, name string) (*domain.Account, error)
}

type ChannelRepository interface {
	Create(ctx context.Context, channel *domain.VideoChannel) error
	FindByID(ctx context.Context, id int64) (*domain.VideoChannel, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*domain.VideoChannel, error)
}

type VideoListOptions struct {
	Start int
	Count int
	// Sort is one of id, -id, name, -name, createdAt, -createdAt, likes, -likes.
	Sort string
}

type VideoRepository interface {
	Create(ctx context.Context, video *domain.Video) error
	Update(ctx context.Context, video *domain.Video) error
	FindByID(ctx context.Context, id int64) (*domain.Video, error)
	FindByUUID(ctx context.Context, uuid string) (*domain.Video, error)
	FindByURL(ctx context.Context, url string) (*domain.Video, error)
	IncrementRates(ctx context.Context, id int64, likes, dislikes int) error
	// List excludes blacklisted videos.
	List(ctx context.Context, opts VideoListOptions) ([]*domain.Video, int, error)
}

type RateRepository interface {
	// Load locks the row for the rest of the transaction on SQL backends.
	Load(ctx context.Context, accountID, videoID int64) (*domain.AccountVideoRate, error)
	Create(ctx context.Context, rate *domain.AccountVideoRate) error
	Update(ctx context.Context, rate *domain.AccountVideoRate) error
	Delete(ctx context.Context, accountID, videoID int64) error
}

type FollowRepository interface {
	Find(ctx context.Context, followerHost, followingHost string) (*domain.Follow, error)
	Create(ctx context.Context, follow *domain.Follow) error
	Update(ctx context.Context, follow *domain.Follow) error
	Delete(ctx context.Context, followerHost, followingHost string) error
	// ListFollowers returns the follows whose FollowingHost is host.
	ListFollowers(ctx context.Context, host string) ([]*domain.Follow, error)
	// ListFollowing returns the follows whose FollowerHost is host.
	ListFollowing(ctx context.Context, host string) ([]*domain.Follow, error)
	// Touch sets UpdatedAt of a follow and nothing else.
	Touch(ctx context.Context, id int64, at time.Time) error
}

type PodRepository interface {
	Upsert(ctx context.Context, pod *domain.Pod) error
	FindByHost(ctx context.Context, host string) (*domain.Pod, error)
}

type BlacklistListOptions struct {
	Start int
	Count int
	// Sort is one of id, -id, name, -name, createdAt, -createdAt.
	Sort string
}

type BlacklistRepository interface {
	Create(ctx context.Context, entry *domain.VideoBlacklist) error
	FindByVideoID(ctx context.Context, videoID int64) (*domain.VideoBlacklist, error)
	Delete(ctx context.Context, videoID int64) error
	List(ctx context.Context, opts BlacklistListOptions) ([]*domain.VideoBlacklist, int, error)
}

type OwnershipRepository interface {
	Create(ctx context.Context, change *domain.VideoChangeOwnership) error
	Update(ctx context.Context, change *domain.VideoChangeOwnership) error
	FindByID(ctx context.Context, id int64) (*domain.VideoChangeOwnership, error)
	FindWaiting(ctx context.Context, videoID, nextOwnerID int64) (*domain.VideoChangeOwnership, error)
	ListByNextOwner(ctx context.Context, accountID int64) ([]*domain.VideoChangeOwnership, error)
	// RefuseWaiting marks every waiting request for videoID as refused.
	RefuseWaiting(ctx context.Context, videoID int64, at time.Time) error
}

// Repositories is the set of repositories bound to one connection or transaction.
type Repositories interface {
	Accounts() AccountRepository
	Channels() ChannelRepository
	Videos() VideoRepository
	Rates() RateRepository
	Follows() FollowRepository
	Pods() PodRepository
	Blacklist() BlacklistRepository
	Ownerships() OwnershipRepository
}

// Store exposes repositories outside of a transaction and runs transactional units.
// InTx commits when fn returns nil and rolls back otherwise. Backends report
// deadlocks and lock wait timeouts as ErrTransactionConflict.
type Store interface {
	Repositories
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}

// ActivityLog remembers the ids of processed inbound activities.
type ActivityLog interface {
	Seen(ctx context.Context, activityID string) (bool, error)
	Mark(ctx context.Context, activityID string) error
}
