package services

import (
	"context"
	"fmt"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/federation"
	"github.com/peertube-pod/internal/logging"
)

type FollowService struct {
	urls   federation.URLs
	store  Store
	sender *ActivitySender
	clock  Clock
}

func NewFollowService(urls federation.URLs, store Store, sender *ActivitySender, clock Clock) *FollowService {
	return &FollowService{
		urls:   urls,
		store:  store,
		sender: sender,
		clock:  clock,
	}
}

// Follow asks each host to accept this pod as a follower. Hosts already followed are
// skipped; their state is left untouched.
func (s *FollowService) Follow(ctx context.Context, hosts []string) error {
	for _, host := range hosts {
		if host == s.urls.Host {
			return ErrFollowSelf
		}
	}

	for _, host := range hosts {
		existing, err := s.store.Follows().Find(ctx, s.urls.Host, host)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		now := s.clock.Now()
		err = s.store.Follows().Create(ctx, &domain.Follow{
			FollowerHost:  s.urls.Host,
			FollowingHost: host,
			State:         domain.FollowPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return fmt.Errorf("creating follow of %s: %w", host, err)
		}

		if err := s.SendFollow(ctx, host); err != nil {
			return err
		}

		logging.Ctx(ctx).Info().Str("following", host).Msg("follow request sent")
	}
	return nil
}

// SendFollow enqueues a Follow of the pod actor of host.
func (s *FollowService) SendFollow(ctx context.Context, host string) error {
	activity, err := s.sender.NewActivity(federation.TypeFollow, s.urls.Actor(), s.urls.ForHost(host).Actor())
	if err != nil {
		return err
	}
	return s.sender.SendToHost(ctx, host, activity)
}

func (s *FollowService) Unfollow(ctx context.Context, host string) error {
	follow, err := s.store.Follows().Find(ctx, s.urls.Host, host)
	if err != nil {
		return err
	}
	if follow == nil {
		return ErrFollowNotFound
	}

	if err := s.store.Follows().Delete(ctx, s.urls.Host, host); err != nil {
		return err
	}

	inner, err := s.sender.NewActivity(federation.TypeFollow, s.urls.Actor(), s.urls.ForHost(host).Actor())
	if err != nil {
		return err
	}
	undo, err := s.sender.NewActivity(federation.TypeUndo, s.urls.Actor(), inner)
	if err != nil {
		return err
	}

	logging.Ctx(ctx).Info().Str("following", host).Msg("pod unfollowed")
	return s.sender.SendToHost(ctx, host, undo)
}

func (s *FollowService) ListFollowing(ctx context.Context) ([]*domain.Follow, error) {
	return s.store.Follows().ListFollowing(ctx, s.urls.Host)
}

func (s *FollowService) ListFollowers(ctx context.Context) ([]*domain.Follow, error) {
	return s.store.Follows().ListFollowers(ctx, s.urls.Host)
}
