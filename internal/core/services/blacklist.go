package services

import (
	"context"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/logging"
)

var blacklistSorts = map[string]bool{
	"id": true, "-id": true,
	"name": true, "-name": true,
	"createdAt": true, "-createdAt": true,
}

// ValidBlacklistSort reports whether sort is accepted by BlacklistService.List.
func ValidBlacklistSort(sort string) bool {
	return sort == "" || blacklistSorts[sort]
}

// BlacklistService hides videos from the listings of this pod. It is local moderation:
// nothing is federated.
type BlacklistService struct {
	store Store
	clock Clock
}

func NewBlacklistService(store Store, clock Clock) *BlacklistService {
	return &BlacklistService{store: store, clock: clock}
}

func (s *BlacklistService) Add(ctx context.Context, admin *domain.Account, videoID int64, reason string) (*domain.VideoBlacklist, error) {
	if !admin.IsAdmin() {
		return nil, ErrForbidden
	}

	var entry *domain.VideoBlacklist
	err := s.store.InTx(ctx, func(ctx context.Context, tx Repositories) error {
		video, err := tx.Videos().FindByID(ctx, videoID)
		if err != nil {
			return err
		}
		if video == nil {
			return ErrVideoNotFound
		}

		existing, err := tx.Blacklist().FindByVideoID(ctx, videoID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyBlacklisted
		}

		entry = &domain.VideoBlacklist{
			VideoID:   videoID,
			Reason:    reason,
			CreatedAt: s.clock.Now(),
			VideoName: video.Name,
			VideoUUID: video.UUID,
		}
		return tx.Blacklist().Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().Int64("video_id", videoID).Str("admin", admin.Name).Msg("video blacklisted")
	return entry, nil
}

func (s *BlacklistService) Remove(ctx context.Context, admin *domain.Account, videoID int64) error {
	if !admin.IsAdmin() {
		return ErrForbidden
	}

	existing, err := s.store.Blacklist().FindByVideoID(ctx, videoID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrBlacklistNotFound
	}
	if err := s.store.Blacklist().Delete(ctx, videoID); err != nil {
		return err
	}

	logging.Ctx(ctx).Info().Int64("video_id", videoID).Str("admin", admin.Name).Msg("video removed from blacklist")
	return nil
}

func (s *BlacklistService) List(ctx context.Context, admin *domain.Account, opts BlacklistListOptions) ([]*domain.VideoBlacklist, int, error) {
	if !admin.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	if !ValidBlacklistSort(opts.Sort) {
		return nil, 0, ErrInvalidSort
	}
	if opts.Sort == "" {
		opts.Sort = "-createdAt"
	}
	if opts.Count <= 0 {
		opts.Count = DefaultVideoListCount
	}
	if opts.Count > MaxVideoListCount {
		opts.Count = MaxVideoListCount
	}
	if opts.Start < 0 {
		opts.Start = 0
	}
	return s.store.Blacklist().List(ctx, opts)
}
