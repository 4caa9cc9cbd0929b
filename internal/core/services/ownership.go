package services

import (
	"context"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/federation"
	"github.com/peertube-pod/internal/logging"
)

// OwnershipService transfers local videos between local accounts.
type OwnershipService struct {
	store  Store
	sender *ActivitySender
	clock  Clock
	retry  RetryPolicy
}

func NewOwnershipService(store Store, sender *ActivitySender, clock Clock, retry RetryPolicy) *OwnershipService {
	return &OwnershipService{
		store:  store,
		sender: sender,
		clock:  clock,
		retry:  retry,
	}
}

// Give asks nextOwnerName to take over a video of caller. A request already waiting for
// the same account is returned unchanged.
func (s *OwnershipService) Give(ctx context.Context, caller *domain.Account, videoID int64, nextOwnerName string) (*domain.VideoChangeOwnership, error) {
	video, err := s.store.Videos().FindByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, ErrVideoNotFound
	}
	if !video.IsOwned() {
		return nil, ErrVideoNotOwned
	}
	if video.AccountID != caller.ID {
		return nil, ErrNotVideoOwner
	}

	next, err := s.store.Accounts().FindLocalByName(ctx, nextOwnerName)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, ErrAccountNotFound
	}
	if next.ID == caller.ID {
		return nil, ErrSameOwner
	}

	existing, err := s.store.Ownerships().FindWaiting(ctx, video.ID, next.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	change := &domain.VideoChangeOwnership{
		VideoID:            video.ID,
		InitiatorAccountID: caller.ID,
		NextOwnerAccountID: next.ID,
		Status:             domain.OwnershipWaiting,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Ownerships().Create(ctx, change); err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Str("video", video.UUID).
		Str("from", caller.Name).
		Str("to", next.Name).
		Msg("video ownership change requested")
	return change, nil
}

func (s *OwnershipService) List(ctx context.Context, caller *domain.Account) ([]*domain.VideoChangeOwnership, error) {
	return s.store.Ownerships().ListByNextOwner(ctx, caller.ID)
}

// Accept moves the video to caller and one of caller's channels, then announces the new
// owner to the followers of this pod.
func (s *OwnershipService) Accept(ctx context.Context, caller *domain.Account, changeID, channelID int64) (*domain.Video, error) {
	var video *domain.Video

	err := RetryTransaction(ctx, s.retry, "cannot accept video ownership", func() error {
		return s.store.InTx(ctx, func(ctx context.Context, tx Repositories) error {
			change, err := s.waitingChange(ctx, tx, caller, changeID)
			if err != nil {
				return err
			}

			channel, err := tx.Channels().FindByID(ctx, channelID)
			if err != nil {
				return err
			}
			if channel == nil {
				return ErrChannelNotFound
			}
			if channel.AccountID != caller.ID {
				return ErrChannelNotOwned
			}

			v, err := tx.Videos().FindByID(ctx, change.VideoID)
			if err != nil {
				return err
			}
			if v == nil {
				return ErrVideoNotFound
			}
			// the video changed hands since the request was made
			if !v.IsOwned() || v.AccountID != change.InitiatorAccountID {
				return ErrOwnershipNotWaiting
			}

			now := s.clock.Now()
			v.AccountID = caller.ID
			v.ChannelID = channel.ID
			v.UpdatedAt = now
			if err := tx.Videos().Update(ctx, v); err != nil {
				return err
			}

			if err := tx.Ownerships().RefuseWaiting(ctx, v.ID, now); err != nil {
				return err
			}
			change.Status = domain.OwnershipAccepted
			change.UpdatedAt = now
			if err := tx.Ownerships().Update(ctx, change); err != nil {
				return err
			}

			video = v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().Str("video", video.UUID).Str("owner", caller.Name).Msg("video ownership accepted")

	if err := s.sender.SendVideoToFollowers(ctx, federation.TypeUpdate, video, caller, ""); err != nil {
		return nil, err
	}
	return video, nil
}

func (s *OwnershipService) Refuse(ctx context.Context, caller *domain.Account, changeID int64) error {
	return RetryTransaction(ctx, s.retry, "cannot refuse video ownership", func() error {
		return s.store.InTx(ctx, func(ctx context.Context, tx Repositories) error {
			change, err := s.waitingChange(ctx, tx, caller, changeID)
			if err != nil {
				return err
			}

			change.Status = domain.OwnershipRefused
			change.UpdatedAt = s.clock.Now()
			return tx.Ownerships().Update(ctx, change)
		})
	})
}

func (s *OwnershipService) waitingChange(ctx context.Context, tx Repositories, caller *domain.Account, changeID int64) (*domain.VideoChangeOwnership, error) {
	change, err := tx.Ownerships().FindByID(ctx, changeID)
	if err != nil {
		return nil, err
	}
	if change == nil {
		return nil, ErrOwnershipNotFound
	}
	if change.NextOwnerAccountID != caller.ID {
		return nil, ErrForbidden
	}
	if change.Status != domain.OwnershipWaiting {
		return nil, ErrOwnershipNotWaiting
	}
	return change, nil
}
