package services

import (
	"context"
	"time"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/logging"
	"github.com/peertube-pod/internal/metrics"
)

type VideoRateService struct {
	store  Store
	sender *ActivitySender
	clock  Clock
	retry  RetryPolicy
}

func NewVideoRateService(store Store, sender *ActivitySender, clock Clock, retry RetryPolicy) *VideoRateService {
	return &VideoRateService{
		store:  store,
		sender: sender,
		clock:  clock,
		retry:  retry,
	}
}

// RateVideo replaces the rating of account on a video and propagates the change:
// to the followers of this pod when the video is owned, to its origin otherwise.
func (s *VideoRateService) RateVideo(ctx context.Context, account *domain.Account, videoID int64, rating domain.RateType) error {
	if !rating.Valid() {
		return ErrInvalidRating
	}

	var (
		video *domain.Video
		delta domain.RateDelta
	)

	err := RetryTransaction(ctx, s.retry, "cannot update the user video rate", func() error {
		return s.store.InTx(ctx, func(ctx context.Context, tx Repositories) error {
			v, err := tx.Videos().FindByID(ctx, videoID)
			if err != nil {
				return err
			}
			if v == nil {
				return ErrVideoNotFound
			}

			d, err := applyRate(ctx, tx, account.ID, v.ID, rating, s.clock.Now())
			if err != nil {
				return err
			}

			v.Likes += int64(d.Likes)
			v.Dislikes += int64(d.Dislikes)
			video, delta = v, d
			return nil
		})
	})
	if err != nil {
		return err
	}

	metrics.VideoRatesApplied.WithLabelValues("local", string(rating)).Inc()

	// Even if we do not own the video the counters were incremented, so the user gets
	// feedback; the origin stays authoritative.
	if !delta.IsZero() {
		if video.IsOwned() {
			err = s.sender.SendVideoRateChangeToFollowers(ctx, account, video, delta)
		} else {
			err = s.sender.SendVideoRateChangeToOrigin(ctx, account, video, delta)
		}
		if err != nil {
			return err
		}
	}

	logging.Ctx(ctx).Info().
		Str("video", video.Name).
		Str("account", account.Name).
		Msg("account video rate updated")
	return nil
}

func (s *VideoRateService) GetRating(ctx context.Context, account *domain.Account, videoID int64) (domain.RateType, error) {
	video, err := s.store.Videos().FindByID(ctx, videoID)
	if err != nil {
		return "", err
	}
	if video == nil {
		return "", ErrVideoNotFound
	}

	rate, err := s.store.Rates().Load(ctx, account.ID, video.ID)
	if err != nil {
		return "", err
	}
	if rate == nil {
		return domain.RateNone, nil
	}
	return rate.Type, nil
}

// applyRate stores the new rating of an account and updates the video counters.
// Must run inside a transaction.
func applyRate(ctx context.Context, tx Repositories, accountID, videoID int64, rating domain.RateType, now time.Time) (domain.RateDelta, error) {
	previous, err := tx.Rates().Load(ctx, accountID, videoID)
	if err != nil {
		return domain.RateDelta{}, err
	}

	delta := domain.ComputeRateDelta(previous, rating)

	switch {
	case previous != nil && rating == domain.RateNone:
		if err := tx.Rates().Delete(ctx, accountID, videoID); err != nil {
			return domain.RateDelta{}, err
		}
	case previous != nil:
		if previous.Type != rating {
			previous.Type = rating
			previous.UpdatedAt = now
			if err := tx.Rates().Update(ctx, previous); err != nil {
				return domain.RateDelta{}, err
			}
		}
	case rating != domain.RateNone:
		err := tx.Rates().Create(ctx, &domain.AccountVideoRate{
			AccountID: accountID,
			VideoID:   videoID,
			Type:      rating,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return domain.RateDelta{}, err
		}
	}

	if !delta.IsZero() {
		if err := tx.Videos().IncrementRates(ctx, videoID, delta.Likes, delta.Dislikes); err != nil {
			return domain.RateDelta{}, err
		}
	}

	return delta, nil
}
