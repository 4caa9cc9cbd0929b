package services

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/federation"
	"github.com/peertube-pod/internal/logging"
	"github.com/peertube-pod/internal/metrics"
)

// errIgnored marks activities that are acknowledged without effect.
var errIgnored = errors.New("activity ignored")

type InboxService struct {
	urls   federation.URLs
	store  Store
	sender *ActivitySender
	seen   ActivityLog
	clock  Clock
	retry  RetryPolicy
}

func NewInboxService(urls federation.URLs, store Store, sender *ActivitySender, seen ActivityLog, clock Clock, retry RetryPolicy) *InboxService {
	return &InboxService{
		urls:   urls,
		store:  store,
		sender: sender,
		seen:   seen,
		clock:  clock,
		retry:  retry,
	}
}

// Process applies an activity delivered by senderHost. Activities already processed
// are acknowledged without being applied again.
func (s *InboxService) Process(ctx context.Context, senderHost string, activity *federation.Activity) error {
	typ := string(activity.Type)

	actorHost, err := federation.HostOf(activity.Actor)
	if err != nil || actorHost != senderHost {
		metrics.InboxActivities.WithLabelValues(typ, "rejected").Inc()
		return ErrActorHostMismatch
	}

	seen, err := s.seen.Seen(ctx, activity.ID)
	if err != nil {
		return err
	}
	if seen {
		metrics.InboxActivities.WithLabelValues(typ, "duplicate").Inc()
		logging.Ctx(ctx).Debug().Str("activity", activity.ID).Msg("duplicate activity ignored")
		return nil
	}

	err = s.dispatch(ctx, senderHost, activity)
	switch {
	case errors.Is(err, errIgnored):
		logging.Ctx(ctx).Debug().Str("activity", activity.ID).Str("type", typ).Msg("activity ignored")
	case errors.Is(err, ErrActorHostMismatch), errors.Is(err, federation.ErrMalformedActivity), errors.Is(err, ErrUnsupportedObject):
		metrics.InboxActivities.WithLabelValues(typ, "rejected").Inc()
		return err
	case err != nil:
		metrics.InboxActivities.WithLabelValues(typ, "error").Inc()
		return err
	}

	if err := s.seen.Mark(ctx, activity.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("activity", activity.ID).Msg("cannot remember processed activity")
	}
	metrics.InboxActivities.WithLabelValues(typ, "ok").Inc()
	return nil
}

func (s *InboxService) dispatch(ctx context.Context, senderHost string, activity *federation.Activity) error {
	switch activity.Type {
	case federation.TypeFollow:
		return s.processFollow(ctx, senderHost, activity)
	case federation.TypeAccept:
		return s.processAccept(ctx, senderHost, activity)
	case federation.TypeUndo:
		return s.processUndo(ctx, senderHost, activity)
	case federation.TypeLike:
		return s.processRateActivity(ctx, senderHost, activity, domain.RateLike, "")
	case federation.TypeDislike:
		return s.processRateActivity(ctx, senderHost, activity, domain.RateDislike, "")
	case federation.TypeCreate, federation.TypeUpdate:
		return s.processVideo(ctx, senderHost, activity)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedObject, activity.Type)
}

func (s *InboxService) processFollow(ctx context.Context, senderHost string, activity *federation.Activity) error {
	target, err := activity.ObjectIRI()
	if err != nil {
		return err
	}
	if target != s.urls.Actor() {
		return fmt.Errorf("%w: follow target %s", ErrUnsupportedObject, target)
	}

	now := s.clock.Now()
	follow, err := s.store.Follows().Find(ctx, senderHost, s.urls.Host)
	if err != nil {
		return err
	}
	if follow == nil {
		err = s.store.Follows().Create(ctx, &domain.Follow{
			FollowerHost:  senderHost,
			FollowingHost: s.urls.Host,
			State:         domain.FollowAccepted,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	} else if follow.State != domain.FollowAccepted {
		follow.State = domain.FollowAccepted
		follow.UpdatedAt = now
		err = s.store.Follows().Update(ctx, follow)
	}
	if err != nil {
		return err
	}

	logging.Ctx(ctx).Info().Str("follower", senderHost).Msg("pod follower accepted")

	// always answer, the follower may have missed a previous Accept
	accept, err := s.sender.NewActivity(federation.TypeAccept, s.urls.Actor(), activity)
	if err != nil {
		return err
	}
	return s.sender.SendToHost(ctx, senderHost, accept)
}

func (s *InboxService) processAccept(ctx context.Context, senderHost string, activity *federation.Activity) error {
	inner, err := activity.ObjectActivity()
	if err != nil {
		return err
	}
	if inner.Type != federation.TypeFollow {
		return fmt.Errorf("%w: accept of %s", ErrUnsupportedObject, inner.Type)
	}

	follow, err := s.store.Follows().Find(ctx, s.urls.Host, senderHost)
	if err != nil {
		return err
	}
	if follow == nil {
		return errIgnored
	}
	if follow.State == domain.FollowAccepted {
		return nil
	}

	follow.State = domain.FollowAccepted
	follow.UpdatedAt = s.clock.Now()
	if err := s.store.Follows().Update(ctx, follow); err != nil {
		return err
	}

	logging.Ctx(ctx).Info().Str("following", senderHost).Msg("follow accepted by pod")
	return nil
}

func (s *InboxService) processUndo(ctx context.Context, senderHost string, activity *federation.Activity) error {
	inner, err := activity.ObjectActivity()
	if err != nil {
		return err
	}
	if inner.Actor != activity.Actor {
		return ErrActorHostMismatch
	}

	switch inner.Type {
	case federation.TypeFollow:
		if err := s.store.Follows().Delete(ctx, senderHost, s.urls.Host); err != nil {
			return err
		}
		logging.Ctx(ctx).Info().Str("follower", senderHost).Msg("pod follower removed")
		return nil
	case federation.TypeLike:
		return s.processRateActivity(ctx, senderHost, inner, domain.RateNone, domain.RateLike)
	case federation.TypeDislike:
		return s.processRateActivity(ctx, senderHost, inner, domain.RateNone, domain.RateDislike)
	}
	return fmt.Errorf("%w: undo of %s", ErrUnsupportedObject, inner.Type)
}

// processRateActivity applies a remote Like/Dislike, or the Undo of one when undoing is
// set. An Undo only removes a stored rate of the same type, so a late Undo Like never
// cancels a newer Dislike.
func (s *InboxService) processRateActivity(ctx context.Context, senderHost string, activity *federation.Activity, rating, undoing domain.RateType) error {
	videoURL, err := activity.ObjectIRI()
	if err != nil {
		return err
	}

	var (
		video   *domain.Video
		delta   domain.RateDelta
		unknown bool
	)

	err = RetryTransaction(ctx, s.retry, "cannot apply remote video rate", func() error {
		return s.store.InTx(ctx, func(ctx context.Context, tx Repositories) error {
			v, err := tx.Videos().FindByURL(ctx, videoURL)
			if err != nil {
				return err
			}
			unknown = v == nil
			if unknown {
				return nil
			}

			account, err := s.resolveRemoteAccount(ctx, tx, activity.Actor, senderHost)
			if err != nil {
				return err
			}

			if undoing != "" {
				previous, err := tx.Rates().Load(ctx, account.ID, v.ID)
				if err != nil {
					return err
				}
				if previous == nil || previous.Type != undoing {
					video, delta = v, domain.RateDelta{}
					return nil
				}
			}

			d, err := applyRate(ctx, tx, account.ID, v.ID, rating, s.clock.Now())
			if err != nil {
				return err
			}
			video, delta = v, d
			return nil
		})
	})
	if err != nil {
		return err
	}
	if unknown {
		return errIgnored
	}

	if delta.IsZero() {
		return nil
	}
	metrics.VideoRatesApplied.WithLabelValues("remote", string(rating)).Inc()

	if !video.IsOwned() {
		return nil
	}

	// we are the origin: followers get authoritative counters
	return s.announceVideo(ctx, video.ID, senderHost)
}

func (s *InboxService) announceVideo(ctx context.Context, videoID int64, exceptHost string) error {
	video, err := s.store.Videos().FindByID(ctx, videoID)
	if err != nil {
		return err
	}
	if video == nil {
		return ErrVideoNotFound
	}
	owner, err := s.store.Accounts().FindByID(ctx, video.AccountID)
	if err != nil {
		return err
	}
	if owner == nil {
		return ErrAccountNotFound
	}
	return s.sender.SendVideoToFollowers(ctx, federation.TypeUpdate, video, owner, exceptHost)
}

func (s *InboxService) processVideo(ctx context.Context, senderHost string, activity *federation.Activity) error {
	object, err := activity.ObjectVideo()
	if err != nil {
		return err
	}

	videoHost, err := federation.HostOf(object.ID)
	if err != nil {
		return err
	}
	ownerHost, err := federation.HostOf(object.AttributedTo)
	if err != nil {
		return err
	}
	if videoHost != senderHost || ownerHost != senderHost {
		return ErrActorHostMismatch
	}

	return RetryTransaction(ctx, s.retry, "cannot store remote video", func() error {
		return s.store.InTx(ctx, func(ctx context.Context, tx Repositories) error {
			owner, err := s.resolveRemoteAccount(ctx, tx, object.AttributedTo, senderHost)
			if err != nil {
				return err
			}

			existing, err := tx.Videos().FindByURL(ctx, object.ID)
			if err != nil {
				return err
			}

			if existing == nil {
				updated := object.Updated
				if updated.IsZero() {
					updated = s.clock.Now()
				}
				return tx.Videos().Create(ctx, &domain.Video{
					UUID:        object.UUID,
					URL:         object.ID,
					Name:        object.Name,
					Description: object.Content,
					AccountID:   owner.ID,
					Host:        senderHost,
					Likes:       object.Likes,
					Dislikes:    object.Dislikes,
					CreatedAt:   object.Published,
					UpdatedAt:   updated,
				})
			}

			if existing.IsOwned() {
				return ErrActorHostMismatch
			}

			existing.Name = object.Name
			existing.Description = object.Content
			existing.AccountID = owner.ID
			existing.Likes = object.Likes
			existing.Dislikes = object.Dislikes
			existing.UpdatedAt = s.clock.Now()
			return tx.Videos().Update(ctx, existing)
		})
	})
}

func (s *InboxService) resolveRemoteAccount(ctx context.Context, tx Repositories, actorURL, host string) (*domain.Account, error) {
	account, err := tx.Accounts().FindByURL(ctx, actorURL)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = &domain.Account{
		UUID:      uuid.NewString(),
		Name:      path.Base(actorURL),
		URL:       actorURL,
		Host:      host,
		Role:      domain.RoleUser,
		CreatedAt: s.clock.Now(),
	}
	if err := tx.Accounts().Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}
