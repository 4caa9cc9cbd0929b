package services

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/federation"
	"github.com/peertube-pod/internal/logging"
)

type DeliveryPayload struct {
	Inbox        string          `json:"inbox"`
	ActivityType string          `json:"activityType"`
	Activity     json.RawMessage `json:"activity"`
	Attempt      int             `json:"attempt"`
}

// ActivitySender builds outbound activities and enqueues one delivery per target inbox.
type ActivitySender struct {
	urls  federation.URLs
	store Store
	queue Queue
	clock Clock
}

func NewActivitySender(urls federation.URLs, store Store, queue Queue, clock Clock) *ActivitySender {
	return &ActivitySender{
		urls:  urls,
		store: store,
		queue: queue,
		clock: clock,
	}
}

func (s *ActivitySender) URLs() federation.URLs {
	return s.urls
}

func (s *ActivitySender) NewActivity(typ federation.ActivityType, actor string, object any) (*federation.Activity, error) {
	return federation.NewActivity(s.urls.Activity(uuid.NewString()), typ, actor, object)
}

// InboxOf returns the inbox of a remote pod, falling back to the conventional path
// when its actor document was never fetched.
func (s *ActivitySender) InboxOf(ctx context.Context, host string) (string, error) {
	pod, err := s.store.Pods().FindByHost(ctx, host)
	if err != nil {
		return "", err
	}
	if pod != nil && pod.InboxURL != "" {
		return pod.InboxURL, nil
	}
	return s.urls.ForHost(host).Inbox(), nil
}

// FollowerInboxes lists the inboxes of the pods with an accepted follow on this pod.
func (s *ActivitySender) FollowerInboxes(ctx context.Context, exceptHost string) ([]string, error) {
	follows, err := s.store.Follows().ListFollowers(ctx, s.urls.Host)
	if err != nil {
		return nil, err
	}

	inboxes := make([]string, 0, len(follows))
	for _, follow := range follows {
		if follow.State != domain.FollowAccepted || follow.FollowerHost == exceptHost {
			continue
		}
		inbox, err := s.InboxOf(ctx, follow.FollowerHost)
		if err != nil {
			return nil, err
		}
		inboxes = append(inboxes, inbox)
	}
	return inboxes, nil
}

func (s *ActivitySender) Deliver(ctx context.Context, inboxes []string, activity *federation.Activity) error {
	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("encoding %s activity: %w", activity.Type, err)
	}

	for _, inbox := range inboxes {
		payload, err := json.Marshal(DeliveryPayload{
			Inbox:        inbox,
			ActivityType: string(activity.Type),
			Activity:     body,
			Attempt:      1,
		})
		if err != nil {
			return err
		}

		err = s.queue.Publish(ctx, Message{
			MessageID: uuid.NewString(),
			Topic:     TopicActivityDelivery,
			Payload:   payload,
			Metadata: map[string]string{
				"correlationID": logging.RequestIDFromContext(ctx),
			},
		})
		if err != nil {
			return fmt.Errorf("enqueuing delivery to %s: %w", inbox, err)
		}
	}
	return nil
}

func (s *ActivitySender) SendToFollowers(ctx context.Context, activity *federation.Activity, exceptHost string) error {
	inboxes, err := s.FollowerInboxes(ctx, exceptHost)
	if err != nil {
		return err
	}
	return s.Deliver(ctx, inboxes, activity)
}

func (s *ActivitySender) SendToHost(ctx context.Context, host string, activity *federation.Activity) error {
	inbox, err := s.InboxOf(ctx, host)
	if err != nil {
		return err
	}
	return s.Deliver(ctx, []string{inbox}, activity)
}

func (s *ActivitySender) SendVideoRateChangeToFollowers(ctx context.Context, account *domain.Account, video *domain.Video, delta domain.RateDelta) error {
	activities, err := s.rateActivities(account, video, delta)
	if err != nil {
		return err
	}
	for _, activity := range activities {
		if err := s.SendToFollowers(ctx, activity, ""); err != nil {
			return err
		}
	}
	return nil
}

func (s *ActivitySender) SendVideoRateChangeToOrigin(ctx context.Context, account *domain.Account, video *domain.Video, delta domain.RateDelta) error {
	activities, err := s.rateActivities(account, video, delta)
	if err != nil {
		return err
	}
	for _, activity := range activities {
		if err := s.SendToHost(ctx, video.Host, activity); err != nil {
			return err
		}
	}
	return nil
}

// rateActivities keeps the order undo first, then create.
func (s *ActivitySender) rateActivities(account *domain.Account, video *domain.Video, delta domain.RateDelta) ([]*federation.Activity, error) {
	var activities []*federation.Activity

	undo := func(typ federation.ActivityType) error {
		inner, err := s.NewActivity(typ, account.URL, video.URL)
		if err != nil {
			return err
		}
		activity, err := s.NewActivity(federation.TypeUndo, account.URL, inner)
		if err != nil {
			return err
		}
		activities = append(activities, activity)
		return nil
	}
	create := func(typ federation.ActivityType) error {
		activity, err := s.NewActivity(typ, account.URL, video.URL)
		if err != nil {
			return err
		}
		activities = append(activities, activity)
		return nil
	}

	if delta.Likes < 0 {
		if err := undo(federation.TypeLike); err != nil {
			return nil, err
		}
	}
	if delta.Dislikes < 0 {
		if err := undo(federation.TypeDislike); err != nil {
			return nil, err
		}
	}
	if delta.Likes > 0 {
		if err := create(federation.TypeLike); err != nil {
			return nil, err
		}
	}
	if delta.Dislikes > 0 {
		if err := create(federation.TypeDislike); err != nil {
			return nil, err
		}
	}

	return activities, nil
}

// SendVideoToFollowers announces a Create or Update of an owned video.
func (s *ActivitySender) SendVideoToFollowers(ctx context.Context, typ federation.ActivityType, video *domain.Video, owner *domain.Account, exceptHost string) error {
	activity, err := s.NewActivity(typ, owner.URL, VideoObject(video, owner))
	if err != nil {
		return err
	}
	return s.SendToFollowers(ctx, activity, exceptHost)
}

func VideoObject(video *domain.Video, owner *domain.Account) *federation.VideoObject {
	return &federation.VideoObject{
		Type:         "Video",
		ID:           video.URL,
		UUID:         video.UUID,
		Name:         video.Name,
		Content:      video.Description,
		AttributedTo: owner.URL,
		Likes:        video.Likes,
		Dislikes:     video.Dislikes,
		Published:    video.CreatedAt,
		Updated:      video.UpdatedAt,
	}
}
