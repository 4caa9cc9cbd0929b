package services

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/federation"
	"github.com/peertube-pod/internal/logging"
)

const (
	DefaultVideoListCount = 15
	MaxVideoListCount     = 100
)

type VideoService struct {
	urls   federation.URLs
	store  Store
	sender *ActivitySender
	clock  Clock
}

func NewVideoService(urls federation.URLs, store Store, sender *ActivitySender, clock Clock) *VideoService {
	return &VideoService{
		urls:   urls,
		store:  store,
		sender: sender,
		clock:  clock,
	}
}

// Create publishes a new local video in one of the account's channels and announces it
// to the followers of this pod.
func (s *VideoService) Create(ctx context.Context, account *domain.Account, channelID int64, name, description string) (*domain.Video, error) {
	channel, err := s.store.Channels().FindByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, ErrChannelNotFound
	}
	if channel.AccountID != account.ID {
		return nil, ErrChannelNotOwned
	}

	now := s.clock.Now()
	id := uuid.NewString()
	video := &domain.Video{
		UUID:        id,
		URL:         s.urls.Video(id),
		Name:        name,
		Description: description,
		AccountID:   account.ID,
		ChannelID:   channel.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Videos().Create(ctx, video); err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().Str("video", video.UUID).Str("account", account.Name).Msg("video created")

	if err := s.sender.SendVideoToFollowers(ctx, federation.TypeCreate, video, account, ""); err != nil {
		return nil, err
	}
	return video, nil
}

// Get accepts an integer id or a UUID.
func (s *VideoService) Get(ctx context.Context, idOrUUID string) (*domain.Video, error) {
	var (
		video *domain.Video
		err   error
	)
	if id, convErr := strconv.ParseInt(idOrUUID, 10, 64); convErr == nil {
		video, err = s.store.Videos().FindByID(ctx, id)
	} else if _, parseErr := uuid.Parse(idOrUUID); parseErr == nil {
		video, err = s.store.Videos().FindByUUID(ctx, idOrUUID)
	}
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, ErrVideoNotFound
	}
	return video, nil
}

func (s *VideoService) List(ctx context.Context, opts VideoListOptions) ([]*domain.Video, int, error) {
	if opts.Start < 0 {
		opts.Start = 0
	}
	if opts.Count <= 0 {
		opts.Count = DefaultVideoListCount
	}
	if opts.Count > MaxVideoListCount {
		opts.Count = MaxVideoListCount
	}
	if opts.Sort == "" {
		opts.Sort = "-createdAt"
	}
	return s.store.Videos().List(ctx, opts)
}
