package memory

import (
	"context"
	"fmt"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

type VideoRepository struct {
	s *Store
}

var videoOrder = map[string]func(a, b *domain.Video) bool{
	"name":      func(a, b *domain.Video) bool { return a.Name < b.Name },
	"createdAt": func(a, b *domain.Video) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"likes":     func(a, b *domain.Video) bool { return a.Likes < b.Likes },
}

func (r *VideoRepository) Create(ctx context.Context, video *domain.Video) error {
	r.s.lock()
	defer r.s.unlock()

	for _, existing := range r.s.data.videos {
		if existing.URL == video.URL || existing.UUID == video.UUID {
			return fmt.Errorf("video %s already exists", video.URL)
		}
	}

	video.ID = r.s.data.nextID()
	copied := *video
	r.s.data.videos[video.ID] = &copied
	return nil
}

func (r *VideoRepository) Update(ctx context.Context, video *domain.Video) error {
	r.s.lock()
	defer r.s.unlock()

	if _, exists := r.s.data.videos[video.ID]; !exists {
		return services.ErrVideoNotFound
	}
	copied := *video
	r.s.data.videos[video.ID] = &copied
	return nil
}

func (r *VideoRepository) FindByID(ctx context.Context, id int64) (*domain.Video, error) {
	return r.find(func(v *domain.Video) bool { return v.ID == id }), nil
}

func (r *VideoRepository) FindByUUID(ctx context.Context, uuid string) (*domain.Video, error) {
	return r.find(func(v *domain.Video) bool { return v.UUID == uuid }), nil
}

func (r *VideoRepository) FindByURL(ctx context.Context, url string) (*domain.Video, error) {
	return r.find(func(v *domain.Video) bool { return v.URL == url }), nil
}

func (r *VideoRepository) find(match func(*domain.Video) bool) *domain.Video {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, video := range r.s.data.videos {
		if match(video) {
			copied := *video
			return &copied
		}
	}
	return nil
}

func (r *VideoRepository) IncrementRates(ctx context.Context, id int64, likes, dislikes int) error {
	r.s.lock()
	defer r.s.unlock()

	video, exists := r.s.data.videos[id]
	if !exists {
		return services.ErrVideoNotFound
	}
	video.Likes += int64(likes)
	video.Dislikes += int64(dislikes)
	return nil
}

func (r *VideoRepository) List(ctx context.Context, opts services.VideoListOptions) ([]*domain.Video, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Video
	for _, video := range r.s.data.videos {
		if _, blacklisted := r.s.data.blacklist[video.ID]; blacklisted {
			continue
		}
		copied := *video
		result = append(result, &copied)
	}

	sortBy(result, opts.Sort, func(v *domain.Video) int64 { return v.ID }, videoOrder)
	return page(result, opts.Start, opts.Count), len(result), nil
}
