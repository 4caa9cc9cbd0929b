package memory

import (
	"context"
	"sort"
	"time"

	"github.com/peertube-pod/internal/core/domain"
)

type FollowRepository struct {
	s *Store
}

func (r *FollowRepository) Find(ctx context.Context, followerHost, followingHost string) (*domain.Follow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, follow := range r.s.data.follows {
		if follow.FollowerHost == followerHost && follow.FollowingHost == followingHost {
			copied := *follow
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *FollowRepository) Create(ctx context.Context, follow *domain.Follow) error {
	r.s.lock()
	defer r.s.unlock()

	follow.ID = r.s.data.nextID()
	copied := *follow
	r.s.data.follows[follow.ID] = &copied
	return nil
}

func (r *FollowRepository) Update(ctx context.Context, follow *domain.Follow) error {
	r.s.lock()
	defer r.s.unlock()

	copied := *follow
	r.s.data.follows[follow.ID] = &copied
	return nil
}

func (r *FollowRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	r.s.lock()
	defer r.s.unlock()

	if follow, exists := r.s.data.follows[id]; exists {
		follow.UpdatedAt = at
	}
	return nil
}

func (r *FollowRepository) Delete(ctx context.Context, followerHost, followingHost string) error {
	r.s.lock()
	defer r.s.unlock()

	for id, follow := range r.s.data.follows {
		if follow.FollowerHost == followerHost && follow.FollowingHost == followingHost {
			delete(r.s.data.follows, id)
		}
	}
	return nil
}

func (r *FollowRepository) ListFollowers(ctx context.Context, host string) ([]*domain.Follow, error) {
	return r.list(func(f *domain.Follow) bool { return f.FollowingHost == host }), nil
}

func (r *FollowRepository) ListFollowing(ctx context.Context, host string) ([]*domain.Follow, error) {
	return r.list(func(f *domain.Follow) bool { return f.FollowerHost == host }), nil
}

func (r *FollowRepository) list(match func(*domain.Follow) bool) []*domain.Follow {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Follow
	for _, follow := range r.s.data.follows {
		if match(follow) {
			copied := *follow
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

type PodRepository struct {
	s *Store
}

func (r *PodRepository) Upsert(ctx context.Context, pod *domain.Pod) error {
	r.s.lock()
	defer r.s.unlock()

	copied := *pod
	r.s.data.pods[pod.Host] = &copied
	return nil
}

func (r *PodRepository) FindByHost(ctx context.Context, host string) (*domain.Pod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	pod, exists := r.s.data.pods[host]
	if !exists {
		return nil, nil
	}
	copied := *pod
	return &copied, nil
}
