package memory

import (
	"context"
	"sort"
	"time"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

var blacklistOrder = map[string]func(a, b *domain.VideoBlacklist) bool{
	"name":      func(a, b *domain.VideoBlacklist) bool { return a.VideoName < b.VideoName },
	"createdAt": func(a, b *domain.VideoBlacklist) bool { return a.CreatedAt.Before(b.CreatedAt) },
}

type BlacklistRepository struct {
	s *Store
}

func (r *BlacklistRepository) Create(ctx context.Context, entry *domain.VideoBlacklist) error {
	r.s.lock()
	defer r.s.unlock()

	if _, exists := r.s.data.blacklist[entry.VideoID]; exists {
		return services.ErrAlreadyBlacklisted
	}

	entry.ID = r.s.data.nextID()
	copied := *entry
	r.s.data.blacklist[entry.VideoID] = &copied
	return nil
}

func (r *BlacklistRepository) FindByVideoID(ctx context.Context, videoID int64) (*domain.VideoBlacklist, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entry, exists := r.s.data.blacklist[videoID]
	if !exists {
		return nil, nil
	}
	return r.withVideo(entry), nil
}

func (r *BlacklistRepository) Delete(ctx context.Context, videoID int64) error {
	r.s.lock()
	defer r.s.unlock()

	delete(r.s.data.blacklist, videoID)
	return nil
}

func (r *BlacklistRepository) List(ctx context.Context, opts services.BlacklistListOptions) ([]*domain.VideoBlacklist, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*domain.VideoBlacklist, 0, len(r.s.data.blacklist))
	for _, entry := range r.s.data.blacklist {
		result = append(result, r.withVideo(entry))
	}

	sortBy(result, opts.Sort, func(e *domain.VideoBlacklist) int64 { return e.ID }, blacklistOrder)
	return page(result, opts.Start, opts.Count), len(result), nil
}

// withVideo copies entry and fills the video columns. Callers hold the lock.
func (r *BlacklistRepository) withVideo(entry *domain.VideoBlacklist) *domain.VideoBlacklist {
	copied := *entry
	if video, exists := r.s.data.videos[entry.VideoID]; exists {
		copied.VideoName = video.Name
		copied.VideoUUID = video.UUID
	}
	return &copied
}

type OwnershipRepository struct {
	s *Store
}

func (r *OwnershipRepository) Create(ctx context.Context, change *domain.VideoChangeOwnership) error {
	r.s.lock()
	defer r.s.unlock()

	change.ID = r.s.data.nextID()
	copied := *change
	r.s.data.ownerships[change.ID] = &copied
	return nil
}

func (r *OwnershipRepository) Update(ctx context.Context, change *domain.VideoChangeOwnership) error {
	r.s.lock()
	defer r.s.unlock()

	if _, exists := r.s.data.ownerships[change.ID]; !exists {
		return services.ErrOwnershipNotFound
	}
	copied := *change
	r.s.data.ownerships[change.ID] = &copied
	return nil
}

func (r *OwnershipRepository) FindByID(ctx context.Context, id int64) (*domain.VideoChangeOwnership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	change, exists := r.s.data.ownerships[id]
	if !exists {
		return nil, nil
	}
	copied := *change
	return &copied, nil
}

func (r *OwnershipRepository) FindWaiting(ctx context.Context, videoID, nextOwnerID int64) (*domain.VideoChangeOwnership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, change := range r.s.data.ownerships {
		if change.VideoID == videoID && change.NextOwnerAccountID == nextOwnerID && change.Status == domain.OwnershipWaiting {
			copied := *change
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *OwnershipRepository) RefuseWaiting(ctx context.Context, videoID int64, at time.Time) error {
	r.s.lock()
	defer r.s.unlock()

	for _, change := range r.s.data.ownerships {
		if change.VideoID == videoID && change.Status == domain.OwnershipWaiting {
			change.Status = domain.OwnershipRefused
			change.UpdatedAt = at
		}
	}
	return nil
}

func (r *OwnershipRepository) ListByNextOwner(ctx context.Context, accountID int64) ([]*domain.VideoChangeOwnership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.VideoChangeOwnership
	for _, change := range r.s.data.ownerships {
		if change.NextOwnerAccountID == accountID {
			copied := *change
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
