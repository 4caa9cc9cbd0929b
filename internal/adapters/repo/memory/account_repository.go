package memory

import (
	"context"
	"sort"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

type AccountRepository struct {
	s *Store
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.s.lock()
	defer r.s.unlock()

	for _, existing := range r.s.data.accounts {
		if existing.URL == account.URL || (account.IsLocal() && existing.IsLocal() && existing.Name == account.Name) {
			return services.ErrAccountExists
		}
	}

	account.ID = r.s.data.nextID()
	copied := *account
	r.s.data.accounts[account.ID] = &copied
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.ID == id }), nil
}

func (r *AccountRepository) FindByUUID(ctx context.Context, uuid string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.UUID == uuid }), nil
}

func (r *AccountRepository) FindByURL(ctx context.Context, url string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.URL == url }), nil
}

func (r *AccountRepository) FindLocalByName(ctx context.Context, name string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.IsLocal() && a.Name == name }), nil
}

func (r *AccountRepository) find(match func(*domain.Account) bool) *domain.Account {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, account := range r.s.data.accounts {
		if match(account) {
			copied := *account
			return &copied
		}
	}
	return nil
}

type ChannelRepository struct {
	s *Store
}

func (r *ChannelRepository) Create(ctx context.Context, channel *domain.VideoChannel) error {
	r.s.lock()
	defer r.s.unlock()

	channel.ID = r.s.data.nextID()
	copied := *channel
	r.s.data.channels[channel.ID] = &copied
	return nil
}

func (r *ChannelRepository) FindByID(ctx context.Context, id int64) (*domain.VideoChannel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	channel, exists := r.s.data.channels[id]
	if !exists {
		return nil, nil
	}
	copied := *channel
	return &copied, nil
}

func (r *ChannelRepository) ListByAccount(ctx context.Context, accountID int64) ([]*domain.VideoChannel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.VideoChannel
	for _, channel := range r.s.data.channels {
		if channel.AccountID == accountID {
			copied := *channel
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
