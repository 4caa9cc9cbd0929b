package memory

import (
	"context"

	"github.com/peertube-pod/internal/core/domain"
)

type RateRepository struct {
	s *Store
}

func (r *RateRepository) Load(ctx context.Context, accountID, videoID int64) (*domain.AccountVideoRate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rate, exists := r.s.data.rates[rateKey{accountID, videoID}]
	if !exists {
		return nil, nil
	}
	copied := *rate
	return &copied, nil
}

func (r *RateRepository) Create(ctx context.Context, rate *domain.AccountVideoRate) error {
	return r.put(rate)
}

func (r *RateRepository) Update(ctx context.Context, rate *domain.AccountVideoRate) error {
	return r.put(rate)
}

func (r *RateRepository) put(rate *domain.AccountVideoRate) error {
	r.s.lock()
	defer r.s.unlock()

	copied := *rate
	r.s.data.rates[rateKey{rate.AccountID, rate.VideoID}] = &copied
	return nil
}

func (r *RateRepository) Delete(ctx context.Context, accountID, videoID int64) error {
	r.s.lock()
	defer r.s.unlock()

	delete(r.s.data.rates, rateKey{accountID, videoID})
	return nil
}
