package mysql

import (
	"context"
	"database/sql"

	"github.com/peertube-pod/internal/core/domain"
)

type RateRepository struct {
	q querier
}

// Load locks the rate row, so two transactions rating the same video for the same
// account are serialized (or one of them deadlocks and is retried).
func (r *RateRepository) Load(ctx context.Context, accountID, videoID int64) (*domain.AccountVideoRate, error) {
	query := `
		SELECT account_id, video_id, type, created_at, updated_at
		FROM account_video_rates
		WHERE account_id = ? AND video_id = ?
		FOR UPDATE
	`

	var rate domain.AccountVideoRate
	err := r.q.QueryRowContext(ctx, query, accountID, videoID).Scan(
		&rate.AccountID,
		&rate.VideoID,
		&rate.Type,
		&rate.CreatedAt,
		&rate.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rate, nil
}

func (r *RateRepository) Create(ctx context.Context, rate *domain.AccountVideoRate) error {
	query := `
		INSERT INTO account_video_rates (account_id, video_id, type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, query,
		rate.AccountID,
		rate.VideoID,
		rate.Type,
		rate.CreatedAt,
		rate.UpdatedAt,
	)

	return err
}

func (r *RateRepository) Update(ctx context.Context, rate *domain.AccountVideoRate) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE account_video_rates SET type = ?, updated_at = ? WHERE account_id = ? AND video_id = ?`,
		rate.Type,
		rate.UpdatedAt,
		rate.AccountID,
		rate.VideoID,
	)
	return err
}

func (r *RateRepository) Delete(ctx context.Context, accountID, videoID int64) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM account_video_rates WHERE account_id = ? AND video_id = ?`,
		accountID, videoID,
	)
	return err
}
