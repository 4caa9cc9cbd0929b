package mysql

import (
	"context"
	"database/sql"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

const accountColumns = `id, uuid, name, url, host, password_hash, role, created_at`

type AccountRepository struct {
	q querier
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (uuid, name, url, host, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.q.ExecContext(ctx, query,
		account.UUID,
		account.Name,
		account.URL,
		account.Host,
		account.PasswordHash,
		account.Role,
		account.CreatedAt,
	)
	if isDuplicate(err) {
		return services.ErrAccountExists
	}
	if err != nil {
		return err
	}

	account.ID, err = res.LastInsertId()
	return err
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE id = ?`, id)
}

func (r *AccountRepository) FindByUUID(ctx context.Context, uuid string) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE uuid = ?`, uuid)
}

func (r *AccountRepository) FindByURL(ctx context.Context, url string) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE url = ?`, url)
}

func (r *AccountRepository) FindLocalByName(ctx context.Context, name string) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE name = ? AND host = ''`, name)
}

func (r *AccountRepository) findOne(ctx context.Context, where string, args ...any) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ` + where

	var account domain.Account
	err := r.q.QueryRowContext(ctx, query, args...).Scan(
		&account.ID,
		&account.UUID,
		&account.Name,
		&account.URL,
		&account.Host,
		&account.PasswordHash,
		&account.Role,
		&account.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &account, nil
}

type ChannelRepository struct {
	q querier
}

func (r *ChannelRepository) Create(ctx context.Context, channel *domain.VideoChannel) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO video_channels (account_id, name, created_at) VALUES (?, ?, ?)`,
		channel.AccountID,
		channel.Name,
		channel.CreatedAt,
	)
	if err != nil {
		return err
	}

	channel.ID, err = res.LastInsertId()
	return err
}

func (r *ChannelRepository) FindByID(ctx context.Context, id int64) (*domain.VideoChannel, error) {
	var channel domain.VideoChannel
	err := r.q.QueryRowContext(ctx,
		`SELECT id, account_id, name, created_at FROM video_channels WHERE id = ?`, id,
	).Scan(&channel.ID, &channel.AccountID, &channel.Name, &channel.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &channel, nil
}

func (r *ChannelRepository) ListByAccount(ctx context.Context, accountID int64) ([]*domain.VideoChannel, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, account_id, name, created_at FROM video_channels WHERE account_id = ? ORDER BY id`, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*domain.VideoChannel
	for rows.Next() {
		var channel domain.VideoChannel
		if err := rows.Scan(&channel.ID, &channel.AccountID, &channel.Name, &channel.CreatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, &channel)
	}

	return channels, rows.Err()
}
