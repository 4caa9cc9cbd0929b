package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

const blacklistColumns = `b.id, b.video_id, b.reason, b.created_at, COALESCE(v.name, ''), COALESCE(v.uuid, '')`

var blacklistSortColumns = map[string]string{
	"id":        "b.id",
	"name":      "v.name",
	"createdAt": "b.created_at",
}

type BlacklistRepository struct {
	q querier
}

func (r *BlacklistRepository) Create(ctx context.Context, entry *domain.VideoBlacklist) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO video_blacklist (video_id, reason, created_at) VALUES (?, ?, ?)`,
		entry.VideoID,
		entry.Reason,
		entry.CreatedAt,
	)
	if isDuplicate(err) {
		return services.ErrAlreadyBlacklisted
	}
	if err != nil {
		return err
	}

	entry.ID, err = res.LastInsertId()
	return err
}

func (r *BlacklistRepository) FindByVideoID(ctx context.Context, videoID int64) (*domain.VideoBlacklist, error) {
	query := `SELECT ` + blacklistColumns + ` FROM video_blacklist b LEFT JOIN videos v ON v.id = b.video_id WHERE b.video_id = ?`

	entry, err := scanBlacklist(r.q.QueryRowContext(ctx, query, videoID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *BlacklistRepository) Delete(ctx context.Context, videoID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM video_blacklist WHERE video_id = ?`, videoID)
	return err
}

func (r *BlacklistRepository) List(ctx context.Context, opts services.BlacklistListOptions) ([]*domain.VideoBlacklist, int, error) {
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM video_blacklist`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + blacklistColumns + ` FROM video_blacklist b LEFT JOIN videos v ON v.id = b.video_id` +
		orderBy(opts.Sort, blacklistSortColumns, "b.id") + ` LIMIT ? OFFSET ?`
	rows, err := r.q.QueryContext(ctx, query, opts.Count, opts.Start)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*domain.VideoBlacklist
	for rows.Next() {
		entry, err := scanBlacklist(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	return entries, total, rows.Err()
}

func scanBlacklist(row scanner) (*domain.VideoBlacklist, error) {
	var entry domain.VideoBlacklist
	err := row.Scan(
		&entry.ID,
		&entry.VideoID,
		&entry.Reason,
		&entry.CreatedAt,
		&entry.VideoName,
		&entry.VideoUUID,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

const ownershipColumns = `id, video_id, initiator_account_id, next_owner_account_id, status, created_at, updated_at`

type OwnershipRepository struct {
	q querier
}

func (r *OwnershipRepository) Create(ctx context.Context, change *domain.VideoChangeOwnership) error {
	query := `
		INSERT INTO video_change_ownerships (video_id, initiator_account_id, next_owner_account_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := r.q.ExecContext(ctx, query,
		change.VideoID,
		change.InitiatorAccountID,
		change.NextOwnerAccountID,
		change.Status,
		change.CreatedAt,
		change.UpdatedAt,
	)
	if err != nil {
		return err
	}

	change.ID, err = res.LastInsertId()
	return err
}

func (r *OwnershipRepository) Update(ctx context.Context, change *domain.VideoChangeOwnership) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE video_change_ownerships SET status = ?, updated_at = ? WHERE id = ?`,
		change.Status,
		change.UpdatedAt,
		change.ID,
	)
	return err
}

func (r *OwnershipRepository) FindByID(ctx context.Context, id int64) (*domain.VideoChangeOwnership, error) {
	return r.findOne(ctx, `WHERE id = ? FOR UPDATE`, id)
}

func (r *OwnershipRepository) FindWaiting(ctx context.Context, videoID, nextOwnerID int64) (*domain.VideoChangeOwnership, error) {
	return r.findOne(ctx, `WHERE video_id = ? AND next_owner_account_id = ? AND status = ? ORDER BY id LIMIT 1`,
		videoID, nextOwnerID, domain.OwnershipWaiting)
}

func (r *OwnershipRepository) RefuseWaiting(ctx context.Context, videoID int64, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE video_change_ownerships SET status = ?, updated_at = ? WHERE video_id = ? AND status = ?`,
		domain.OwnershipRefused,
		at,
		videoID,
		domain.OwnershipWaiting,
	)
	return err
}

func (r *OwnershipRepository) findOne(ctx context.Context, where string, args ...any) (*domain.VideoChangeOwnership, error) {
	change, err := scanOwnership(r.q.QueryRowContext(ctx, `SELECT `+ownershipColumns+` FROM video_change_ownerships `+where, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return change, nil
}

func (r *OwnershipRepository) ListByNextOwner(ctx context.Context, accountID int64) ([]*domain.VideoChangeOwnership, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+ownershipColumns+` FROM video_change_ownerships WHERE next_owner_account_id = ? ORDER BY id`, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []*domain.VideoChangeOwnership
	for rows.Next() {
		change, err := scanOwnership(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}

	return changes, rows.Err()
}

func scanOwnership(row scanner) (*domain.VideoChangeOwnership, error) {
	var change domain.VideoChangeOwnership
	err := row.Scan(
		&change.ID,
		&change.VideoID,
		&change.InitiatorAccountID,
		&change.NextOwnerAccountID,
		&change.Status,
		&change.CreatedAt,
		&change.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &change, nil
}
