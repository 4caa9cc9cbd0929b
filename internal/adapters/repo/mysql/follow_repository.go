package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/peertube-pod/internal/core/domain"
)

const followColumns = `id, follower_host, following_host, state, created_at, updated_at`

type FollowRepository struct {
	q querier
}

func (r *FollowRepository) Find(ctx context.Context, followerHost, followingHost string) (*domain.Follow, error) {
	query := `SELECT ` + followColumns + ` FROM follows WHERE follower_host = ? AND following_host = ?`

	follow, err := scanFollow(r.q.QueryRowContext(ctx, query, followerHost, followingHost))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return follow, nil
}

func (r *FollowRepository) Create(ctx context.Context, follow *domain.Follow) error {
	query := `
		INSERT INTO follows (follower_host, following_host, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	res, err := r.q.ExecContext(ctx, query,
		follow.FollowerHost,
		follow.FollowingHost,
		follow.State,
		follow.CreatedAt,
		follow.UpdatedAt,
	)
	if err != nil {
		return err
	}

	follow.ID, err = res.LastInsertId()
	return err
}

func (r *FollowRepository) Update(ctx context.Context, follow *domain.Follow) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE follows SET state = ?, updated_at = ? WHERE id = ?`,
		follow.State,
		follow.UpdatedAt,
		follow.ID,
	)
	return err
}

func (r *FollowRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `UPDATE follows SET updated_at = ? WHERE id = ?`, at, id)
	return err
}

func (r *FollowRepository) Delete(ctx context.Context, followerHost, followingHost string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_host = ? AND following_host = ?`,
		followerHost, followingHost,
	)
	return err
}

func (r *FollowRepository) ListFollowers(ctx context.Context, host string) ([]*domain.Follow, error) {
	return r.list(ctx, `WHERE following_host = ?`, host)
}

func (r *FollowRepository) ListFollowing(ctx context.Context, host string) ([]*domain.Follow, error) {
	return r.list(ctx, `WHERE follower_host = ?`, host)
}

func (r *FollowRepository) list(ctx context.Context, where string, args ...any) ([]*domain.Follow, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+followColumns+` FROM follows `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var follows []*domain.Follow
	for rows.Next() {
		follow, err := scanFollow(rows)
		if err != nil {
			return nil, err
		}
		follows = append(follows, follow)
	}

	return follows, rows.Err()
}

func scanFollow(row scanner) (*domain.Follow, error) {
	var follow domain.Follow
	err := row.Scan(
		&follow.ID,
		&follow.FollowerHost,
		&follow.FollowingHost,
		&follow.State,
		&follow.CreatedAt,
		&follow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &follow, nil
}

type PodRepository struct {
	q querier
}

func (r *PodRepository) Upsert(ctx context.Context, pod *domain.Pod) error {
	query := `
		INSERT INTO pods (host, actor_url, inbox_url, public_key, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			actor_url = VALUES(actor_url),
			inbox_url = VALUES(inbox_url),
			public_key = VALUES(public_key),
			updated_at = VALUES(updated_at)
	`

	_, err := r.q.ExecContext(ctx, query,
		pod.Host,
		pod.ActorURL,
		pod.InboxURL,
		pod.PublicKey,
		pod.UpdatedAt,
	)

	return err
}

func (r *PodRepository) FindByHost(ctx context.Context, host string) (*domain.Pod, error) {
	var pod domain.Pod
	err := r.q.QueryRowContext(ctx,
		`SELECT host, actor_url, inbox_url, public_key, updated_at FROM pods WHERE host = ?`, host,
	).Scan(&pod.Host, &pod.ActorURL, &pod.InboxURL, &pod.PublicKey, &pod.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &pod, nil
}
