package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

const videoColumns = `v.id, v.uuid, v.url, v.name, v.description, v.account_id, v.channel_id, v.host, v.likes, v.dislikes, v.created_at, v.updated_at`

var videoSortColumns = map[string]string{
	"id":        "v.id",
	"name":      "v.name",
	"createdAt": "v.created_at",
	"likes":     "v.likes",
}

// orderBy turns a sort such as "-createdAt" into an ORDER BY clause. Unknown keys sort by id.
func orderBy(sortKey string, columns map[string]string, idColumn string) string {
	direction := "ASC"
	if strings.HasPrefix(sortKey, "-") {
		direction = "DESC"
		sortKey = strings.TrimPrefix(sortKey, "-")
	}
	column, ok := columns[sortKey]
	if !ok {
		column = idColumn
	}
	return " ORDER BY " + column + " " + direction + ", " + idColumn + " " + direction
}

type VideoRepository struct {
	q querier
}

func (r *VideoRepository) Create(ctx context.Context, video *domain.Video) error {
	query := `
		INSERT INTO videos (uuid, url, name, description, account_id, channel_id, host, likes, dislikes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.q.ExecContext(ctx, query,
		video.UUID,
		video.URL,
		video.Name,
		video.Description,
		video.AccountID,
		video.ChannelID,
		video.Host,
		video.Likes,
		video.Dislikes,
		video.CreatedAt,
		video.UpdatedAt,
	)
	if err != nil {
		return err
	}

	video.ID, err = res.LastInsertId()
	return err
}

func (r *VideoRepository) Update(ctx context.Context, video *domain.Video) error {
	query := `
		UPDATE videos
		SET name = ?, description = ?, account_id = ?, channel_id = ?, likes = ?, dislikes = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := r.q.ExecContext(ctx, query,
		video.Name,
		video.Description,
		video.AccountID,
		video.ChannelID,
		video.Likes,
		video.Dislikes,
		video.UpdatedAt,
		video.ID,
	)

	return err
}

func (r *VideoRepository) FindByID(ctx context.Context, id int64) (*domain.Video, error) {
	return r.findOne(ctx, `WHERE v.id = ?`, id)
}

func (r *VideoRepository) FindByUUID(ctx context.Context, uuid string) (*domain.Video, error) {
	return r.findOne(ctx, `WHERE v.uuid = ?`, uuid)
}

func (r *VideoRepository) FindByURL(ctx context.Context, url string) (*domain.Video, error) {
	return r.findOne(ctx, `WHERE v.url = ?`, url)
}

func (r *VideoRepository) findOne(ctx context.Context, where string, args ...any) (*domain.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos v ` + where

	video, err := scanVideo(r.q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return video, nil
}

// IncrementRates updates the counters in place so concurrent transactions never
// overwrite each other's deltas.
func (r *VideoRepository) IncrementRates(ctx context.Context, id int64, likes, dislikes int) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE videos SET likes = likes + ?, dislikes = dislikes + ? WHERE id = ?`,
		likes, dislikes, id,
	)
	return err
}

func (r *VideoRepository) List(ctx context.Context, opts services.VideoListOptions) ([]*domain.Video, int, error) {
	const from = ` FROM videos v LEFT JOIN video_blacklist b ON b.video_id = v.id WHERE b.id IS NULL`

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*)`+from).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + videoColumns + from + orderBy(opts.Sort, videoSortColumns, "v.id") + ` LIMIT ? OFFSET ?`
	rows, err := r.q.QueryContext(ctx, query, opts.Count, opts.Start)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var videos []*domain.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, 0, err
		}
		videos = append(videos, video)
	}

	return videos, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(row scanner) (*domain.Video, error) {
	var video domain.Video
	err := row.Scan(
		&video.ID,
		&video.UUID,
		&video.URL,
		&video.Name,
		&video.Description,
		&video.AccountID,
		&video.ChannelID,
		&video.Host,
		&video.Likes,
		&video.Dislikes,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &video, nil
}
