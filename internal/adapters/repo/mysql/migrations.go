package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		uuid CHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		url VARCHAR(512) NOT NULL,
		host VARCHAR(255) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL DEFAULT '',
		role VARCHAR(16) NOT NULL DEFAULT 'user',
		created_at TIMESTAMP(6) NOT NULL,
		UNIQUE KEY uk_account_uuid (uuid),
		UNIQUE KEY uk_account_url (url),
		UNIQUE KEY uk_account_name_host (name, host)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS video_channels (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		account_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP(6) NOT NULL,
		INDEX idx_channel_account (account_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS videos (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		uuid CHAR(36) NOT NULL,
		url VARCHAR(512) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		account_id BIGINT NOT NULL,
		channel_id BIGINT NOT NULL DEFAULT 0,
		host VARCHAR(255) NOT NULL DEFAULT '',
		likes BIGINT NOT NULL DEFAULT 0,
		dislikes BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP(6) NOT NULL,
		updated_at TIMESTAMP(6) NOT NULL,
		UNIQUE KEY uk_video_uuid (uuid),
		UNIQUE KEY uk_video_url (url)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS account_video_rates (
		account_id BIGINT NOT NULL,
		video_id BIGINT NOT NULL,
		type VARCHAR(16) NOT NULL,
		created_at TIMESTAMP(6) NOT NULL,
		updated_at TIMESTAMP(6) NOT NULL,
		PRIMARY KEY (account_id, video_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS follows (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		follower_host VARCHAR(255) NOT NULL,
		following_host VARCHAR(255) NOT NULL,
		state VARCHAR(16) NOT NULL,
		created_at TIMESTAMP(6) NOT NULL,
		updated_at TIMESTAMP(6) NOT NULL,
		UNIQUE KEY uk_follow (follower_host, following_host)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS pods (
		host VARCHAR(255) NOT NULL PRIMARY KEY,
		actor_url VARCHAR(512) NOT NULL,
		inbox_url VARCHAR(512) NOT NULL,
		public_key VARBINARY(64) NOT NULL,
		updated_at TIMESTAMP(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS video_blacklist (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		video_id BIGINT NOT NULL,
		reason VARCHAR(1024) NOT NULL DEFAULT '',
		created_at TIMESTAMP(6) NOT NULL,
		UNIQUE KEY uk_blacklist_video (video_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS video_change_ownerships (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		video_id BIGINT NOT NULL,
		initiator_account_id BIGINT NOT NULL,
		next_owner_account_id BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at TIMESTAMP(6) NOT NULL,
		updated_at TIMESTAMP(6) NOT NULL,
		INDEX idx_ownership_next_owner (next_owner_account_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables that do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}
