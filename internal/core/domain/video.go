package domain

import "time"

type Video struct {
	ID          int64
	UUID        string
	URL         string
	Name        string
	Description string
	AccountID   int64
	ChannelID   int64
	// Host is the origin pod. Empty for videos owned by this pod.
	Host      string
	Likes     int64
	Dislikes  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (v *Video) IsOwned() bool {
	return v.Host == ""
}
