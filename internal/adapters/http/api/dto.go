package api

import (
	"time"

	"github.com/peertube-pod/internal/core/domain"
)

type listResponse[T any] struct {
	Total int `json:"total"`
	Data  []T `json:"data"`
}

type accountResponse struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Host      string    `json:"host,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func newAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		UUID:      a.UUID,
		Name:      a.Name,
		URL:       a.URL,
		Host:      a.Host,
		Role:      string(a.Role),
		CreatedAt: a.CreatedAt,
	}
}

type channelResponse struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"accountId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func newChannelResponse(c *domain.VideoChannel) channelResponse {
	return channelResponse{ID: c.ID, AccountID: c.AccountID, Name: c.Name, CreatedAt: c.CreatedAt}
}

type videoResponse struct {
	ID          int64     `json:"id"`
	UUID        string    `json:"uuid"`
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AccountID   int64     `json:"accountId"`
	ChannelID   int64     `json:"channelId,omitempty"`
	Host        string    `json:"host,omitempty"`
	IsLocal     bool      `json:"isLocal"`
	Likes       int64     `json:"likes"`
	Dislikes    int64     `json:"dislikes"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newVideoResponse(v *domain.Video) videoResponse {
	return videoResponse{
		ID:          v.ID,
		UUID:        v.UUID,
		URL:         v.URL,
		Name:        v.Name,
		Description: v.Description,
		AccountID:   v.AccountID,
		ChannelID:   v.ChannelID,
		Host:        v.Host,
		IsLocal:     v.IsOwned(),
		Likes:       v.Likes,
		Dislikes:    v.Dislikes,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

type blacklistResponse struct {
	ID        int64     `json:"id"`
	VideoID   int64     `json:"videoId"`
	Name      string    `json:"name"`
	UUID      string    `json:"uuid"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func newBlacklistResponse(b *domain.VideoBlacklist) blacklistResponse {
	return blacklistResponse{
		ID:        b.ID,
		VideoID:   b.VideoID,
		Name:      b.VideoName,
		UUID:      b.VideoUUID,
		Reason:    b.Reason,
		CreatedAt: b.CreatedAt,
	}
}

type ownershipResponse struct {
	ID                 int64     `json:"id"`
	VideoID            int64     `json:"videoId"`
	InitiatorAccountID int64     `json:"initiatorAccountId"`
	NextOwnerAccountID int64     `json:"nextOwnerAccountId"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func newOwnershipResponse(c *domain.VideoChangeOwnership) ownershipResponse {
	return ownershipResponse{
		ID:                 c.ID,
		VideoID:            c.VideoID,
		InitiatorAccountID: c.InitiatorAccountID,
		NextOwnerAccountID: c.NextOwnerAccountID,
		Status:             string(c.Status),
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

type followResponse struct {
	ID            int64     `json:"id"`
	FollowerHost  string    `json:"follower"`
	FollowingHost string    `json:"following"`
	State         string    `json:"state"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newFollowResponse(f *domain.Follow) followResponse {
	return followResponse{
		ID:            f.ID,
		FollowerHost:  f.FollowerHost,
		FollowingHost: f.FollowingHost,
		State:         string(f.State),
		CreatedAt:     f.CreatedAt,
	}
}

func mapSlice[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
