package domain

import "time"

type FollowState string

const (
	FollowPending  FollowState = "pending"
	FollowAccepted FollowState = "accepted"
)

// Follow is a subscription of FollowerHost to the activity of FollowingHost.
type Follow struct {
	ID            int64
	FollowerHost  string
	FollowingHost string
	State         FollowState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Pod is a remote instance whose actor document has been fetched.
type Pod struct {
	Host      string
	ActorURL  string
	InboxURL  string
	PublicKey []byte
	UpdatedAt time.Time
}
