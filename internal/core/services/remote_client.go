package services

import (
	"context"

	"github.com/peertube-pod/internal/federation"
)

// RemotePodClient talks to other pods over HTTP.
type RemotePodClient interface {
	// PostInbox delivers a signed activity body to a remote inbox.
	PostInbox(ctx context.Context, inboxURL string, body []byte) error
	FetchActor(ctx context.Context, actorURL string) (*federation.Actor, error)
}
