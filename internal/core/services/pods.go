package services

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/federation"
)

// PodDirectory resolves remote pods and caches their actor documents.
type PodDirectory struct {
	store  Store
	client RemotePodClient
	clock  Clock
}

func NewPodDirectory(store Store, client RemotePodClient, clock Clock) *PodDirectory {
	return &PodDirectory{store: store, client: client, clock: clock}
}

// ResolveKey implements federation.KeyResolver.
func (d *PodDirectory) ResolveKey(ctx context.Context, keyID string) (ed25519.PublicKey, error) {
	host, err := federation.HostOf(keyID)
	if err != nil {
		return nil, err
	}

	pod, err := d.store.Pods().FindByHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if pod != nil && len(pod.PublicKey) == ed25519.PublicKeySize {
		return ed25519.PublicKey(pod.PublicKey), nil
	}

	pod, err = d.Refresh(ctx, host, strings.SplitN(keyID, "#", 2)[0])
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(pod.PublicKey), nil
}

// Refresh fetches the actor document of a pod and stores it.
func (d *PodDirectory) Refresh(ctx context.Context, host, actorURL string) (*domain.Pod, error) {
	actor, err := d.client.FetchActor(ctx, actorURL)
	if err != nil {
		return nil, fmt.Errorf("fetching actor of %s: %w", host, err)
	}

	actorHost, err := federation.HostOf(actor.ID)
	if err != nil {
		return nil, err
	}
	if actorHost != host {
		return nil, fmt.Errorf("actor %s is not served by %s", actor.ID, host)
	}

	pub, err := federation.DecodePublicKey(actor.PublicKey.PublicKeyPem)
	if err != nil {
		return nil, err
	}

	pod := &domain.Pod{
		Host:      host,
		ActorURL:  actor.ID,
		InboxURL:  actor.Inbox,
		PublicKey: pub,
		UpdatedAt: d.clock.Now(),
	}
	if err := d.store.Pods().Upsert(ctx, pod); err != nil {
		return nil, err
	}
	return pod, nil
}
