package services_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
	"github.com/peertube-pod/internal/federation"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	account, err := h.accounts.Register(ctx, "alice", "secret", domain.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if account.URL != h.urls.Account("alice") || !account.IsLocal() || account.UUID == "" {
		t.Errorf("account = %+v", account)
	}
	if account.PasswordHash == "" || account.PasswordHash == "secret" {
		t.Errorf("password stored as %q", account.PasswordHash)
	}

	channels, err := h.accounts.ListChannels(ctx, account.ID)
	if err != nil || len(channels) != 1 || channels[0].Name != "alice_channel" {
		t.Fatalf("channels = %+v, %v", channels, err)
	}

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"duplicate", "alice", "secret", services.ErrAccountExists},
		{"uppercase", "Alice", "secret", services.ErrInvalidUsername},
		{"too long", strings.Repeat("a", 51), "secret", services.ErrInvalidUsername},
		{"empty", "", "secret", services.ErrInvalidUsername},
		{"short password", "bob", "12345", services.ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.accounts.Register(ctx, tt.username, tt.password, domain.RoleUser)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	registered, _ := h.localAccount(t, "alice", domain.RoleUser)

	account, err := h.accounts.Authenticate(ctx, "alice", "password")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if account.ID != registered.ID {
		t.Errorf("authenticated %d, want %d", account.ID, registered.ID)
	}

	for _, creds := range [][2]string{{"alice", "wrong"}, {"nobody", "password"}} {
		if _, err := h.accounts.Authenticate(ctx, creds[0], creds[1]); !errors.Is(err, services.ErrInvalidCredentials) {
			t.Errorf("Authenticate(%s, %s): err = %v, want ErrInvalidCredentials", creds[0], creds[1], err)
		}
	}
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.accounts.EnsureAdmin(ctx, "root", "rootpass")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if !first.IsAdmin() {
		t.Errorf("role = %s, want admin", first.Role)
	}

	second, err := h.accounts.EnsureAdmin(ctx, "root", "rootpass")
	if err != nil {
		t.Fatalf("EnsureAdmin again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("EnsureAdmin created a second account")
	}
}

func TestGetAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, _ := h.localAccount(t, "alice", domain.RoleUser)

	for _, key := range []string{strconv.FormatInt(alice.ID, 10), alice.UUID} {
		got, err := h.accounts.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get(%s): %v", key, err)
		}
		if got.ID != alice.ID {
			t.Errorf("Get(%s) = %d, want %d", key, got.ID, alice.ID)
		}
	}

	for _, key := range []string{"9999", "not-a-uuid", "0b3a3e5e-6a36-4a53-9f43-3a1a0f4a7f8e"} {
		_, err := h.accounts.Get(ctx, key)
		if !errors.Is(err, services.ErrAccountNotFound) {
			t.Errorf("Get(%s): err = %v, want ErrAccountNotFound", key, err)
		}
	}
	if services.ErrAccountNotFound.Error() != "video account not found" {
		t.Errorf("message = %q", services.ErrAccountNotFound.Error())
	}
}

func TestChannels(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, _ := h.localAccount(t, "alice", domain.RoleUser)

	channel, err := h.accounts.CreateChannel(ctx, alice, "cooking")
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if channel.AccountID != alice.ID {
		t.Errorf("channel = %+v", channel)
	}

	channels, err := h.accounts.ListChannels(ctx, alice.ID)
	if err != nil || len(channels) != 2 {
		t.Fatalf("channels = %+v, %v", channels, err)
	}

	remote := h.remoteAccount(t, "pod-b.example", "bob")
	if _, err := h.accounts.CreateChannel(ctx, remote, "nope"); !errors.Is(err, services.ErrForbidden) {
		t.Errorf("remote CreateChannel: err = %v, want ErrForbidden", err)
	}
}

func TestVideoService_CreateFederatesAndLists(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addFollower(t, "pod-b.example")
	videos := services.NewVideoService(h.urls, h.store, h.sender, h.clock)

	alice, channel := h.localAccount(t, "alice", domain.RoleUser)
	bob, bobChannel := h.localAccount(t, "bob", domain.RoleUser)

	if _, err := videos.Create(ctx, alice, bobChannel.ID, "wrong channel", ""); !errors.Is(err, services.ErrChannelNotOwned) {
		t.Fatalf("Create in another channel: err = %v, want ErrChannelNotOwned", err)
	}
	if _, err := videos.Create(ctx, alice, 9999, "no channel", ""); !errors.Is(err, services.ErrChannelNotFound) {
		t.Fatalf("Create in unknown channel: err = %v, want ErrChannelNotFound", err)
	}

	video, err := videos.Create(ctx, alice, channel.ID, "first steps", "hello")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !video.IsOwned() || video.URL != h.urls.Video(video.UUID) {
		t.Errorf("video = %+v", video)
	}

	deliveries := h.drain()
	if len(deliveries) != 1 || deliveries[0].Activity.Type != federation.TypeCreate {
		t.Fatalf("deliveries = %v, want one Create", activityTypes(deliveries))
	}
	object, err := deliveries[0].Activity.ObjectVideo()
	if err != nil {
		t.Fatal(err)
	}
	if object.UUID != video.UUID || object.AttributedTo != alice.URL || object.Content != "hello" {
		t.Errorf("Create object = %+v", object)
	}

	if _, err := videos.Create(ctx, bob, bobChannel.ID, "second", ""); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{strconv.FormatInt(video.ID, 10), video.UUID} {
		got, err := videos.Get(ctx, key)
		if err != nil || got.ID != video.ID {
			t.Errorf("Get(%s) = %v, %v", key, got, err)
		}
	}
	if _, err := videos.Get(ctx, "404"); !errors.Is(err, services.ErrVideoNotFound) {
		t.Errorf("Get unknown: err = %v, want ErrVideoNotFound", err)
	}

	listed, total, err := videos.List(ctx, services.VideoListOptions{Sort: "-name", Count: 1})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(listed) != 1 || listed[0].Name != "second" {
		t.Errorf("List = %d entries (total %d), first %q", len(listed), total, listed[0].Name)
	}
}
