package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	podapp "github.com/peertube-pod/internal/app/pod"
	"github.com/peertube-pod/internal/logging"
)

func main() {
	cfg, err := podapp.LoadConfig()
	if err != nil {
		logging.Error().Err(err).Msg("loading configuration")
		os.Exit(1)
	}
	logging.Init(cfg.LogConfig())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := podapp.Wire(ctx, cfg, nil)
	if err != nil {
		logging.Error().Err(err).Msg("wiring pod")
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Bootstrap(ctx, cfg.Auth); err != nil {
		logging.Error().Err(err).Msg("bootstrapping pod")
		os.Exit(1)
	}
	if err := app.SubscribeActivityDelivery(ctx); err != nil {
		logging.Error().Err(err).Msg("subscribing to activity deliveries")
		os.Exit(1)
	}
	if err := app.SubscribeFollowCheck(ctx); err != nil {
		logging.Error().Err(err).Msg("subscribing to follow checks")
		os.Exit(1)
	}

	logging.Info().
		Str("host", cfg.Server.Host).
		Str("repo_backend", cfg.Database.Backend).
		Msg("pod starting")

	if err := app.Supervisor(cfg).Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped")
	}
	logging.Info().Msg("shutdown complete")
}
