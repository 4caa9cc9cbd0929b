package pod

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/peertube-pod/internal/adapters/queue/memory"
	"github.com/peertube-pod/internal/logging"
)

// Supervisor runs the long-lived parts of a pod: the HTTP server, the queue
// processor and the follow reconciler scanner.
func (a *App) Supervisor(cfg Config) *suture.Supervisor {
	sup := suture.New("pod", suture.Spec{
		EventHook: func(e suture.Event) {
			logging.Warn().Int("event_type", int(e.Type())).Fields(e.Map()).Msg(e.String())
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          cfg.Server.ShutdownTimeout,
	})

	sup.Add(memory.NewProcessor(a.Queue, cfg.Federation.QueueTickInterval))
	sup.Add(&followScanner{app: a, interval: cfg.Federation.FollowScanInterval})
	sup.Add(&httpService{
		server:          &http.Server{Addr: ":" + cfg.Server.Port, Handler: a.Handler},
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	return sup
}

type followScanner struct {
	app      *App
	interval time.Duration
}

func (s *followScanner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.app.FollowReconciler.Scan(ctx); err != nil {
				logging.Ctx(ctx).Error().Err(err).Msg("follow scan failed")
			}
		}
	}
}

func (s *followScanner) String() string {
	return "follow-scanner"
}

type httpService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

func (h *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", h.server.Addr).Msg("pod server starting")
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return ctx.Err()
}

func (h *httpService) String() string {
	return "http-server"
}
