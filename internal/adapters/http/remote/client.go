package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/peertube-pod/internal/core/services"
	"github.com/peertube-pod/internal/federation"
	"github.com/peertube-pod/internal/logging"
)

const maxActorSize = 1 << 20

// StatusError is returned when a remote pod answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code: %d", e.URL, e.StatusCode)
}

type Config struct {
	Timeout time.Duration
	// RatePerSecond and Burst bound the requests sent to a single remote host.
	RatePerSecond float64
	Burst         int
	// BreakerFailures consecutive failures open the breaker of a host for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		RatePerSecond:   10,
		Burst:           20,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

type hostGuard struct {
	breaker *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
}

// Client talks to remote pods: signed inbox deliveries and actor fetches. Each remote
// host gets its own circuit breaker and token bucket.
type Client struct {
	httpClient *http.Client
	signer     *federation.Signer
	clock      services.Clock
	cfg        Config

	mu     sync.Mutex
	guards map[string]*hostGuard
}

var _ services.RemotePodClient = (*Client)(nil)

func NewClient(signer *federation.Signer, clock services.Clock, client *http.Client, cfg Config) *Client {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		httpClient: client,
		signer:     signer,
		clock:      clock,
		cfg:        cfg,
		guards:     make(map[string]*hostGuard),
	}
}

func (c *Client) guard(host string) *hostGuard {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g, ok := c.guards[host]; ok {
		return g
	}

	failures := c.cfg.BreakerFailures
	settings := gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     c.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// a pod refusing an activity is alive
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("host", name).Str("from", from.String()).Str("to", to.String()).Msg("remote pod circuit breaker state changed")
		},
	}

	limit := rate.Inf
	if c.cfg.RatePerSecond > 0 {
		limit = rate.Limit(c.cfg.RatePerSecond)
	}
	burst := c.cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	g := &hostGuard{
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		limiter: rate.NewLimiter(limit, burst),
	}
	c.guards[host] = g
	return g
}

func (c *Client) do(ctx context.Context, rawURL string, fn func() (any, error)) (any, error) {
	host, err := federation.HostOf(rawURL)
	if err != nil {
		return nil, err
	}
	g := c.guard(host)

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return g.breaker.Execute(fn)
}

func (c *Client) PostInbox(ctx context.Context, inboxURL string, body []byte) error {
	_, err := c.do(ctx, inboxURL, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, inboxURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", federation.ContentType)
		c.signer.Sign(req, body, c.clock.Now())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("making request: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{URL: inboxURL, StatusCode: resp.StatusCode}
		}
		return nil, nil
	})
	return err
}

func (c *Client) FetchActor(ctx context.Context, actorURL string) (*federation.Actor, error) {
	res, err := c.do(ctx, actorURL, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, actorURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", federation.ContentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("making request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{URL: actorURL, StatusCode: resp.StatusCode}
		}

		var actor federation.Actor
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxActorSize)).Decode(&actor); err != nil {
			return nil, fmt.Errorf("decoding actor: %w", err)
		}
		return &actor, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*federation.Actor), nil
}
