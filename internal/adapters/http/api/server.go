package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peertube-pod/internal/core/services"
	"github.com/peertube-pod/internal/federation"
	"github.com/peertube-pod/internal/logging"
	"github.com/peertube-pod/internal/metrics"
)

type Config struct {
	// RateLimitRequests per RateLimitWindow and client IP on the REST API. Zero disables it.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// InboxRateLimit per minute and client IP on /inbox. Zero disables it.
	InboxRateLimit     int
	CORSAllowedOrigins []string
}

type Deps struct {
	Accounts  *services.AccountService
	Videos    *services.VideoService
	Rates     *services.VideoRateService
	Blacklist *services.BlacklistService
	Ownership *services.OwnershipService
	Follows   *services.FollowService
	Inbox     *services.InboxService
	Pods      *services.PodDirectory
	Actor     *federation.Actor
	Tokens    *TokenManager
	Clock     services.Clock
}

// Server serves the REST API and the federation endpoints of a pod.
type Server struct {
	cfg       Config
	accounts  *services.AccountService
	videos    *services.VideoService
	rates     *services.VideoRateService
	blacklist *services.BlacklistService
	ownership *services.OwnershipService
	follows   *services.FollowService
	inbox     *services.InboxService
	pods      *services.PodDirectory
	actor     *federation.Actor
	tokens    *TokenManager
	clock     services.Clock
}

func NewServer(cfg Config, deps Deps) *Server {
	return &Server{
		cfg:       cfg,
		accounts:  deps.Accounts,
		videos:    deps.Videos,
		rates:     deps.Rates,
		blacklist: deps.Blacklist,
		ownership: deps.Ownership,
		follows:   deps.Follows,
		inbox:     deps.Inbox,
		pods:      deps.Pods,
		actor:     deps.Actor,
		tokens:    deps.Tokens,
		clock:     deps.Clock,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	if len(s.cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         86400,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/actor", s.getActor)
	r.With(limitByIP(s.cfg.InboxRateLimit, time.Minute)).Post("/inbox", s.postInbox)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(limitByIP(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow))

		r.Post("/users/register", s.register)
		r.Post("/users/token", s.token)
		r.Get("/accounts/{id}", s.getAccount)
		r.Get("/accounts/{id}/video-channels", s.listChannels)
		r.Get("/videos", s.listVideos)
		r.Get("/videos/{id}", s.getVideo)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/users/me", s.me)
			r.Get("/users/me/videos/{id}/rating", s.getRating)
			r.Post("/video-channels", s.createChannel)
			r.Post("/videos", s.createVideo)
			r.Put("/videos/{id}/rate", s.rateVideo)

			r.Get("/videos/blacklist", s.listBlacklist)
			r.Post("/videos/{id}/blacklist", s.addBlacklist)
			r.Delete("/videos/{id}/blacklist", s.removeBlacklist)

			r.Post("/videos/{id}/give-ownership", s.giveOwnership)
			r.Get("/videos/ownership", s.listOwnership)
			r.Post("/videos/ownership/{id}/accept", s.acceptOwnership)
			r.Post("/videos/ownership/{id}/refuse", s.refuseOwnership)

			r.Get("/server/following", s.listFollowing)
			r.Get("/server/followers", s.listFollowers)
			r.Post("/server/following", s.follow)
			r.Delete("/server/following/{host}", s.unfollow)
		})
	})

	return r
}

func limitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(requests, window)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		metrics.RecordAPIRequest(r.Method, route, status, elapsed)
		logging.Ctx(r.Context()).Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("request handled")
	})
}
