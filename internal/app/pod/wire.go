package pod

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"fmt"
	"net/http"

	goredis "github.com/redis/go-redis/v9"

	dedupmemory "github.com/peertube-pod/internal/adapters/dedup/memory"
	dedupredis "github.com/peertube-pod/internal/adapters/dedup/redis"
	"github.com/peertube-pod/internal/adapters/http/api"
	"github.com/peertube-pod/internal/adapters/http/remote"
	"github.com/peertube-pod/internal/adapters/queue/memory"
	memoryrepo "github.com/peertube-pod/internal/adapters/repo/memory"
	mysqlrepo "github.com/peertube-pod/internal/adapters/repo/mysql"
	"github.com/peertube-pod/internal/adapters/storage/fs"
	"github.com/peertube-pod/internal/core/services"
	"github.com/peertube-pod/internal/federation"
	"github.com/peertube-pod/internal/logging"
)

const podKeyName = "pod"

type TickableQueue interface {
	services.Queue
	Tick(ctx context.Context) (delivered int, requeued int)
	Process(ctx context.Context) int
	PendingCount() int
}

type App struct {
	Handler http.Handler
	Queue   TickableQueue
	Clock   services.Clock
	Store   services.Store
	URLs    federation.URLs
	Signer  *federation.Signer

	Accounts  *services.AccountService
	Videos    *services.VideoService
	Rates     *services.VideoRateService
	Blacklist *services.BlacklistService
	Ownership *services.OwnershipService
	Follows   *services.FollowService
	Inbox     *services.InboxService
	Pods      *services.PodDirectory

	DeliveryConsumer    *services.ActivityDeliveryConsumer
	FollowReconciler    *services.FollowReconciler
	FollowCheckConsumer *services.FollowCheckConsumer

	closers []func() error
}

type WireOptions struct {
	Clock       services.Clock
	Queue       TickableQueue
	Store       services.Store
	ActivityLog services.ActivityLog
	HTTPClient  *http.Client
	// SigningKey skips the key store under cfg.Federation.KeyPath.
	SigningKey ed25519.PrivateKey
}

func Wire(ctx context.Context, cfg Config, opts *WireOptions) (*App, error) {
	var clock services.Clock
	var queue TickableQueue
	var store services.Store
	var seen services.ActivityLog
	var httpClient *http.Client
	var signingKey ed25519.PrivateKey
	var closers []func() error

	if opts != nil && opts.Clock != nil {
		clock = opts.Clock
	} else {
		clock = services.RealClock{}
	}

	if opts != nil && opts.Queue != nil {
		queue = opts.Queue
	} else {
		queue = memory.NewInMemoryQueue(clock)
	}

	if opts != nil && opts.Store != nil {
		store = opts.Store
	} else {
		s, db, err := openStore(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if db != nil {
			closers = append(closers, db.Close)
		}
		store = s
	}

	if opts != nil && opts.ActivityLog != nil {
		seen = opts.ActivityLog
	} else if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, rdb.Close)
		seen = dedupredis.NewActivityLog(rdb, dedupredis.WithPrefix(cfg.Redis.Prefix), dedupredis.WithTTL(cfg.Redis.TTL))
	} else {
		seen = dedupmemory.NewActivityLog(clock, cfg.Redis.TTL)
	}

	if opts != nil && opts.HTTPClient != nil {
		httpClient = opts.HTTPClient
	}

	if opts != nil && opts.SigningKey != nil {
		signingKey = opts.SigningKey
	} else {
		key, err := fs.NewKeyStore(cfg.Federation.KeyPath).LoadOrCreate(ctx, podKeyName)
		if err != nil {
			return nil, fmt.Errorf("loading pod key: %w", err)
		}
		signingKey = key
	}

	urls := federation.NewURLs(cfg.Server.Scheme, cfg.Server.Host)
	signer := federation.NewSigner(urls.KeyID(), signingKey)
	client := remote.NewClient(signer, clock, httpClient, cfg.RemoteClientConfig())
	retry := services.DefaultRetryPolicy()

	sender := services.NewActivitySender(urls, store, queue, clock)
	accounts := services.NewAccountService(urls, store, clock, cfg.Auth.BcryptCost)
	videos := services.NewVideoService(urls, store, sender, clock)
	rates := services.NewVideoRateService(store, sender, clock, retry)
	blacklist := services.NewBlacklistService(store, clock)
	ownership := services.NewOwnershipService(store, sender, clock, retry)
	follows := services.NewFollowService(urls, store, sender, clock)
	inbox := services.NewInboxService(urls, store, sender, seen, clock, retry)
	pods := services.NewPodDirectory(store, client, clock)

	deliveryConsumer := services.NewActivityDeliveryConsumer(client, queue, clock, cfg.Federation.DeliveryMaxAttempts, cfg.Federation.DeliveryBaseBackoff)
	followReconciler := services.NewFollowReconciler(urls.Host, store, queue, clock)
	followCheckConsumer := services.NewFollowCheckConsumer(urls.Host, store, follows, queue, clock)

	actor, err := federation.NewPodActor(urls, signer.PublicKey())
	if err != nil {
		return nil, err
	}
	tokens, err := api.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clock)
	if err != nil {
		return nil, err
	}

	server := api.NewServer(cfg.HTTPConfig(), api.Deps{
		Accounts:  accounts,
		Videos:    videos,
		Rates:     rates,
		Blacklist: blacklist,
		Ownership: ownership,
		Follows:   follows,
		Inbox:     inbox,
		Pods:      pods,
		Actor:     actor,
		Tokens:    tokens,
		Clock:     clock,
	})

	return &App{
		Handler:             server.Routes(),
		Queue:               queue,
		Clock:               clock,
		Store:               store,
		URLs:                urls,
		Signer:              signer,
		Accounts:            accounts,
		Videos:              videos,
		Rates:               rates,
		Blacklist:           blacklist,
		Ownership:           ownership,
		Follows:             follows,
		Inbox:               inbox,
		Pods:                pods,
		DeliveryConsumer:    deliveryConsumer,
		FollowReconciler:    followReconciler,
		FollowCheckConsumer: followCheckConsumer,
		closers:             closers,
	}, nil
}

func openStore(ctx context.Context, cfg DatabaseConfig) (services.Store, *sql.DB, error) {
	if cfg.Backend != "mysql" {
		return memoryrepo.NewStore(), nil, nil
	}

	db, err := mysqlrepo.Open(cfg.MySQLDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connecting to mysql: %w", err)
	}
	if cfg.Migrate {
		if err := mysqlrepo.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return mysqlrepo.NewStore(db), db, nil
}

func (a *App) SubscribeActivityDelivery(ctx context.Context) error {
	return a.Queue.Subscribe(ctx, "pod:activitydelivery", services.TopicActivityDelivery, a.DeliveryConsumer.Handle)
}

func (a *App) SubscribeFollowCheck(ctx context.Context) error {
	return a.Queue.Subscribe(ctx, "pod:followcheck", services.TopicFollowCheck, a.FollowCheckConsumer.Handle)
}

// Bootstrap creates the configured admin account when it does not exist yet.
func (a *App) Bootstrap(ctx context.Context, cfg AuthConfig) error {
	if cfg.AdminName == "" {
		return nil
	}
	admin, err := a.Accounts.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrapping admin: %w", err)
	}
	logging.Info().Str("admin", admin.Name).Msg("admin account ready")
	return nil
}

func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
