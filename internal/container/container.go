package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/rezolv/rezolv/internal/alias"
	"github.com/rezolv/rezolv/internal/cache"
	"github.com/rezolv/rezolv/internal/clicks"
	"github.com/rezolv/rezolv/internal/handlers"
	"github.com/rezolv/rezolv/internal/health"
	"github.com/rezolv/rezolv/internal/messaging"
	"github.com/rezolv/rezolv/internal/middleware"
	"github.com/rezolv/rezolv/internal/ratelimit"
	"github.com/rezolv/rezolv/internal/service"
	"github.com/rezolv/rezolv/internal/store"
	"github.com/samber/do"
	"go.uber.org/zap"
)

// Options are the service configuration inputs, surfaced as humacli flags
// with environment variable fallbacks.
type Options struct {
	Port                int    `default:"8888"                                        help:"Port to listen on"                        short:"p"`
	BaseURL             string `default:"http://localhost:8888"                       help:"Public base URL used in short links"`
	PostgresDSN         string `default:"postgres://localhost:5432/rezolv"           help:"Postgres connection string"`
	RedisAddr           string `default:"localhost:6379"                              help:"Redis server address"                     short:"r"`
	CodeLength          int    `default:"7"                                           help:"Length of generated short codes"          short:"c"`
	CacheTTLSeconds     int    `default:"300"                                         help:"Cache entry TTL in seconds"`
	TierTimeoutMillis   int    `default:"150"                                         help:"Per-cache-tier lookup timeout in milliseconds"`
	WarmIntervalMinutes int    `default:"15"                                          help:"Cache warming interval in minutes"`
	WarmTopN            int    `default:"100"                                         help:"How many popular aliases to keep warm"`
	WarmLookbackHours   int    `default:"24"                                          help:"Click-volume window used to rank popular aliases"`
	ClickQueueSize      int    `default:"1024"                                        help:"Click event queue capacity"`
	RateLimitConfig     string `default:""                                            help:"Path to rate limit YAML, built-in defaults when empty"`
	NotFoundPath        string `default:"/link-not-found"                             help:"Redirect target for unknown codes"`
	ExpiredPath         string `default:"/link-expired"                               help:"Redirect target for expired codes"`
	LogFormat           string `default:"console"                                     help:"Log format: console or json"`
}

// redisConn owns the redis client lifecycle inside the injector.
type redisConn struct{ *redis.Client }

func (c *redisConn) Shutdown() error { return c.Close() }

// pgPool owns the pgx pool lifecycle inside the injector.
type pgPool struct{ *pgxpool.Pool }

func (p *pgPool) Shutdown() error {
	p.Close()

	return nil
}

type zapLogger struct{ *zap.Logger }

func (l *zapLogger) Shutdown() error {
	// Sync on stderr returns an error on some platforms; logs are
	// flushed either way.
	_ = l.Sync()

	return nil
}

// LoggerPackage provides the zap logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zapLogger, error) {
		opts := do.MustInvoke[*Options](i)

		var cfg zap.Config
		if opts.LogFormat == "json" {
			cfg = zap.NewProductionConfig()
		} else {
			cfg = zap.NewDevelopmentConfig()
		}

		logger, err := cfg.Build()
		if err != nil {
			return nil, err
		}

		return &zapLogger{logger}, nil
	})
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		return do.MustInvoke[*zapLogger](i).Logger, nil
	})
}

// RedisPackage provides the shared redis client.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*redisConn, error) {
		opts := do.MustInvoke[*Options](i)

		return &redisConn{redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
	do.Provide(injector, func(i *do.Injector) (*redis.Client, error) {
		return do.MustInvoke[*redisConn](i).Client, nil
	})
}

// PostgresPackage provides the pgx connection pool.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*pgPool, error) {
		opts := do.MustInvoke[*Options](i)

		pool, err := pgxpool.New(context.Background(), opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}

		return &pgPool{pool}, nil
	})
	do.Provide(injector, func(i *do.Injector) (*pgxpool.Pool, error) {
		return do.MustInvoke[*pgPool](i).Pool, nil
	})
}

// RepositoryPackage provides the alias repository, the cache tiers, the
// resolution cache, and the warmer.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (alias.Repository, error) {
		return store.NewPostgresRepository(do.MustInvoke[*pgxpool.Pool](i)), nil
	})
	do.Provide(injector, func(i *do.Injector) (*cache.Cache, error) {
		opts := do.MustInvoke[*Options](i)

		return cache.New(
			store.NewLocalTier(),
			store.NewRedisTier(do.MustInvoke[*redis.Client](i)),
			do.MustInvoke[alias.Repository](i),
			time.Duration(opts.CacheTTLSeconds)*time.Second,
			time.Duration(opts.TierTimeoutMillis)*time.Millisecond,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(injector, func(i *do.Injector) (*cache.Warmer, error) {
		opts := do.MustInvoke[*Options](i)

		return cache.NewWarmer(
			do.MustInvoke[*cache.Cache](i),
			do.MustInvoke[alias.Repository](i),
			time.Duration(opts.WarmIntervalMinutes)*time.Minute,
			opts.WarmTopN,
			time.Duration(opts.WarmLookbackHours)*time.Hour,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// AdmissionPackage provides the rate-limit policy and the limiter.
func AdmissionPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*ratelimit.Policy, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.RateLimitConfig == "" {
			return ratelimit.DefaultPolicy(), nil
		}

		return ratelimit.LoadPolicy(opts.RateLimitConfig)
	})
	do.Provide(injector, func(i *do.Injector) (*ratelimit.Limiter, error) {
		return ratelimit.NewLimiter(
			store.NewRedisCounterStore(do.MustInvoke[*redis.Client](i)),
			do.MustInvoke[*ratelimit.Policy](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// ClickPackage provides the broker publisher and the click pipeline.
func ClickPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: do.MustInvoke[*redis.Client](i),
		}, watermill.NopLogger{})
		if err != nil {
			return nil, fmt.Errorf("broker publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
	do.Provide(injector, func(i *do.Injector) (*clicks.Pipeline, error) {
		opts := do.MustInvoke[*Options](i)
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		newID, err := nanoid.Standard(21)
		if err != nil {
			return nil, err
		}

		publish := messaging.NewPublishFunc[clicks.Event](
			group.Publisher(), clicks.TopicClickRecorded, newID)

		return clicks.NewPipeline(
			publish, newID, opts.ClickQueueSize, do.MustInvoke[*zap.Logger](i)), nil
	})
}

// ServicePackage provides the resolution service and the HTTP handler.
func ServicePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*service.Service, error) {
		opts := do.MustInvoke[*Options](i)

		return service.New(
			do.MustInvoke[alias.Repository](i),
			do.MustInvoke[*cache.Cache](i),
			do.MustInvoke[*clicks.Pipeline](i),
			opts.CodeLength,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(injector, func(i *do.Injector) (*handlers.Handler, error) {
		opts := do.MustInvoke[*Options](i)

		return handlers.NewHandler(
			do.MustInvoke[*service.Service](i),
			opts.BaseURL,
			opts.NotFoundPath,
			opts.ExpiredPath,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// HTTPPackage provides the router and the huma API with middleware and
// routes wired in.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})
	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)
		limiter := do.MustInvoke[*ratelimit.Limiter](i)

		api := humachi.New(router, huma.DefaultConfig("rezolv", "1.0.0"))
		api.UseMiddleware(
			middleware.RequestMeta(api),
			middleware.Admission(api, limiter, logger),
		)

		handlers.RegisterRoutes(api, do.MustInvoke[*handlers.Handler](i))
		health.RegisterRoutes(api, health.NewHandler(
			health.NewRedisChecker(do.MustInvoke[*redis.Client](i)),
			health.NewPostgresChecker(do.MustInvoke[*pgxpool.Pool](i)),
		))

		return api, nil
	})
}

// AggregatorPackage provides the broker subscriber and the consumer group
// folding click events into rollups.
func AggregatorPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		client := do.MustInvoke[*redis.Client](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client,
			ConsumerGroup: "aggregator",
		}, watermill.NopLogger{})
		if err != nil {
			return nil, fmt.Errorf("broker subscriber: %w", err)
		}

		rollups := store.NewRollupStore(do.MustInvoke[*pgxpool.Pool](i), client)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(messaging.NewConsumer(
			subscriber,
			clicks.TopicClickRecorded,
			clicks.NewAggregatorHandler(rollups, logger),
			logger,
		))

		return group, nil
	})
}
