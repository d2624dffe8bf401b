package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/baechuer/pension-service/internal/application/auth"
	"github.com/baechuer/pension-service/internal/application/signup"
	"github.com/baechuer/pension-service/internal/audit"
	"github.com/baechuer/pension-service/internal/config"
	"github.com/baechuer/pension-service/internal/domain"
	"github.com/baechuer/pension-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/pension-service/internal/infrastructure/memory"
	rabbitmq_pub "github.com/baechuer/pension-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/pension-service/internal/infrastructure/redis"
	"github.com/baechuer/pension-service/internal/infrastructure/security"
	"github.com/baechuer/pension-service/internal/logger"
	http_handlers "github.com/baechuer/pension-service/internal/transport/http/handlers"
	"github.com/baechuer/pension-service/internal/transport/http/middleware"
	"github.com/baechuer/pension-service/internal/transport/http/response"
	"github.com/baechuer/pension-service/internal/transport/http/router"
	"github.com/baechuer/pension-service/internal/workers/tokensweep"
)

/*
========================
 Public entry (prod)
========================
*/

// App is a wired service ready to serve.
type App struct {
	Server  *http.Server
	Modes   Modes
	Cleanup func()
}

// Modes records which optional backends the process ended up with, for the
// startup log line.
type Modes struct {
	Env            string
	RateLimiter    string // "redis" or "in-process"
	Publisher      string // "rabbitmq" or "noop"
	SweepInterval  time.Duration
	RegistrySeeded int
}

func NewApp() (*App, error) {
	return newApp(defaultDeps())
}

func NewServer() (*http.Server, func(), error) {
	return NewServerWithDeps(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	app, err := newApp(deps)
	if err != nil {
		return nil, nil, err
	}
	return app.Server, app.Cleanup, nil
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	OpenDB func(ctx context.Context, cfg *config.Config) (*postgres.Gateway, error)

	// Migrate prepares the schema; SeedRegistry loads reference data in dev.
	Migrate      func(ctx context.Context, gw *postgres.Gateway) error
	SeedRegistry func(ctx context.Context, gw *postgres.Gateway) (int, error)

	NewRedis func(addr, password string, db int) *redis.Client

	NewPublisher func(url, exchange string) (signup.EventPublisher, error)

	NewRouter func(router.Deps) (http.Handler, error)
}

/*
========================
 Core bootstrap logic
========================
*/

func newApp(deps Deps) (*App, error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, err
	}
	modes := Modes{
		Env:           cfg.Env,
		RateLimiter:   "in-process",
		Publisher:     "noop",
		SweepInterval: cfg.TokenSweepInterval,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1) db
	gw, err := deps.OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cleanupFns := []func(){
		func() { _ = gw.Close() },
	}

	if err := deps.Migrate(ctx, gw); err != nil {
		runCleanup(cleanupFns)
		return nil, err
	}
	if cfg.SeedRegistry && deps.SeedRegistry != nil {
		n, err := deps.SeedRegistry(ctx, gw)
		if err != nil {
			runCleanup(cleanupFns)
			return nil, err
		}
		modes.RegistrySeeded = n
		logger.Logger.Info().Int("inserted", n).Msg("registry seeded")
	}

	registryRepo := postgres.NewRegistryRepo(gw)
	accountRepo := postgres.NewAccountRepo(gw)
	tokenStore := postgres.NewTokenStore(gw)

	// 2) redis (best-effort)
	var redisCli *redis.Client
	if cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := c.Ping(ctx); err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable; in-process rate limiting")
			_ = c.Close()
		} else {
			logger.Logger.Info().Msg("redis connected")
			redisCli = c
			modes.RateLimiter = "redis"
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 3) publisher
	var pub signup.EventPublisher
	if cfg.RabbitURL == "" {
		logger.Logger.Info().Msg("RABBIT_URL not set; using noop publisher")
		pub = memory.NewNoopPublisher()
	} else {
		pub, err = deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			if cfg.Env != "dev" {
				runCleanup(cleanupFns)
				return nil, err
			}
			logger.Logger.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
			pub = memory.NewNoopPublisher()
		} else {
			modes.Publisher = "rabbitmq"
		}
	}
	if c, ok := pub.(interface{ Close() error }); ok {
		cleanupFns = append(cleanupFns, func() { _ = c.Close() })
	}

	// 4) security
	logger.Logger.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt signer")
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	signer := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)

	// 5) services
	auditLog := audit.New(logger.Logger)

	signupSvc := signup.NewService(
		registryRepo,
		accountRepo,
		tokenStore,
		hasher,
		pub,
		signup.Config{
			Step1TTL: cfg.Step1TokenTTL,
			Step2TTL: cfg.Step2TokenTTL,
			PasswordPolicy: domain.PasswordPolicy{
				MinLength: cfg.PasswordMinLength,
				MaxRepeat: cfg.PasswordMaxRepeat,
				Denylist:  domain.DefaultCommonPasswords,
			},
		},
	).WithAudit(auditLog.Record)

	authSvc := auth.NewService(
		accountRepo,
		hasher,
		signer,
		auth.Config{AccessTTL: cfg.AccessTokenTTL},
	).WithAudit(auditLog.Record)
	cleanupFns = append(cleanupFns, authSvc.Wait)

	// 6) background sweep of expired validation tokens
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		tokensweep.New(tokenStore, cfg.TokenSweepInterval).Run(sweepCtx)
	}()
	cleanupFns = append(cleanupFns, func() {
		stopSweep()
		<-sweepDone
	})

	// 7) handlers + middleware
	var limiter middleware.RateLimiter
	if redisCli != nil {
		limiter = redis.NewFixedWindowLimiter(redisCli)
	}
	rl := func(key string, limit int) func(http.Handler) http.Handler {
		return middleware.RateLimit(limiter, middleware.FixedWindowConfig{
			RouteKey: key,
			Limit:    limit,
			Window:   cfg.RateLimitWindow,
		}, response.WriteError)
	}

	mux, err := deps.NewRouter(router.Deps{
		Health: http_handlers.NewHealthHandler(gw),
		Signup: http_handlers.NewSignupHandler(signupSvc),
		Auth:   http_handlers.NewAuthHandler(authSvc),
		AuthMW: middleware.Auth(signer, response.WriteError),

		SignupRateLimit: rl("signup", cfg.RateLimitSignup),
		LoginRateLimit:  rl("login", cfg.RateLimitLogin),
	})
	if err != nil {
		runCleanup(cleanupFns)
		return nil, err
	}

	// 8) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() { runCleanup(cleanupFns) })
	}

	return &App{Server: srv, Modes: modes, Cleanup: cleanup}, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		OpenDB:     openGateway,
		Migrate:    postgres.EnsureSchema,
		SeedRegistry: func(ctx context.Context, gw *postgres.Gateway) (int, error) {
			return postgres.SeedRegistry(ctx, gw, domain.SampleRegistry())
		},
		NewRedis: redis.New,
		NewPublisher: func(url, exchange string) (signup.EventPublisher, error) {
			return rabbitmq_pub.NewPublisher(url, exchange)
		},
		NewRouter: router.New,
	}
}

func openGateway(ctx context.Context, cfg *config.Config) (*postgres.Gateway, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	return postgres.New(ctx,
		postgres.PgxOpener(postgres.PoolConfig{
			DSN:          cfg.DBAddr,
			MaxOpenConns: cfg.DBMaxOpenConns,
			MaxIdleConns: cfg.DBMaxIdleConns,
		}),
		postgres.Options{
			ConnectTimeout:     cfg.DBConnectTimeout,
			QueryTimeout:       cfg.DBQueryTimeout,
			MaxRetries:         cfg.DBMaxRetries,
			RetryBackoff:       cfg.DBRetryBackoff,
			SlowQueryThreshold: cfg.DBSlowQueryThreshold,
		},
	)
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
