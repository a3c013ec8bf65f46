package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/accounts/internal/auth"
	"github.com/utafrali/accounts/internal/config"
	"github.com/utafrali/accounts/internal/event"
	handler "github.com/utafrali/accounts/internal/handler/http"
	"github.com/utafrali/accounts/internal/migrations"
	"github.com/utafrali/accounts/internal/otp"
	"github.com/utafrali/accounts/internal/repository/postgres"
	"github.com/utafrali/accounts/internal/service"
	"github.com/utafrali/accounts/internal/storage"
	"github.com/utafrali/accounts/internal/storage/local"
	"github.com/utafrali/accounts/internal/storage/memory"
	"github.com/utafrali/accounts/pkg/breaker"
	"github.com/utafrali/accounts/pkg/database"
	"github.com/utafrali/accounts/pkg/health"
	pkgkafka "github.com/utafrali/accounts/pkg/kafka"
	"github.com/utafrali/accounts/pkg/middleware"
	"github.com/utafrali/accounts/pkg/tracing"
)

// App wires together all dependencies and runs the accounts service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	avatars        *storage.Remover
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, cfg.ServiceName); err != nil {
		logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	// Redis backs the OTP attempt limiter. Without it the limiter is off.
	var limiter service.AttemptLimiter
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		logger.Warn("redis unavailable, otp attempt limiting disabled", slog.String("error", err.Error()))
	} else {
		limiter = otp.NewLimiter(redisClient, cfg.OTPMaxAttempts, cfg.OTPAttemptWindow)
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	}

	// Initialize Kafka producer.
	var (
		producer  *pkgkafka.Producer
		publisher event.Publisher = event.Noop{}
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = event.NewProducer(producer, breaker.DefaultConfig("kafka-publisher"), logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Avatar storage.
	store, err := newAvatarStore(cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	avatars := storage.NewRemover(store, cfg.AvatarDeleteTimeout, logger)

	// Build the dependency graph.
	tokens, err := auth.NewTokenIssuer(tokenConfig(cfg))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create token issuer: %w", err)
	}
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	userRepo := postgres.NewUserRepository(pool)

	authService := service.NewAuthService(userRepo, tokens, hasher, limiter, publisher, service.AuthConfig{
		ServerName: cfg.ServerName,
		OTPLength:  cfg.OTPLength,
		OTPExpiry:  cfg.OTPExpiry,
	}, logger)
	userService := service.NewUserService(userRepo, hasher, avatars, publisher, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}

	// HTTP router.
	router := handler.NewRouter(authService, userService, healthHandler, handler.RouterConfig{
		ServiceName: cfg.ServiceName,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: cfg.CORSAllowCredentials,
			Environment:      cfg.Environment,
		},
		AuthRateLimitPerMinute: cfg.AuthRateLimit,
		MetricsAllowedCIDRs:    cfg.MetricsAllowedCIDRs,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		avatars:        avatars,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// tokenConfig maps the JWT settings onto the issuer configuration.
func tokenConfig(cfg *config.Config) auth.TokenConfig {
	return auth.TokenConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL: map[auth.Purpose]time.Duration{
			auth.PurposeAccess:  cfg.JWTAccessExpiry,
			auth.PurposeRefresh: cfg.JWTRefreshExpiry,
			auth.PurposeReset:   cfg.JWTResetExpiry,
		},
	}
}

// newAvatarStore selects the avatar backend named by AVATAR_STORAGE.
func newAvatarStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.AvatarStorage {
	case "memory":
		return memory.New(), nil
	case "local":
		store, err := local.New(cfg.AvatarRoot)
		if err != nil {
			return nil, fmt.Errorf("open avatar storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown avatar storage %q", cfg.AvatarStorage)
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Pending avatar deletions
// 3. Tracer (flush pending spans from drained requests)
// 4. Kafka producer
// 5. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	// 1. Drain in-flight HTTP requests.
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Let scheduled avatar deletions finish.
	if err := a.avatars.Wait(ctx); err != nil {
		a.logger.Error("avatar deletions did not finish", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 3. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 5. Close Redis and PostgreSQL.
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
