package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authcleanup "github.com/AlibekovAA/taskforge/backend/internal/auth/cleanup"
	authhttp "github.com/AlibekovAA/taskforge/backend/internal/auth/http"
	authrepo "github.com/AlibekovAA/taskforge/backend/internal/auth/repository"
	authservice "github.com/AlibekovAA/taskforge/backend/internal/auth/service"
	"github.com/AlibekovAA/taskforge/backend/internal/auth/token"
	"github.com/AlibekovAA/taskforge/backend/internal/common/clock"
	"github.com/AlibekovAA/taskforge/backend/internal/common/config"
	"github.com/AlibekovAA/taskforge/backend/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/taskforge/backend/internal/common/crypto"
	"github.com/AlibekovAA/taskforge/backend/internal/common/db"
	commonhttp "github.com/AlibekovAA/taskforge/backend/internal/common/http"
	"github.com/AlibekovAA/taskforge/backend/internal/common/jwtverify"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
	taskhttp "github.com/AlibekovAA/taskforge/backend/internal/task/http"
	taskrepo "github.com/AlibekovAA/taskforge/backend/internal/task/repository"
	taskservice "github.com/AlibekovAA/taskforge/backend/internal/task/service"
	userrepo "github.com/AlibekovAA/taskforge/backend/internal/user/repository"
)

const serviceName = "taskforge"

// App holds every long-lived component of the process.
type App struct {
	Config config.AppConfig
	Log    *logger.Logger
	Pool   *pgxpool.Pool

	Clock       clock.Clock
	IDGenerator commoncrypto.IDGenerator
	Codec       *token.Codec
	Resolver    *jwtverify.Resolver

	UserRepo         userrepo.Repository
	RefreshTokenRepo authrepo.RefreshTokenRepository
	TaskRepo         taskrepo.Repository

	AuthService *authservice.AuthService
	TaskService *taskservice.TaskService
	Purger      *authcleanup.Purger
	RateLimiter *commonhttp.RateLimiter
}

// NewLogger builds the process logger before the configuration is known, so
// config errors can be reported through it.
func NewLogger(logDir, level string) (*logger.Logger, error) {
	return logger.New(logDir, serviceName, level)
}

// NewApp connects to the database and wires the components. The caller owns
// the returned App and must Close it.
func NewApp(ctx context.Context, cfg config.AppConfig, log *logger.Logger) (*App, error) {
	pool, err := db.NewPool(ctx, log, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database pool: %w", err)
	}

	app, err := wire(cfg, log, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return app, nil
}

func wire(cfg config.AppConfig, log *logger.Logger, pool *pgxpool.Pool) (*App, error) {
	clk := clock.NewRealClock()
	idGenerator := commoncrypto.NewUUIDGenerator()

	codec, err := token.NewCodec([]byte(cfg.JWTSecret), clk, idGenerator)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	hasher, err := commoncrypto.NewArgon2Hasher(commoncrypto.Argon2Params{
		MemoryKiB:   cfg.Argon2MemoryKiB,
		Iterations:  cfg.Argon2Iterations,
		Parallelism: cfg.Argon2Parallelism,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	refreshTokenBreaker := db.NewCircuitBreaker(db.CircuitBreakerConfig{
		Name:       "refresh_tokens",
		Threshold:  constants.DBCircuitBreakerThreshold,
		Timeout:    constants.DBCircuitBreakerTimeout,
		ResetAfter: constants.DBCircuitBreakerReset,
		Clock:      clk,
		Logger:     log,
		Expected:   authrepo.BreakerExpectedErrors,
	})
	principalBreaker := db.NewCircuitBreaker(db.CircuitBreakerConfig{
		Name:       "principal_lookup",
		Threshold:  constants.DBCircuitBreakerThreshold,
		Timeout:    constants.DBCircuitBreakerTimeout,
		ResetAfter: constants.DBCircuitBreakerReset,
		Clock:      clk,
		Logger:     log,
		Expected:   []error{userrepo.ErrUserNotFound},
	})

	userRepo := userrepo.NewPgRepository(pool)
	refreshTokenRepo := authrepo.NewPgRefreshTokenRepository(pool, authrepo.NewPgRefreshTokenTxManager(pool, refreshTokenBreaker, log))
	taskRepo := taskrepo.NewPgRepository(pool)

	authService := authservice.NewAuthService(
		userRepo,
		refreshTokenRepo,
		authservice.NewRefreshTokenStore(codec, idGenerator, clk),
		codec,
		hasher,
		idGenerator,
		clk,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		log,
	)

	return &App{
		Config:           cfg,
		Log:              log,
		Pool:             pool,
		Clock:            clk,
		IDGenerator:      idGenerator,
		Codec:            codec,
		Resolver:         jwtverify.NewResolver(codec, userRepo, principalBreaker),
		UserRepo:         userRepo,
		RefreshTokenRepo: refreshTokenRepo,
		TaskRepo:         taskRepo,
		AuthService:      authService,
		TaskService:      taskservice.NewTaskService(taskRepo, idGenerator, clk, log),
		Purger:           authcleanup.NewPurger(refreshTokenRepo, clk, log),
		RateLimiter:      commonhttp.NewRateLimiter(cfg.AuthRateLimitPerMinute, cfg.AuthRateLimitBurst),
	}, nil
}

// Handler returns the full HTTP surface with the shared middleware applied.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(commonhttp.WithTimeout(a.Config.RequestTimeout))

	r.Get("/health", commonhttp.HealthHandler(a.Log, a.Pool))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/auth", authhttp.NewRouter(a.AuthService, a.Resolver, a.RateLimiter, a.Config.RefreshTokenTTL, a.Config.IsProduction(), a.Log))
	r.Mount("/api/tasks", taskhttp.NewRouter(a.TaskService, a.Resolver, a.Log))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		commonhttp.WriteErrorEnvelope(w, http.StatusNotFound, commonhttp.CodeNotFound, "not found", nil, commonhttp.TraceIDFromContext(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		commonhttp.WriteErrorEnvelope(w, http.StatusMethodNotAllowed, commonhttp.CodeMethodNotAllowed, "method not allowed", nil, commonhttp.TraceIDFromContext(r.Context()))
	})

	return commonhttp.BuildBaseHandler(a.Log, r)
}

// StartBackground launches the pool metrics collector and the rate limiter
// sweep. Both stop when ctx is done.
func (a *App) StartBackground(ctx context.Context) {
	db.StartPoolMetrics(ctx, a.Pool, constants.DBPoolMetricsInterval)
	a.RateLimiter.RunCleanup(ctx, constants.RateLimiterIdleTTL)
}

func (a *App) Close() {
	a.Pool.Close()
}
