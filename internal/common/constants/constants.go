package constants

import "time"

const (
	EmailMaxLength     = 254
	PasswordMaxLength  = 1024
	JWTSecretMinLength = 32

	TaskTitleMaxLength  = 200
	TaskListDefaultSize = 20
	TaskListMaxSize     = 100

	DefaultMaxRequestSize = 1 << 20

	Argon2DefaultMemoryKiB   = 102400
	Argon2DefaultIterations  = 2
	Argon2DefaultParallelism = 8
	Argon2SaltLength         = 16
	Argon2KeyLength          = 32

	DBPoolMaxOpenConns    = 25
	DBPoolMinOpenConns    = 2
	DBPoolConnMaxLifetime = 5 * time.Minute
	DBPoolConnMaxIdleTime = 10 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 15 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second

	DBCircuitBreakerThreshold = 50
	DBCircuitBreakerTimeout   = 15 * time.Second
	DBCircuitBreakerReset     = 10 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second

	DefaultHTTPPort        = "8080"
	DefaultRequestTimeout  = 30 * time.Second
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	AuthRateLimitPerMinute = 30
	AuthRateLimitBurst     = 10
	RateLimiterIdleTTL     = 10 * time.Minute

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
