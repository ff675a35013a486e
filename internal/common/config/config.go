package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/AlibekovAA/taskforge/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/taskforge/backend/internal/common/errors"
)

type AppConfig struct {
	Environment     string        `validate:"required,oneof=development staging production test"`
	HTTPPort        string        `validate:"required,numeric"`
	DatabaseURL     string        `validate:"required"`
	JWTSecret       string        `validate:"required"`
	AccessTokenTTL  time.Duration `validate:"gt=0"`
	RefreshTokenTTL time.Duration `validate:"gt=0,gtfield=AccessTokenTTL"`
	RequestTimeout  time.Duration `validate:"gt=0"`
	AutoMigrate     bool
	LogDir          string
	LogLevel        string `validate:"omitempty,oneof=DEBUG INFO WARN WARNING ERROR CRITICAL"`

	Argon2MemoryKiB   uint32 `validate:"gte=8"`
	Argon2Iterations  uint32 `validate:"gte=1,lte=64"`
	Argon2Parallelism uint8  `validate:"gte=1,lte=64"`

	AuthRateLimitPerMinute int `validate:"gte=1"`
	AuthRateLimitBurst     int `validate:"gte=1"`
}

// Load reads the configuration from the environment. When ENV_FILE is set the
// file is loaded first; variables already present in the environment win.
func Load() (AppConfig, error) {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return AppConfig{}, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return AppConfig{}, err
	}

	if err := validateJWTSecret(jwtSecret); err != nil {
		return AppConfig{}, err
	}

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return AppConfig{}, err
	}

	env := &envReader{}
	cfg := AppConfig{
		Environment:     getEnv("ENVIRONMENT", "development"),
		HTTPPort:        getEnv("HTTP_PORT", constants.DefaultHTTPPort),
		DatabaseURL:     databaseURL,
		JWTSecret:       jwtSecret,
		AccessTokenTTL:  env.duration("ACCESS_TOKEN_TTL", constants.DefaultAccessTokenTTL),
		RefreshTokenTTL: env.duration("REFRESH_TOKEN_TTL", constants.DefaultRefreshTokenTTL),
		RequestTimeout:  env.duration("REQUEST_TIMEOUT", constants.DefaultRequestTimeout),
		AutoMigrate:     env.boolean("AUTO_MIGRATE", true),
		LogDir:          getEnv("LOG_DIR", ""),
		LogLevel:        strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),

		Argon2MemoryKiB:   uint32(env.integer("ARGON2_MEMORY_KIB", constants.Argon2DefaultMemoryKiB, 0, math.MaxUint32)),
		Argon2Iterations:  uint32(env.integer("ARGON2_ITERATIONS", constants.Argon2DefaultIterations, 0, math.MaxUint32)),
		Argon2Parallelism: uint8(env.integer("ARGON2_PARALLELISM", constants.Argon2DefaultParallelism, 0, math.MaxUint8)),

		AuthRateLimitPerMinute: env.integer("AUTH_RATE_LIMIT_PER_MINUTE", constants.AuthRateLimitPerMinute, 0, math.MaxInt32),
		AuthRateLimitBurst:     env.integer("AUTH_RATE_LIMIT_BURST", constants.AuthRateLimitBurst, 0, math.MaxInt32),
	}
	if err := env.err(); err != nil {
		return AppConfig{}, err
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) Validate() error {
	if err := validateJWTSecret(c.JWTSecret); err != nil {
		return err
	}
	if err := validator.New().Struct(c); err != nil {
		return commonerrors.ErrInvalidConfig.WithCause(err)
	}
	if c.Argon2MemoryKiB < 8*uint32(c.Argon2Parallelism) {
		return commonerrors.ErrInvalidConfig.WithCause(
			fmt.Errorf("ARGON2_MEMORY_KIB must be at least 8*ARGON2_PARALLELISM (got %d, %d)", c.Argon2MemoryKiB, c.Argon2Parallelism))
	}
	return nil
}

func (c AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return commonerrors.ErrInvalidJWTSecret.WithCause(fmt.Errorf("got %d bytes", len(secret)))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", commonerrors.ErrMissingRequiredEnv.WithCause(fmt.Errorf("%s is not set", key))
	}
	return v, nil
}

// envReader parses optional typed variables. A set but unparsable or out of
// range value is recorded and reported by err; it never falls back silently.
type envReader struct {
	errs []error
}

func (r *envReader) fail(key, value, reason string) {
	r.errs = append(r.errs, fmt.Errorf("%s=%q: %s", key, value, reason))
}

func (r *envReader) err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return commonerrors.ErrInvalidConfig.WithCause(errors.Join(r.errs...))
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, "not a duration")
		return fallback
	}
	return d
}

func (r *envReader) integer(key string, fallback, lo, hi int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, "not an integer")
		return fallback
	}
	if i < lo || i > hi {
		r.fail(key, v, fmt.Sprintf("must be between %d and %d", lo, hi))
		return fallback
	}
	return i
}

func (r *envReader) boolean(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, "not a boolean")
		return fallback
	}
	return b
}
