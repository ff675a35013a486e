package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/taskforge/backend/internal/common/clock"
	commonerrors "github.com/AlibekovAA/taskforge/backend/internal/common/errors"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
	"github.com/AlibekovAA/taskforge/backend/internal/observability/metrics"
)

// ErrCircuitOpen is the cause attached to ErrDatabaseError when a breaker
// rejects a call without touching the database.
var ErrCircuitOpen = errors.New("database circuit breaker is open")

type CircuitBreakerConfig struct {
	Name       string
	Threshold  int
	Timeout    time.Duration
	ResetAfter time.Duration
	Clock      clock.Clock
	Logger     *logger.Logger
	// Expected errors are outcomes, not outages, and never count as failures.
	Expected []error
}

// CircuitBreaker stops calling the database after Threshold consecutive
// failures and lets calls through again once ResetAfter has passed since the
// last one. A nil *CircuitBreaker runs every call.
type CircuitBreaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time

	name       string
	threshold  int
	timeout    time.Duration
	resetAfter time.Duration
	clock      clock.Clock
	log        *logger.Logger
	expected   []error
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	cb := &CircuitBreaker{
		name:       cfg.Name,
		threshold:  cfg.Threshold,
		timeout:    cfg.Timeout,
		resetAfter: cfg.ResetAfter,
		clock:      clk,
		log:        cfg.Logger,
		expected:   cfg.Expected,
	}
	metrics.DBCircuitBreakerOpen.WithLabelValues(cb.name).Set(0)
	return cb
}

func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.isOpenLocked()
}

func (cb *CircuitBreaker) isOpenLocked() bool {
	if cb.threshold <= 0 || cb.failures < cb.threshold {
		return false
	}
	if cb.clock.Since(cb.lastFailure) > cb.resetAfter {
		cb.failures = 0
		cb.lastFailure = time.Time{}
		metrics.DBCircuitBreakerOpen.WithLabelValues(cb.name).Set(0)
		return false
	}
	return true
}

// Call runs fn under the breaker's timeout. While the breaker is open it
// returns ErrDatabaseError caused by ErrCircuitOpen and fn is not run.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if cb == nil {
		return fn(ctx)
	}

	if cb.IsOpen() {
		metrics.DBCircuitBreakerRejected.WithLabelValues(cb.name).Inc()
		if cb.log != nil {
			cb.log.WithFields(ctx, logger.Fields{
				"breaker": cb.name,
				"action":  "db_circuit_open",
			}).Warn("database circuit breaker is open, rejecting call")
		}
		return commonerrors.ErrDatabaseError.WithCause(ErrCircuitOpen)
	}

	callCtx := ctx
	if cb.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cb.timeout)
		defer cancel()
	}

	err := fn(callCtx)
	switch {
	case err == nil:
		cb.reset()
	case cb.isFailure(ctx, err):
		cb.recordFailure(ctx, err)
	}
	return err
}

// isFailure reports whether err says something about the database's health.
// Domain outcomes, missing rows, constraint violations and caller
// cancellation do not.
func (cb *CircuitBreaker) isFailure(ctx context.Context, err error) bool {
	if errors.Is(err, pgx.ErrNoRows) || commonerrors.IsDomainError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return false
	}
	for _, expected := range cb.expected {
		if errors.Is(err, expected) {
			return false
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
		return false
	}
	return true
}

func (cb *CircuitBreaker) recordFailure(ctx context.Context, err error) {
	cb.mu.Lock()
	cb.failures++
	cb.lastFailure = cb.clock.Now()
	opened := cb.threshold > 0 && cb.failures == cb.threshold
	cb.mu.Unlock()

	metrics.DBCircuitBreakerFailures.WithLabelValues(cb.name).Inc()
	if !opened {
		return
	}
	metrics.DBCircuitBreakerOpen.WithLabelValues(cb.name).Set(1)
	if cb.log != nil {
		cb.log.WithFields(ctx, logger.Fields{
			"breaker": cb.name,
			"action":  "db_circuit_opened",
		}).Errorf("database circuit breaker opened after %d failures: %v", cb.threshold, err)
	}
}

func (cb *CircuitBreaker) reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.failures == 0 {
		return
	}
	cb.failures = 0
	cb.lastFailure = time.Time{}
	metrics.DBCircuitBreakerOpen.WithLabelValues(cb.name).Set(0)
}
