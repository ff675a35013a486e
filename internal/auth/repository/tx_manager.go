package repository

import (
	"context"

	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/taskforge/backend/internal/common/db"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
)

type RefreshTokenTxManager interface {
	WithTx(ctx context.Context, fn func(context.Context, RefreshTokenTx) error) error
}

type PgRefreshTokenTxManager struct {
	pool    db.Pool
	breaker *db.CircuitBreaker
	log     *logger.Logger
}

// NewPgRefreshTokenTxManager runs every transaction through breaker; a nil
// breaker disables it.
func NewPgRefreshTokenTxManager(pool db.Pool, breaker *db.CircuitBreaker, log *logger.Logger) *PgRefreshTokenTxManager {
	return &PgRefreshTokenTxManager{pool: pool, breaker: breaker, log: log}
}

// WithTx commits when fn returns nil and rolls back otherwise, including on
// panic and on context cancellation. While the breaker is open no
// transaction is started and ErrDatabaseError is returned.
func (m *PgRefreshTokenTxManager) WithTx(ctx context.Context, fn func(context.Context, RefreshTokenTx) error) error {
	return m.breaker.Call(ctx, func(ctx context.Context) error {
		return db.WithTx(ctx, m.pool, m.log, func(ctx context.Context, tx pgx.Tx) error {
			return fn(ctx, &pgRefreshTokenTx{tx: tx})
		})
	})
}
