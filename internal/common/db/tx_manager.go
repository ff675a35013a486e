package db

import (
	"context"
	"fmt"

	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
)

// WithTx runs fn inside a transaction on pool. A non-nil error from fn or a
// panic rolls back, otherwise the transaction is committed. Serialization
// failures and deadlocks restart the whole transaction.
func WithTx(ctx context.Context, pool Pool, log *logger.Logger, fn func(context.Context, pgx.Tx) error) error {
	return RetryWithBackoff(ctx, log, DefaultRetryConfig, func() error {
		return runTx(ctx, pool, fn)
	})
}

func runTx(ctx context.Context, pool Pool, fn func(context.Context, pgx.Tx) error) (err error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.Background())
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(context.Background())
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(ctx, tx)
	return err
}
