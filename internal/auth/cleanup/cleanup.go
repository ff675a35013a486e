package cleanup

import (
	"context"
	"time"

	"github.com/AlibekovAA/taskforge/backend/internal/common/clock"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
	"github.com/AlibekovAA/taskforge/backend/internal/observability/metrics"
)

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Purger removes refresh token rows whose expiry has passed. Such rows can
// never be consumed successfully, so dropping them changes no outcome.
type Purger struct {
	repo  ExpiredDeleter
	clock clock.Clock
	log   *logger.Logger
}

func NewPurger(repo ExpiredDeleter, clock clock.Clock, log *logger.Logger) *Purger {
	return &Purger{repo: repo, clock: clock, log: log}
}

func (p *Purger) PurgeExpired(ctx context.Context) (int64, error) {
	deleted, err := p.repo.DeleteExpired(ctx, p.clock.Now())
	if err != nil {
		p.log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_cleanup_failed",
		}).Errorf("refresh token cleanup failed: %v", err)
		return 0, err
	}

	if deleted > 0 {
		metrics.RefreshTokensCleanupDeleted.Add(float64(deleted))
	}
	p.log.WithFields(ctx, logger.Fields{
		"action":  "refresh_token_cleanup_success",
		"deleted": deleted,
	}).Info("refresh token cleanup finished")

	return deleted, nil
}

// Run purges once immediately and then every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (p *Purger) Run(ctx context.Context, interval time.Duration) {
	_, _ = p.PurgeExpired(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.PurgeExpired(ctx)
		}
	}
}
