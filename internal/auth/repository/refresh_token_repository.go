package repository

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/AlibekovAA/taskforge/backend/internal/auth/domain"
	"github.com/AlibekovAA/taskforge/backend/internal/common/db"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExists   = errors.New("refresh token already stored")
)

// BreakerExpectedErrors are refresh token outcomes that say nothing about
// database health.
var BreakerExpectedErrors = []error{ErrRefreshTokenNotFound, ErrRefreshTokenExists}

const refreshTokenUniqueConstraint = "refresh_tokens_token_hash_key"

type RefreshTokenRepository interface {
	DeleteByTokenHash(ctx context.Context, hash string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	TxManager() RefreshTokenTxManager
}

// RefreshTokenTx is the transactional view used by issue and rotation.
type RefreshTokenTx interface {
	Create(ctx context.Context, token authdomain.RefreshToken) error
	TakeByTokenHash(ctx context.Context, hash string) (authdomain.RefreshToken, error)
}

type PgRefreshTokenRepository struct {
	pool  db.Pool
	txMgr *PgRefreshTokenTxManager
}

func NewPgRefreshTokenRepository(pool db.Pool, txMgr *PgRefreshTokenTxManager) *PgRefreshTokenRepository {
	return &PgRefreshTokenRepository{
		pool:  pool,
		txMgr: txMgr,
	}
}

func (r *PgRefreshTokenRepository) TxManager() RefreshTokenTxManager {
	return r.txMgr
}

func (r *PgRefreshTokenRepository) DeleteByTokenHash(ctx context.Context, hash string) (bool, error) {
	start := time.Now()
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, hash)
	if err := db.HandleExecError(err, "delete refresh token", start); err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, before)
	if err := db.HandleExecError(err, "delete expired refresh tokens", start); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type pgRefreshTokenTx struct {
	tx db.Conn
}

func (t *pgRefreshTokenTx) Create(ctx context.Context, token authdomain.RefreshToken) error {
	start := time.Now()
	_, err := t.tx.Exec(
		ctx,
		`INSERT INTO refresh_tokens (id, token_hash, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.ID,
		token.TokenHash,
		token.UserID,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil && db.IsUniqueViolation(err, refreshTokenUniqueConstraint) {
		db.MeasureQueryDuration("create refresh token", start)
		return ErrRefreshTokenExists
	}
	return db.HandleExecError(err, "create refresh token", start)
}

// TakeByTokenHash deletes the row and returns what it held. Under concurrent
// calls for the same hash exactly one caller gets the row; the others see
// ErrRefreshTokenNotFound once the winner commits.
func (t *pgRefreshTokenTx) TakeByTokenHash(ctx context.Context, hash string) (authdomain.RefreshToken, error) {
	start := time.Now()
	row := t.tx.QueryRow(
		ctx,
		`DELETE FROM refresh_tokens
		 WHERE token_hash = $1
		 RETURNING id, token_hash, user_id, expires_at, created_at`,
		hash,
	)

	var rt authdomain.RefreshToken
	err := row.Scan(&rt.ID, &rt.TokenHash, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt)
	if err := db.HandleQueryError(err, ErrRefreshTokenNotFound, "take refresh token", start); err != nil {
		return authdomain.RefreshToken{}, err
	}
	return rt, nil
}
