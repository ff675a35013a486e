package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	authdomain "github.com/AlibekovAA/taskforge/backend/internal/auth/domain"
	authrepo "github.com/AlibekovAA/taskforge/backend/internal/auth/repository"
	"github.com/AlibekovAA/taskforge/backend/internal/auth/token"
	"github.com/AlibekovAA/taskforge/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/taskforge/backend/internal/common/crypto"
)

// RefreshTokenStore ties signed refresh tokens to their rows. Both operations
// run inside the caller's transaction so a rotation either fully happens or
// leaves the old token usable.
type RefreshTokenStore struct {
	codec       *token.Codec
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
}

func NewRefreshTokenStore(codec *token.Codec, idGenerator commoncrypto.IDGenerator, clock clock.Clock) *RefreshTokenStore {
	return &RefreshTokenStore{
		codec:       codec,
		idGenerator: idGenerator,
		clock:       clock,
	}
}

// Issue signs a refresh token for principalID and stores its row. The row's
// expiry and owner are taken from the signed claims.
func (s *RefreshTokenStore) Issue(ctx context.Context, tx authrepo.RefreshTokenTx, principalID string, ttl time.Duration) (string, authdomain.RefreshToken, error) {
	signed, claims, err := s.codec.Issue(principalID, token.KindRefresh, ttl)
	if err != nil {
		return "", authdomain.RefreshToken{}, err
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		return "", authdomain.RefreshToken{}, err
	}

	record := authdomain.RefreshToken{
		ID:        id,
		TokenHash: HashRefreshToken(signed),
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: claims.IssuedAt.Time,
	}

	if err := tx.Create(ctx, record); err != nil {
		return "", authdomain.RefreshToken{}, err
	}

	incrementRefreshTokensIssued()
	return signed, record, nil
}

// Consume removes the row for signed and returns it. An expired row is still
// removed and returned together with ErrRefreshTokenExpired; the caller must
// commit for the removal to stick.
func (s *RefreshTokenStore) Consume(ctx context.Context, tx authrepo.RefreshTokenTx, signed string) (authdomain.RefreshToken, error) {
	record, err := tx.TakeByTokenHash(ctx, HashRefreshToken(signed))
	if err != nil {
		if errors.Is(err, authrepo.ErrRefreshTokenNotFound) {
			return authdomain.RefreshToken{}, ErrRefreshTokenNotFound
		}
		return authdomain.RefreshToken{}, err
	}

	if record.IsExpired(s.clock.Now()) {
		return record, ErrRefreshTokenExpired
	}
	return record, nil
}

func HashRefreshToken(signed string) string {
	sum := sha256.Sum256([]byte(signed))
	return hex.EncodeToString(sum[:])
}
