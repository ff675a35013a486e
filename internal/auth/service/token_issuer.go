package service

import (
	"context"

	authrepo "github.com/AlibekovAA/taskforge/backend/internal/auth/repository"
	"github.com/AlibekovAA/taskforge/backend/internal/auth/token"
)

const tokenTypeBearer = "bearer"

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

// issuePair signs a fresh access token and stores a fresh refresh token in tx.
func (s *AuthService) issuePair(ctx context.Context, tx authrepo.RefreshTokenTx, principalID string) (TokenPair, error) {
	refresh, _, err := s.store.Issue(ctx, tx, principalID, s.refreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}

	access, _, err := s.codec.Issue(principalID, token.KindAccess, s.accessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	incrementAccessTokensIssued()

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
	}, nil
}
