package service

import (
	"context"
	"errors"
	"sync"
	"time"

	authrepo "github.com/AlibekovAA/taskforge/backend/internal/auth/repository"
	"github.com/AlibekovAA/taskforge/backend/internal/auth/token"
	"github.com/AlibekovAA/taskforge/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/taskforge/backend/internal/common/crypto"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
	userdomain "github.com/AlibekovAA/taskforge/backend/internal/user/domain"
	userrepo "github.com/AlibekovAA/taskforge/backend/internal/user/repository"
)

const dummyPassword = "taskforge-dummy-password"

type AuthService struct {
	users           userrepo.Repository
	refreshTokens   authrepo.RefreshTokenRepository
	store           *RefreshTokenStore
	codec           *token.Codec
	hasher          commoncrypto.PasswordHasher
	idGenerator     commoncrypto.IDGenerator
	clock           clock.Clock
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	log             *logger.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthService(
	users userrepo.Repository,
	refreshTokens authrepo.RefreshTokenRepository,
	store *RefreshTokenStore,
	codec *token.Codec,
	hasher commoncrypto.PasswordHasher,
	idGenerator commoncrypto.IDGenerator,
	clock clock.Clock,
	accessTokenTTL time.Duration,
	refreshTokenTTL time.Duration,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		users:           users,
		refreshTokens:   refreshTokens,
		store:           store,
		codec:           codec,
		hasher:          hasher,
		idGenerator:     idGenerator,
		clock:           clock,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		log:             log,
	}
}

type RegisterInput struct {
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (userdomain.User, error) {
	email, err := validateRegistration(input.Email, input.Password)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "register_validation_failed",
		}).Warnf("register validation failed: %v", err)
		incrementRegistrations("invalid")
		return userdomain.User{}, err
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"email":  email,
			"action": "register_hash_failed",
		}).Errorf("register failed: password hash error: %v", err)
		incrementRegistrations("error")
		return userdomain.User{}, internalError(err)
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"email":  email,
			"action": "register_id_generation_failed",
		}).Errorf("register failed: id generation error: %v", err)
		incrementRegistrations("error")
		return userdomain.User{}, internalError(err)
	}

	user := userdomain.User{
		ID:           userdomain.ID(id),
		Email:        email,
		PasswordHash: digest,
		CreatedAt:    s.clock.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrEmailAlreadyExists) {
			s.log.WithFields(ctx, logger.Fields{
				"email":  email,
				"action": "register_email_exists",
			}).Warn("register failed: email already registered")
			incrementRegistrations("duplicate")
			return userdomain.User{}, ErrEmailTaken
		}
		s.log.WithFields(ctx, logger.Fields{
			"email":  email,
			"action": "register_create_failed",
		}).Errorf("register failed: %v", err)
		incrementRegistrations("error")
		return userdomain.User{}, internalError(err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(user.ID),
		"action":  "register_success",
	}).Info("register success")
	incrementRegistrations("success")

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (TokenPair, error) {
	email, err := validateCredentials(input.Email, input.Password)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "login_validation_failed",
		}).Warnf("login validation failed: %v", err)
		incrementLogins("invalid")
		return TokenPair{}, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			s.burnDummyVerify(input.Password)
			s.log.WithFields(ctx, logger.Fields{
				"action": "login_user_not_found",
			}).Warn("login failed: invalid credentials")
			incrementLogins("invalid_credentials")
			return TokenPair{}, ErrInvalidCredentials
		}
		s.log.WithFields(ctx, logger.Fields{
			"action": "login_fetch_failed",
		}).Errorf("login failed: %v", err)
		incrementLogins("error")
		return TokenPair{}, internalError(err)
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "login_invalid_password",
		}).Warn("login failed: invalid credentials")
		incrementLogins("invalid_credentials")
		return TokenPair{}, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "login_password_rehash_needed",
		}).Info("password digest uses outdated parameters")
		incrementPasswordRehashNeeded()
	}

	var pair TokenPair
	err = s.refreshTokens.TxManager().WithTx(ctx, func(ctx context.Context, tx authrepo.RefreshTokenTx) error {
		var err error
		pair, err = s.issuePair(ctx, tx, string(user.ID))
		return err
	})
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "login_token_issue_failed",
		}).Errorf("login failed: token issue error: %v", err)
		incrementLogins("error")
		return TokenPair{}, internalError(err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(user.ID),
		"action":  "login_success",
	}).Info("login success")
	incrementLogins("success")

	return pair, nil
}

// Refresh trades a refresh token for a new pair. The old token is consumed
// and the new one stored in one transaction; a token can be traded at most
// once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			s.dropExpiredRefreshToken(ctx, refreshToken)
			return TokenPair{}, ErrRefreshTokenExpired
		}
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_invalid",
		}).Warnf("refresh failed: %v", err)
		return TokenPair{}, ErrInvalidToken.WithCause(err)
	}

	if err := claims.RequireKind(token.KindRefresh); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": claims.Subject,
			"action":  "refresh_token_wrong_type",
		}).Warn("refresh failed: access token presented")
		return TokenPair{}, ErrWrongTokenType.WithCause(err)
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_malformed_claims",
		}).Warn("refresh failed: missing subject")
		return TokenPair{}, ErrMalformedTokenClaims
	}

	var (
		pair    TokenPair
		expired bool
	)
	err = s.refreshTokens.TxManager().WithTx(ctx, func(ctx context.Context, tx authrepo.RefreshTokenTx) error {
		expired = false

		record, err := s.store.Consume(ctx, tx, refreshToken)
		if errors.Is(err, ErrRefreshTokenExpired) {
			expired = true
			return nil
		}
		if err != nil {
			return err
		}

		if record.UserID != claims.Subject || !record.ExpiresAt.Equal(claims.ExpiresAt.Time) {
			return ErrInvalidToken.WithCause(errors.New("refresh token record does not match its claims"))
		}

		pair, err = s.issuePair(ctx, tx, claims.Subject)
		return err
	})

	switch {
	case err == nil && expired:
		s.log.WithFields(ctx, logger.Fields{
			"user_id": claims.Subject,
			"action":  "refresh_token_expired",
		}).Warn("refresh failed: token expired")
		incrementRefreshTokensExpired()
		return TokenPair{}, ErrRefreshTokenExpired
	case errors.Is(err, ErrRefreshTokenNotFound):
		s.log.WithFields(ctx, logger.Fields{
			"user_id": claims.Subject,
			"action":  "refresh_token_not_found",
		}).Warn("refresh failed: token already used or revoked")
		incrementRefreshTokensReplayed()
		return TokenPair{}, ErrRefreshTokenNotFound
	case errors.Is(err, ErrInvalidToken):
		s.log.WithFields(ctx, logger.Fields{
			"user_id": claims.Subject,
			"action":  "refresh_token_mismatch",
		}).Warnf("refresh failed: %v", err)
		return TokenPair{}, err
	case err != nil:
		s.log.WithFields(ctx, logger.Fields{
			"user_id": claims.Subject,
			"action":  "refresh_token_rotation_failed",
		}).Errorf("refresh failed: %v", err)
		return TokenPair{}, internalError(mapRefreshTokenError(err))
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": claims.Subject,
		"action":  "refresh_token_success",
	}).Info("refresh token rotated")
	incrementRefreshTokensUsed()

	return pair, nil
}

// Logout forgets refreshToken. Unknown, expired or already used tokens are
// not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	deleted, err := s.refreshTokens.DeleteByTokenHash(ctx, HashRefreshToken(refreshToken))
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "logout_failed",
		}).Errorf("logout failed: %v", err)
		return internalError(err)
	}

	if deleted {
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_revoked",
		}).Info("refresh token revoked")
		incrementRefreshTokensRevoked()
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, id userdomain.ID) (userdomain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return userdomain.User{}, ErrPrincipalNotFound
		}
		return userdomain.User{}, internalError(err)
	}
	return user, nil
}

// DeleteAccount removes the principal. Refresh tokens and tasks are removed
// with it by the schema.
func (s *AuthService) DeleteAccount(ctx context.Context, id userdomain.ID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return ErrPrincipalNotFound
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(id),
			"action":  "delete_account_failed",
		}).Errorf("delete account failed: %v", err)
		return internalError(err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(id),
		"action":  "delete_account_success",
	}).Info("account deleted")
	return nil
}

func (s *AuthService) dropExpiredRefreshToken(ctx context.Context, refreshToken string) {
	deleted, err := s.refreshTokens.DeleteByTokenHash(ctx, HashRefreshToken(refreshToken))
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "refresh_token_delete_expired_failed",
		}).Warnf("failed to delete expired refresh token: %v", err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"action":  "refresh_token_expired",
		"deleted": deleted,
	}).Warn("refresh failed: token expired")
	incrementRefreshTokensExpired()
}

// burnDummyVerify spends the same work as a real verification so unknown
// emails cannot be told apart by response time.
func (s *AuthService) burnDummyVerify(password string) {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash(dummyPassword)
		if err == nil {
			s.dummyDigest = digest
		}
	})
	if s.dummyDigest != "" {
		_ = s.hasher.Verify(password, s.dummyDigest)
	}
}
