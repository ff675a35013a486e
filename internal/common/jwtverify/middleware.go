package jwtverify

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/AlibekovAA/taskforge/backend/internal/auth/token"
	"github.com/AlibekovAA/taskforge/backend/internal/common/db"
	commonerrors "github.com/AlibekovAA/taskforge/backend/internal/common/errors"
	commonhttp "github.com/AlibekovAA/taskforge/backend/internal/common/http"
	"github.com/AlibekovAA/taskforge/backend/internal/common/logger"
	"github.com/AlibekovAA/taskforge/backend/internal/observability/metrics"
	userdomain "github.com/AlibekovAA/taskforge/backend/internal/user/domain"
	userrepo "github.com/AlibekovAA/taskforge/backend/internal/user/repository"
)

type PrincipalLookup interface {
	FindByID(ctx context.Context, id userdomain.ID) (userdomain.User, error)
}

// Resolver turns an access token into the user it was issued for. It never
// writes.
type Resolver struct {
	codec   *token.Codec
	users   PrincipalLookup
	breaker *db.CircuitBreaker
}

// NewResolver guards principal lookups with breaker when it is not nil.
func NewResolver(codec *token.Codec, users PrincipalLookup, breaker *db.CircuitBreaker) *Resolver {
	return &Resolver{codec: codec, users: users, breaker: breaker}
}

func (r *Resolver) Resolve(ctx context.Context, bearer string) (userdomain.User, error) {
	metrics.JWTValidationsTotal.Inc()

	claims, err := r.codec.Verify(bearer)
	if err != nil {
		metrics.JWTValidationsFailed.WithLabelValues(failureReason(err)).Inc()
		return userdomain.User{}, commonerrors.ErrInvalidToken.WithCause(err)
	}

	if err := claims.RequireKind(token.KindAccess); err != nil {
		metrics.JWTValidationsFailed.WithLabelValues("wrong_type").Inc()
		return userdomain.User{}, commonerrors.ErrWrongTokenType.WithCause(err)
	}

	if claims.Subject == "" {
		metrics.JWTValidationsFailed.WithLabelValues("malformed_claims").Inc()
		return userdomain.User{}, commonerrors.ErrMalformedTokenClaims
	}

	var user userdomain.User
	err = r.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		user, err = r.users.FindByID(ctx, userdomain.ID(claims.Subject))
		return err
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			metrics.JWTValidationsFailed.WithLabelValues("principal_not_found").Inc()
			return userdomain.User{}, commonerrors.ErrPrincipalNotFound
		}
		if errors.Is(err, commonerrors.ErrDatabaseError) {
			return userdomain.User{}, err
		}
		return userdomain.User{}, commonerrors.ErrDatabaseError.WithCause(err)
	}

	return user, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, token.ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "malformed"
	}
}

type contextKey string

const principalKey contextKey = "principal"

// Middleware requires a valid access token. Every rejection gets the same
// 401 body; the reason is only logged.
func Middleware(resolver *Resolver, log *logger.Logger) func(next http.Handler) http.Handler {
	errorHandler := commonhttp.NewErrorHandler(log)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var (
				user userdomain.User
				err  error
			)
			if raw, ok := bearerToken(r); ok {
				user, err = resolver.Resolve(ctx, raw)
			} else {
				err = commonerrors.ErrMissingBearer
			}

			if err != nil {
				if errors.Is(err, commonerrors.ErrDatabaseError) {
					errorHandler.HandleError(w, r, err)
					return
				}
				log.WithFields(ctx, logger.Fields{
					"path":   r.URL.Path,
					"action": "jwt_auth_failed",
				}).Warnf("jwt auth failed: %v", err)
				commonhttp.WriteUnauthorized(w, commonhttp.TraceIDFromContext(ctx))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	raw := r.Header.Get("Authorization")
	scheme, value, found := strings.Cut(raw, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func WithPrincipal(ctx context.Context, user userdomain.User) context.Context {
	return context.WithValue(ctx, principalKey, user)
}

func FromContext(ctx context.Context) (userdomain.User, bool) {
	user, ok := ctx.Value(principalKey).(userdomain.User)
	return user, ok
}
