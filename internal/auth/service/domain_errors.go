package service

import (
	"net/http"

	commonerrors "github.com/AlibekovAA/taskforge/backend/internal/common/errors"
)

var (
	ErrInvalidCredentials = commonerrors.NewDomainError(
		"INVALID_CREDENTIALS",
		commonerrors.CategoryAuth,
		http.StatusUnauthorized,
		"invalid email or password",
	)

	ErrEmailTaken = commonerrors.NewDomainError(
		"EMAIL_TAKEN",
		commonerrors.CategoryConflict,
		http.StatusConflict,
		"email already registered",
	)

	ErrRefreshTokenNotFound = commonerrors.NewDomainError(
		"REFRESH_TOKEN_NOT_FOUND",
		commonerrors.CategoryAuth,
		http.StatusUnauthorized,
		"refresh token is not recognized",
	)

	ErrRefreshTokenExpired = commonerrors.NewDomainError(
		"REFRESH_TOKEN_EXPIRED",
		commonerrors.CategoryAuth,
		http.StatusUnauthorized,
		"refresh token expired",
	)

	ErrValidation           = commonerrors.ErrValidationFailed
	ErrInvalidToken         = commonerrors.ErrInvalidToken
	ErrWrongTokenType       = commonerrors.ErrWrongTokenType
	ErrMalformedTokenClaims = commonerrors.ErrMalformedTokenClaims
	ErrPrincipalNotFound    = commonerrors.ErrPrincipalNotFound
)
