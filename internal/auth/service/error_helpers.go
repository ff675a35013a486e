package service

import (
	"errors"

	authrepo "github.com/AlibekovAA/taskforge/backend/internal/auth/repository"
	commonerrors "github.com/AlibekovAA/taskforge/backend/internal/common/errors"
)

func mapRefreshTokenError(err error) error {
	if errors.Is(err, authrepo.ErrRefreshTokenNotFound) {
		return ErrRefreshTokenNotFound
	}
	return err
}

// internalError keeps domain errors as they are and wraps everything else so
// the HTTP layer never shows driver messages.
func internalError(err error) error {
	if commonerrors.IsDomainError(err) {
		return err
	}
	return commonerrors.ErrInternalError.WithCause(err)
}
