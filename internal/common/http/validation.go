package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	commonerrors "github.com/AlibekovAA/taskforge/backend/internal/common/errors"
)

// UUIDParam reads a chi URL parameter and requires it to be a UUID.
func UUIDParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return "", commonerrors.ErrValidationFailed.WithCause(fmt.Errorf("%s is required", name))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", commonerrors.ErrValidationFailed.WithCause(fmt.Errorf("%s must be a uuid", name))
	}
	return id.String(), nil
}
