package service

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

type registration struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

type credentials struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration returns the normalized email when the input is
// acceptable for a new account.
func validateRegistration(email, password string) (string, error) {
	email = normalizeEmail(email)
	if err := validate.Struct(registration{Email: email, Password: password}); err != nil {
		return "", ErrValidation.WithCause(err)
	}
	return email, nil
}

// validateCredentials only checks shape; whether the email exists is never
// revealed through validation.
func validateCredentials(email, password string) (string, error) {
	email = normalizeEmail(email)
	if err := validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return "", ErrValidation.WithCause(err)
	}
	return email, nil
}
