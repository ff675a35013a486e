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

// Priority is any value the INTEGER column can hold.
type CreateInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Priority int    `json:"priority" validate:"gte=-2147483648,lte=2147483647"`
}

type UpdateInput struct {
	Title     *string `json:"title" validate:"omitnil,min=1,max=200"`
	Priority  *int    `json:"priority" validate:"omitnil,gte=-2147483648,lte=2147483647"`
	Completed *bool   `json:"completed"`
}

type ListInput struct {
	Skip               int   `json:"skip" validate:"gte=0"`
	Limit              int   `json:"limit" validate:"gte=1,lte=100"`
	Completed          *bool `json:"completed"`
	SortByPriorityDesc bool  `json:"sort_by_priority_desc"`
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return ErrValidation.WithCause(err)
	}
	return nil
}
