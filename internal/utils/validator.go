package utils

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
	})
	return validate
}

func ValidateStruct(s interface{}) error {
	return GetValidator().Struct(s)
}

// ParseErrors flattens validator errors into user-facing messages.
func ParseErrors(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{"invalid request"}
	}

	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			errs = append(errs, e.Field()+" field is required")
		case "email":
			errs = append(errs, e.Field()+" must be a valid email")
		case "min":
			errs = append(errs, fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param()))
		case "oneof":
			errs = append(errs, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
		default:
			errs = append(errs, e.Error())
		}
	}
	return errs
}
