package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Messages keyed by struct field. Each field reports one message whatever
// tag it broke.
var fieldMessages = map[string]string{
	"Name":            "Name must be at least 3 characters",
	"Email":           "Invalid email address",
	"Password":        "Password must be at least 6 characters",
	"ConfirmPassword": "Passwords do not match",
}

func validateInput(validate *validator.Validate, input any) error {
	if validate == nil {
		validate = validator.New()
	}
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	first := fieldErrs[0]
	message, ok := fieldMessages[first.StructField()]
	if !ok {
		message = fmt.Sprintf("%s is invalid", first.Field())
	}
	return &ValidationError{Field: first.Field(), Message: message}
}
