package utils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,15}$`)

// Validate is the shared validator with the project's custom tags registered.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateUsername checks the 3-15 character letters, digits and underscore rule.
func ValidateUsername(username string) error {
	if err := Validate.Var(username, "required,username"); err != nil {
		return NewValidationError("username", "Username must be 3-15 characters and contain only letters, numbers, and underscores")
	}
	return nil
}
