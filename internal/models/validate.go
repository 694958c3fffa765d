package models

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// PhonePattern is the accepted phone shape: optional "+", a non-zero leading
// digit and up to 14 further digits.
var PhonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the "phone" rule registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return PhonePattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}
