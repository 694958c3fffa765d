package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrAdminRequired      = errors.New("admin access required")
	ErrUserNotFound       = errors.New("user not found")
	ErrPhoneTaken         = errors.New("phone number already registered")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrTestNotFound       = errors.New("test not found")
	ErrInvalidFileType    = errors.New("invalid file type")
	// ErrInvalidInput is matched by every *InputError.
	ErrInvalidInput = errors.New("invalid input")
)

// InputError reports a request body field that failed validation.
type InputError struct {
	Field string
	Msg   string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Is makes errors.Is(err, ErrInvalidInput) hold.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// inputError converts the first validator failure into an *InputError.
// Other errors pass through.
func inputError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "field required"
	case "phone":
		msg = "invalid phone number"
	case "datetime":
		msg = "invalid date format, use YYYY-MM-DD"
	case "oneof":
		msg = "must be one of " + fe.Param()
	case "min":
		msg = "must be at least " + fe.Param() + " characters"
	case "email":
		msg = "invalid email address"
	default:
		msg = "failed " + fe.Tag() + " check"
	}
	return &InputError{Field: fe.Field(), Msg: msg}
}
