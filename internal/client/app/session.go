package app

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atinyakov/MedKeeper/internal/client/gateway"
	"github.com/atinyakov/MedKeeper/internal/client/guard"
	"github.com/atinyakov/MedKeeper/internal/models"
	"github.com/atinyakov/MedKeeper/internal/session"
)

// HomePath is where a successful login lands.
const HomePath = "/manage-patients"

// SignupPath is the account creation view. Like every view but the login
// page it needs a signed-in user.
const SignupPath = "/signup"

// FormError is a failure whose message is meant for the user. Err holds
// the underlying cause, if any.
type FormError struct {
	Message string
	Err     error
}

func (e *FormError) Error() string { return e.Message }

func (e *FormError) Unwrap() error { return e.Err }

const (
	msgCredentialsRequired = "Please enter both username and password."
	msgSignupRequired      = "Please fill out all fields."
	msgPasswordTooShort    = "Password must be at least 8 characters long."
	msgInvalidCredentials  = "Invalid username or password. Please try again."
)

// Login exchanges credentials for a token, stores it and navigates home.
func (a *App) Login(ctx context.Context, username, password string) (models.LoginResponse, error) {
	req := models.LoginRequest{Username: strings.TrimSpace(username), Password: password}
	if err := models.Validator().Struct(req); err != nil {
		return models.LoginResponse{}, &FormError{Message: msgCredentialsRequired}
	}
	resp, err := a.API.Login(ctx, req)
	if gateway.KindOf(err) == gateway.KindUnauthorized {
		return models.LoginResponse{}, &FormError{Message: msgInvalidCredentials, Err: err}
	}
	if err != nil {
		return models.LoginResponse{}, err
	}
	if err := a.Creds.Set(resp.AccessToken); err != nil {
		return models.LoginResponse{}, err
	}
	a.log.Info("signed in", zap.String("username", req.Username))
	a.Router.Go(HomePath)
	return resp, nil
}

// Signup creates an account. Nothing is sent unless every field is filled
// and the password is long enough.
func (a *App) Signup(ctx context.Context, req models.SignupRequest) (models.Message, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := models.Validator().Struct(req); err != nil {
		return models.Message{}, signupError(err)
	}
	return a.API.Signup(ctx, req)
}

func signupError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "Password" && fe.Tag() == "min" {
				return &FormError{Message: msgPasswordTooShort}
			}
		}
	}
	return &FormError{Message: msgSignupRequired}
}

// Logout drops the credential and everything tied to it, then shows the
// login view.
func (a *App) Logout() error {
	held := a.Creds.Present()
	err := a.Creds.Clear(session.ReasonLogout)
	if !held {
		// Clear notifies nobody when no credential was held.
		a.teardown(session.ReasonLogout)
	}
	a.Router.Go(guard.LoginPath)
	return err
}
