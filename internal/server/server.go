// Package server assembles the API sandbox: repositories, services and
// the HTTP router.
package server

import (
	"context"
	"net/http"

	httpHandler "github.com/atinyakov/MedKeeper/internal/server/handler/http"

	"github.com/atinyakov/MedKeeper/internal/middleware"
	"github.com/atinyakov/MedKeeper/internal/repository"
	"github.com/atinyakov/MedKeeper/internal/service"
	"go.uber.org/zap"
)

// Sandbox is a wired API sandbox.
type Sandbox struct {
	Auth     *service.AuthService
	Patients *service.PatientService
	Tests    *service.TestService
	Profile  *service.ProfileService
	Handler  http.Handler
}

// New wires the services over store and builds the router. Uploaded
// profile pictures are written below uploadDir.
func New(store repository.Store, tokens service.Tokens, uploadDir string, log *zap.Logger) *Sandbox {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sandbox{
		Auth:     service.NewAuthService(store, tokens, log),
		Patients: service.NewPatientService(store),
		Tests:    service.NewTestService(store, store, nil, log),
		Profile:  service.NewProfileService(store, uploadDir, log),
	}
	s.Handler = httpHandler.NewRouter(httpHandler.Handlers{
		Auth:     &httpHandler.AuthHandler{AuthService: s.Auth, Log: log},
		Patients: &httpHandler.PatientHandler{PatientService: s.Patients, Log: log},
		Tests:    &httpHandler.TestHandler{TestService: s.Tests, Log: log},
		Profile:  &httpHandler.ProfileHandler{ProfileService: s.Profile, Log: log},
	}, s.Auth, uploadDir, log)
	return s
}

// Seed creates the administrator account when both credentials are set.
func (s *Sandbox) Seed(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	return s.Auth.SeedAdmin(ctx, username, password)
}

var _ middleware.Authenticator = (*service.AuthService)(nil)
