package http

import (
	"net/http"

	"github.com/atinyakov/MedKeeper/internal/middleware"
	"github.com/atinyakov/MedKeeper/internal/service"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Auth     *AuthHandler
	Patients *PatientHandler
	Tests    *TestHandler
	Profile  *ProfileHandler
}

// NewRouter constructs and returns an HTTP handler that serves
// the clinical records API. It applies panic recovery, request logging,
// and bearer token authentication, and mounts the endpoints under /api.
//
// Parameters:
//
//	h          - endpoint handlers
//	auth       - resolves bearer tokens for the protected group
//	uploadDir  - directory served read-only under /uploads/
//	logger     - structured logger for request logging middleware
//
// Routes:
//
//	POST   /api/signup                      → Auth.Signup
//	POST   /api/login                       → Auth.Login
//	POST   /api/users                       → Auth.CreateUser (admin)
//	GET    /api/users/me                    → Profile.Me
//	PUT    /api/users/me                    → Profile.Update
//	POST   /api/users/me/profile-picture    → Profile.UploadPicture
//	GET    /api/patients                    → Patients.List
//	POST   /api/patients                    → Patients.Create
//	GET    /api/patients/{patientId}        → Patients.Get
//	PUT    /api/patients/{patientId}        → Patients.Update
//	DELETE /api/patients/{patientId}        → Patients.Delete
//	POST   /api/tests                       → Tests.Submit
//	GET    /api/tests/patient/{patientId}   → Tests.ListForPatient
//	GET    /api/tests/{testId}              → Tests.Get
//	GET    /api/report/download/{testId}    → Tests.Report
//
// JSON endpoints reject bodies that are not application/json with 415.
func NewRouter(h Handlers, auth middleware.Authenticator, uploadDir string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	jsonOnly := chiMiddleware.AllowContentType("application/json")

	r.Handle(service.UploadsPrefix+"/*",
		http.StripPrefix(service.UploadsPrefix+"/", http.FileServer(http.Dir(uploadDir))))

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.With(jsonOnly).Post("/signup", h.Auth.Signup)
		r.With(jsonOnly).Post("/login", h.Auth.Login)

		// Protected group: requires a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(auth, logger))

			r.With(jsonOnly).Post("/users", h.Auth.CreateUser)
			r.Get("/users/me", h.Profile.Me)
			r.With(jsonOnly).Put("/users/me", h.Profile.Update)
			r.Post("/users/me/profile-picture", h.Profile.UploadPicture)

			r.Get("/patients", h.Patients.List)
			r.With(jsonOnly).Post("/patients", h.Patients.Create)
			r.Get("/patients/{patientId}", h.Patients.Get)
			r.With(jsonOnly).Put("/patients/{patientId}", h.Patients.Update)
			r.Delete("/patients/{patientId}", h.Patients.Delete)

			r.Post("/tests", h.Tests.Submit)
			r.Get("/tests/patient/{patientId}", h.Tests.ListForPatient)
			r.Get("/tests/{testId}", h.Tests.Get)
			r.Get("/report/download/{testId}", h.Tests.Report)
		})
	})

	return r
}
