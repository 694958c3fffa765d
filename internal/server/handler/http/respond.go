package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/atinyakov/MedKeeper/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// fieldError is one entry of a 422 {"detail": [...]} body.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes the {"detail": "..."} error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeInvalid(w http.ResponseWriter, loc, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]fieldError{
		"detail": {{Loc: []string{loc, field}, Msg: msg, Type: "value_error"}},
	})
}

// writeError maps service errors onto status codes and detail messages.
// Anything unrecognised is logged and reported as a bare 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var ie *service.InputError
	switch {
	case errors.As(err, &ie):
		writeInvalid(w, "body", ie.Field, ie.Msg)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrAdminRequired):
		writeDetail(w, http.StatusForbidden, "Admin access required")
	case errors.Is(err, service.ErrUsernameTaken):
		writeDetail(w, http.StatusConflict, "Username already taken")
	case errors.Is(err, service.ErrPhoneTaken):
		writeDetail(w, http.StatusConflict, "Phone number already registered")
	case errors.Is(err, service.ErrUserNotFound):
		writeDetail(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrPatientNotFound):
		writeDetail(w, http.StatusNotFound, "Patient not found")
	case errors.Is(err, service.ErrTestNotFound):
		writeDetail(w, http.StatusNotFound, "Test not found")
	case errors.Is(err, service.ErrInvalidFileType):
		writeDetail(w, http.StatusBadRequest, "Invalid file type")
	default:
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// pathID parses a positive integer URL parameter, answering 422 otherwise.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeInvalid(w, "path", name, "value is not a valid integer")
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeInvalid(w, "query", name, "value is not a valid integer")
		return 0, false
	}
	return v, true
}
