package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
	status int
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	if d.status != 0 {
		w.WriteHeader(d.status)
	}
	_, _ = w.Write([]byte("ok"))
}

type authFunc func(ctx context.Context, token string) (int64, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (int64, error) {
	return f(ctx, token)
}

func TestBearerAuth(t *testing.T) {
	auth := authFunc(func(ctx context.Context, token string) (int64, error) {
		if token == "good" {
			return 42, nil
		}
		return 0, errors.New("bad token")
	})

	tests := []struct {
		name       string
		header     string
		wantCalled bool
		wantCode   int
		wantDetail string
	}{
		{"no header", "", false, http.StatusUnauthorized, "Not authenticated"},
		{"wrong scheme", "Basic abc", false, http.StatusUnauthorized, "Not authenticated"},
		{"empty token", "Bearer  ", false, http.StatusUnauthorized, "Not authenticated"},
		{"rejected token", "Bearer nope", false, http.StatusUnauthorized, "Could not validate credentials"},
		{"valid token", "Bearer good", true, http.StatusOK, ""},
		{"lower-case scheme", "bearer good", true, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := BearerAuth(auth, nil)(dummy)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(rec, req)

			if dummy.called != tt.wantCalled {
				t.Fatalf("next called = %v; want %v", dummy.called, tt.wantCalled)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantDetail != "" && !strings.Contains(rec.Body.String(), tt.wantDetail) {
				t.Errorf("body = %q; want detail %q", rec.Body.String(), tt.wantDetail)
			}
			if tt.wantCalled {
				if got := GetUserIDFromContext(dummy.ctx); got != 42 {
					t.Errorf("user id in context = %d; want 42", got)
				}
			}
		})
	}
}

func TestGetUserIDFromContext_Missing(t *testing.T) {
	if got := GetUserIDFromContext(context.Background()); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestWithRequestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	for _, status := range []int{0, http.StatusNotFound, http.StatusInternalServerError} {
		h := WithRequestLogging(log)(&dummyHandler{status: status})
		req := httptest.NewRequest(http.MethodGet, "/api/tests/1", nil)
		req.Header.Set(HeaderRequestID, "req-1")
		req.Header.Set("Authorization", "Bearer secret-token")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(entries))
	}
	first := entries[0].ContextMap()
	if first["status"] != int64(http.StatusOK) || first["request_id"] != "req-1" || first["bytes"] != int64(2) {
		t.Errorf("unexpected fields: %v", first)
	}
	if entries[2].Level != zapcore.ErrorLevel {
		t.Errorf("5xx logged at %v; want error", entries[2].Level)
	}
	for _, e := range entries {
		for k, v := range e.ContextMap() {
			if s, ok := v.(string); ok && strings.Contains(s, "secret-token") {
				t.Errorf("field %s leaks the bearer token", k)
			}
		}
	}
}
