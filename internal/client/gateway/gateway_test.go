package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/MedKeeper/internal/models"
	"github.com/atinyakov/MedKeeper/internal/session"
)

// roundTripperFunc подменяет транспорт http.Client в тестах.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newStore(t *testing.T, token string) *session.Store {
	t.Helper()
	s, err := session.New(session.NewMemoryPersister(), nil)
	require.NoError(t, err)
	if token != "" {
		require.NoError(t, s.Set(token))
	}
	return s
}

func newGateway(t *testing.T, base string, creds Credentials, fn roundTripperFunc) *Gateway {
	t.Helper()
	g, err := New(Config{
		BaseURL:    base,
		HTTPClient: &http.Client{Transport: fn, Timeout: time.Second},
	}, creds)
	require.NoError(t, err)
	return g
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"", "localhost:8000", "ftp://host", "http://"} {
		_, err := New(Config{BaseURL: base}, nil)
		assert.Error(t, err, base)
	}
}

func TestDo_AttachesCredentialAndResolvesPath(t *testing.T) {
	store := newStore(t, "T1")
	var seen *http.Request
	g := newGateway(t, "http://api.local:8000/v1", store, func(req *http.Request) (*http.Response, error) {
		seen = req
		return respond(http.StatusOK, `{}`), nil
	})

	_, err := g.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/patients", Expect: ExpectJSON})
	require.NoError(t, err)
	assert.Equal(t, "http://api.local:8000/v1/api/patients", seen.URL.String())
	assert.Equal(t, "Bearer T1", seen.Header.Get("Authorization"))
	assert.Equal(t, "application/json", seen.Header.Get("Accept"))
	assert.NotEmpty(t, seen.Header.Get(HeaderRequestID))
}

func TestDo_OmitsCredentialWhenAbsent(t *testing.T) {
	store := newStore(t, "")
	g := newGateway(t, "http://api.local", store, func(req *http.Request) (*http.Response, error) {
		if h := req.Header.Get("Authorization"); h != "" {
			t.Errorf("unexpected Authorization header %q", h)
		}
		return respond(http.StatusOK, `{}`), nil
	})
	_, err := g.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/login", Body: models.LoginRequest{Username: "u", Password: "p"}})
	require.NoError(t, err)
}

func TestDo_EncodesJSONBody(t *testing.T) {
	g := newGateway(t, "http://api.local", nil, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		b, _ := io.ReadAll(req.Body)
		assert.JSONEq(t, `{"username":"u","password":"p"}`, string(b))
		return respond(http.StatusOK, `{}`), nil
	})
	_, err := g.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/login", Body: models.LoginRequest{Username: "u", Password: "p"}})
	require.NoError(t, err)
}

func TestDo_Classification(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		kind     Kind
		sentinel error
		message  string
	}{
		{"unauthorized", 401, `{"detail":"Not authenticated"}`, KindUnauthorized, ErrUnauthorized, msgUnauthorized},
		{"forbidden", 403, ``, KindUnauthorized, ErrUnauthorized, msgUnauthorized},
		{"conflict", 409, `{"detail":"Phone number already registered"}`, KindConflict, ErrConflict, "Phone number already registered"},
		{"conflict no body", 409, ``, KindConflict, ErrConflict, msgConflict},
		{"validation list", 422, `{"detail":[{"loc":["body","phone"],"msg":"invalid phone"}]}`, KindClient, ErrClient, "invalid phone"},
		{"not found", 404, `{"message":"Patient not found"}`, KindClient, ErrClient, "Patient not found"},
		{"bad request html", 400, `<html>nope</html>`, KindClient, ErrClient, msgClient},
		{"server", 500, `{"detail":"db is down"}`, KindServer, ErrServer, msgServer},
		{"redirect", 302, ``, KindServer, ErrServer, msgServer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newGateway(t, "http://api.local", nil, func(req *http.Request) (*http.Response, error) {
				return respond(tc.status, tc.body), nil
			})
			_, err := g.Do(context.Background(), Request{Path: "/x"})
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.ErrorIs(t, err, tc.sentinel)
			assert.Equal(t, tc.message, MessageOf(err))

			var ge *Error
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tc.status, ge.Status)
		})
	}
}

func TestDo_ServerDetailKeptForLogs(t *testing.T) {
	g := newGateway(t, "http://api.local", nil, func(req *http.Request) (*http.Response, error) {
		return respond(500, `{"detail":"db is down"}`), nil
	})
	_, err := g.Do(context.Background(), Request{Path: "/x"})
	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "db is down", ge.Detail)
	assert.NotContains(t, ge.Message, "db is down")
}

func TestDo_UnauthorizedClearsCredential(t *testing.T) {
	store := newStore(t, "T1")
	var reasons []session.Reason
	store.OnClear(func(r session.Reason) { reasons = append(reasons, r) })

	g := newGateway(t, "http://api.local", store, func(req *http.Request) (*http.Response, error) {
		return respond(http.StatusUnauthorized, `{"detail":"Invalid token"}`), nil
	})
	_, err := g.Do(context.Background(), Request{Path: "/api/users/me"})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, store.Present())
	assert.Equal(t, []session.Reason{session.ReasonRejected}, reasons)

	// A second rejection finds nothing to clear.
	_, _ = g.Do(context.Background(), Request{Path: "/api/users/me"})
	assert.Len(t, reasons, 1)
}

func TestDo_OtherErrorsKeepCredential(t *testing.T) {
	store := newStore(t, "T1")
	for _, status := range []int{400, 404, 409, 422, 500, 503} {
		g := newGateway(t, "http://api.local", store, func(req *http.Request) (*http.Response, error) {
			return respond(status, ``), nil
		})
		_, err := g.Do(context.Background(), Request{Path: "/x"})
		require.Error(t, err)
		assert.True(t, store.Present(), "status %d cleared the credential", status)
	}
}

func TestDo_NetworkError(t *testing.T) {
	down := errors.New("connection refused")
	g := newGateway(t, "http://api.local", nil, func(req *http.Request) (*http.Response, error) {
		return nil, down
	})
	_, err := g.Do(context.Background(), Request{Path: "/x"})
	require.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, down)
	assert.Equal(t, msgNetwork, MessageOf(err))
}

func TestDo_CanceledContext(t *testing.T) {
	g := newGateway(t, "http://api.local", nil, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Do(ctx, Request{Path: "/x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestDo_NoRetry(t *testing.T) {
	calls := 0
	g := newGateway(t, "http://api.local", nil, func(req *http.Request) (*http.Response, error) {
		calls++
		return respond(503, ``), nil
	})
	_, err := g.Do(context.Background(), Request{Path: "/x"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCall_DecodesAndValidates(t *testing.T) {
	g := newGateway(t, "http://api.local", nil, func(req *http.Request) (*http.Response, error) {
		return respond(http.StatusOK, `{"access_token":"T1","is_admin":true}`), nil
	})
	var out models.LoginResponse
	require.NoError(t, g.Call(context.Background(), Request{Method: http.MethodPost, Path: "/api/login"}, &out))
	assert.Equal(t, "T1", out.AccessToken)
	assert.True(t, out.IsAdmin)
}

func TestCall_ShapeMismatch(t *testing.T) {
	cases := map[string]struct {
		body string
		out  any
	}{
		"missing token":      {`{"is_admin":false}`, &models.LoginResponse{}},
		"wrong type":         {`{"access_token":42}`, &models.LoginResponse{}},
		"not json":           {`<html/>`, &models.LoginResponse{}},
		"empty":              {``, &models.LoginResponse{}},
		"patient without id": {`{"patients":[{"name":"Ann"}],"total_count":1}`, &models.PatientList{}},
		"test without label": {`[{"id":1,"patient_id":2,"confidence":0.5}]`, &[]models.TestResult{}},
		"confidence > 1":     {`[{"id":1,"patient_id":2,"result":"X","confidence":1.5}]`, &[]models.TestResult{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			g := newGateway(t, "http://api.local", nil, func(req *http.Request) (*http.Response, error) {
				return respond(http.StatusOK, tc.body), nil
			})
			err := g.Call(context.Background(), Request{Path: "/x"}, tc.out)
			require.ErrorIs(t, err, ErrClient)
			assert.Equal(t, msgShape, MessageOf(err))
		})
	}
}

func TestCall_EmptySliceIsValid(t *testing.T) {
	g := newGateway(t, "http://api.local", nil, func(req *http.Request) (*http.Response, error) {
		return respond(http.StatusOK, `[]`), nil
	})
	var out []models.TestResult
	require.NoError(t, g.Call(context.Background(), Request{Path: "/api/tests/patient/1"}, &out))
	assert.Empty(t, out)
}

func TestDo_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("patientId") != "7" {
			http.Error(w, "missing patientId", http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "PNGDATA" || hdr.Filename != "scan.png" || hdr.Header.Get("Content-Type") != "image/png" {
			http.Error(w, "bad file part", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	g, err := New(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	_, err = g.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/tests",
		Body: &Multipart{
			Fields: map[string]string{"patientId": "7"},
			Files:  []File{{Field: "image", Name: "/tmp/x/scan.png", Content: strings.NewReader("PNGDATA")}},
		},
	})
	require.NoError(t, err)
}

func TestOpen_StreamsBody(t *testing.T) {
	g := newGateway(t, "http://api.local", nil, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "*/*", req.Header.Get("Accept"))
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/pdf"}},
			Body:       io.NopCloser(strings.NewReader("%PDF-1.4")),
		}, nil
	})
	st, err := g.Open(context.Background(), Request{Path: "/api/report/download/3"})
	require.NoError(t, err)
	defer st.Body.Close()
	data, err := io.ReadAll(st.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, "application/pdf", st.Header.Get("Content-Type"))
}

func TestOpen_ClassifiesErrors(t *testing.T) {
	store := newStore(t, "T1")
	g := newGateway(t, "http://api.local", store, func(req *http.Request) (*http.Response, error) {
		return respond(http.StatusForbidden, `{"detail":"nope"}`), nil
	})
	_, err := g.Open(context.Background(), Request{Path: "/api/report/download/3"})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, store.Present())
}

func TestResolve_Query(t *testing.T) {
	g, err := New(Config{BaseURL: "http://api.local/"}, nil)
	require.NoError(t, err)
	got := g.Resolve("/api/patients", map[string][]string{"limit": {"100"}, "offset": {"0"}})
	assert.Equal(t, "http://api.local/api/patients?limit=100&offset=0", got)
}
