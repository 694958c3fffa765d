// Package guard gates navigation to views that need a credential.
package guard

import (
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/MedKeeper/internal/logger"
	"github.com/atinyakov/MedKeeper/internal/session"
)

// LoginPath is where unauthenticated navigation is sent.
const LoginPath = "/login"

// PublicRoutes render without a credential.
var PublicRoutes = []string{"/", LoginPath}

// ProtectedRoutes need a credential.
var ProtectedRoutes = []string{
	"/about",
	"/contact",
	"/signup",
	"/profile",
	"/manage-patients",
	"/register-patient",
	"/patients/{patientId}",
	"/edit-patient/{patientId}",
	"/test/{testId}",
	"/submit-test/{patientId}",
}

// State is the guard state for one navigation.
type State int

const (
	// StateChecking means presence has not been evaluated yet.
	StateChecking State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	}
	return "checking"
}

// Decision is the outcome of Check.
type Decision struct {
	Path      string
	State     State
	Protected bool
	// Known is false for paths outside the route table; they render as
	// not-found without a credential check.
	Known    bool
	Render   bool
	Redirect string
	// Params holds route parameters such as patientId.
	Params map[string]string
}

// Presence reports whether a credential is held.
type Presence interface {
	Present() bool
}

// Guard decides render-or-redirect for each navigation.
type Guard struct {
	creds     Presence
	protected *chi.Mux
	public    *chi.Mux
	log       *zap.Logger
}

// New builds a Guard over the default route table.
func New(creds Presence, log *zap.Logger) *Guard {
	return NewWithRoutes(creds, PublicRoutes, ProtectedRoutes, log)
}

// NewWithRoutes builds a Guard over an explicit route table.
func NewWithRoutes(creds Presence, public, protected []string, log *zap.Logger) *Guard {
	return &Guard{
		creds:     creds,
		public:    table(public),
		protected: table(protected),
		log:       logger.OrNop(log),
	}
}

func table(patterns []string) *chi.Mux {
	mux := chi.NewRouter()
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	for _, p := range patterns {
		mux.Get(p, noop)
	}
	return mux
}

// Check evaluates path against the route table and the credential. The
// token is not verified with the server.
func (g *Guard) Check(path string) Decision {
	path = normalize(path)
	d := Decision{Path: path}

	rctx := chi.NewRouteContext()
	if g.protected.Match(rctx, http.MethodGet, path) {
		d.Known, d.Protected = true, true
		d.Params = params(rctx)
	} else if rctx = chi.NewRouteContext(); g.public.Match(rctx, http.MethodGet, path) {
		d.Known = true
		d.Params = params(rctx)
	}

	if g.creds != nil && g.creds.Present() {
		d.State = StateAuthenticated
	} else {
		d.State = StateUnauthenticated
	}

	if d.Protected && d.State != StateAuthenticated {
		d.Redirect = LoginPath
		g.log.Debug("navigation redirected", zap.String("path", path), zap.String("to", LoginPath))
		return d
	}
	d.Render = true
	return d
}

func params(rctx *chi.Context) map[string]string {
	if len(rctx.URLParams.Keys) == 0 {
		return nil
	}
	out := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		out[k] = rctx.URLParams.Values[i]
	}
	return out
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// Router tracks the current view and routes every navigation through the
// guard.
type Router struct {
	g        *Guard
	mu       sync.Mutex
	current  Decision
	onChange []func(Decision)
}

// NewRouter returns a Router that has not navigated anywhere yet.
func NewRouter(g *Guard) *Router {
	return &Router{g: g}
}

// Go navigates to path, following a redirect if the guard demands one.
func (r *Router) Go(path string) Decision {
	d := r.g.Check(path)
	if !d.Render {
		d = r.g.Check(d.Redirect)
	}
	r.mu.Lock()
	r.current = d
	subs := append([]func(Decision){}, r.onChange...)
	r.mu.Unlock()
	for _, fn := range subs {
		fn(d)
	}
	return d
}

// Current returns the decision for the view being shown.
func (r *Router) Current() Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// OnChange registers fn to run after every navigation.
func (r *Router) OnChange(fn func(Decision)) {
	r.mu.Lock()
	r.onChange = append(r.onChange, fn)
	r.mu.Unlock()
}

// ClearNotifier is satisfied by *session.Store.
type ClearNotifier interface {
	OnClear(fn func(session.Reason)) (cancel func())
}

// Watch re-checks the current view whenever the credential is dropped, so a
// protected view is replaced by the login view. It returns a cancel func.
func (r *Router) Watch(n ClearNotifier) (cancel func()) {
	return n.OnClear(func(reason session.Reason) {
		cur := r.Current()
		if cur.State == StateChecking || !cur.Protected {
			return
		}
		r.g.log.Info("credential dropped, leaving protected view",
			zap.String("path", cur.Path),
			zap.Stringer("reason", reason),
		)
		r.Go(cur.Path)
	})
}
