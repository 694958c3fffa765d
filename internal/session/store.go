// Package session holds the bearer credential of the signed-in user.
//
// A Store is created once per process and passed explicitly to the request
// gateway, the route guard and the login/logout flows. Clear is the only way
// a credential is dropped; observers registered with OnClear learn about
// every drop together with its Reason.
package session

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/MedKeeper/internal/logger"
)

// ErrEmptyToken is returned by Set when the token is blank.
var ErrEmptyToken = errors.New("session: empty token")

// Reason tells observers why a credential was cleared.
type Reason int

const (
	// ReasonLogout is an explicit user logout.
	ReasonLogout Reason = iota + 1
	// ReasonRejected means the server answered 401/403 to a request.
	ReasonRejected
)

func (r Reason) String() string {
	switch r {
	case ReasonLogout:
		return "logout"
	case ReasonRejected:
		return "rejected"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Persister keeps the token across restarts. Implementations must be safe
// to call from a single goroutine at a time; Store serialises access.
type Persister interface {
	// Load returns the persisted token, or "" when nothing is stored.
	Load() (string, error)
	// Save replaces the persisted token.
	Save(token string) error
	// Remove deletes the persisted token. Removing nothing is not an error.
	Remove() error
}

// Store is the process-wide credential holder.
type Store struct {
	mu     sync.RWMutex
	token  string
	p      Persister
	log    *zap.Logger
	nextID int
	subs   map[int]func(Reason)
}

// New creates a Store and restores a previously persisted token. An
// unreadable token (ErrCorrupt) is discarded and the store starts signed
// out; other load errors are returned.
func New(p Persister, log *zap.Logger) (*Store, error) {
	if p == nil {
		p = NewMemoryPersister()
	}
	log = logger.OrNop(log)
	token, err := p.Load()
	switch {
	case errors.Is(err, ErrCorrupt):
		log.Warn("discarding unreadable persisted token", zap.Error(err))
		if rmErr := p.Remove(); rmErr != nil {
			return nil, fmt.Errorf("remove unreadable token: %w", rmErr)
		}
		token = ""
	case err != nil:
		return nil, fmt.Errorf("load persisted token: %w", err)
	}
	return &Store{
		token: token,
		p:     p,
		log:   log,
		subs:  make(map[int]func(Reason)),
	}, nil
}

// Set stores token in memory and in the persister.
func (s *Store) Set(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.p.Save(token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	s.token = token
	s.log.Debug("credential stored")
	return nil
}

// Get returns the current token and whether one is present.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Present reports whether a credential is held.
func (s *Store) Present() bool {
	_, ok := s.Get()
	return ok
}

// Clear drops the credential and notifies observers. The in-memory token is
// removed even if the persister fails, so callers never observe an
// authenticated state without a token. Clearing an absent credential is a
// no-op and notifies nobody.
func (s *Store) Clear(reason Reason) error {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return nil
	}
	s.token = ""
	err := s.p.Remove()
	subs := make([]func(Reason), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.log.Info("credential cleared", zap.Stringer("reason", reason))
	for _, fn := range subs {
		fn(reason)
	}
	if err != nil {
		return fmt.Errorf("remove persisted token: %w", err)
	}
	return nil
}

// OnClear registers fn to run after every Clear that dropped a credential.
// The returned function unregisters it.
func (s *Store) OnClear(fn func(Reason)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
