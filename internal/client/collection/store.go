// Package collection keeps the authoritative copy of a server collection and
// the filtered, paged view derived from it.
package collection

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/MedKeeper/internal/logger"
)

var (
	// ErrSuperseded is returned by a Load whose result was discarded because
	// a later Load had been issued.
	ErrSuperseded = errors.New("load superseded by a newer request")
	// ErrClosed is returned once the store has been closed.
	ErrClosed = errors.New("collection store closed")
)

// Loader fetches the whole authoritative collection.
type Loader[T any] func(ctx context.Context) ([]T, error)

// One adapts a single-record fetch to a Loader.
func One[T any](fetch func(ctx context.Context) (T, error)) Loader[T] {
	return func(ctx context.Context) ([]T, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return []T{v}, nil
	}
}

// Snapshot is what a view renders.
type Snapshot[T any] struct {
	View[T]
	Loading bool
	// Loaded is true once any load has committed.
	Loaded bool
	// Err is the failure of the latest load. Items stay as last loaded.
	Err error
	// Seq is the sequence number of the load that produced the items.
	Seq uint64
	// Version grows with every state change. Subscribers see strictly
	// increasing versions.
	Version uint64
}

// Config configures a Store.
type Config[T any] struct {
	Name     string
	Load     Loader[T]
	Match    Predicate[T]
	PageSize int
	Logger   *zap.Logger
}

// Store holds one resource collection for the lifetime of a view.
type Store[T any] struct {
	name  string
	load  Loader[T]
	match Predicate[T]
	size  int
	log   *zap.Logger

	life   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	all       []T
	query     string
	page      int
	view      View[T]
	issued    uint64
	committed uint64
	loading   bool
	loaded    bool
	err       error
	closed    bool
	version   uint64
	nextSub   int
	subs      map[int]func(Snapshot[T])

	// pubMu serialises delivery; delivered is the last version handed out.
	pubMu     sync.Mutex
	delivered uint64
}

// New creates an empty store.
func New[T any](cfg Config[T]) *Store[T] {
	life, cancel := context.WithCancel(context.Background())
	s := &Store[T]{
		name:   cfg.Name,
		load:   cfg.Load,
		match:  cfg.Match,
		size:   cfg.PageSize,
		log:    logger.OrNop(cfg.Logger),
		life:   life,
		cancel: cancel,
		page:   1,
		subs:   make(map[int]func(Snapshot[T])),
	}
	s.view = Derive[T](nil, "", 1, s.size, s.match)
	return s
}

// Name identifies the store in logs.
func (s *Store[T]) Name() string { return s.name }

// Load fetches the collection and replaces the authoritative copy. Only the
// most recently issued Load may commit; earlier ones return ErrSuperseded.
// On failure the previous collection is kept and the error is recorded.
func (s *Store[T]) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.issued++
	seq := s.issued
	s.loading = true
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)

	lctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.life, cancel)
	items, err := s.load(lctx)
	stop()
	cancel()

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		s.log.Debug("discarding load for closed store", zap.String("store", s.name), zap.Uint64("seq", seq))
		return ErrClosed
	case seq != s.issued:
		s.mu.Unlock()
		s.log.Debug("discarding superseded load",
			zap.String("store", s.name),
			zap.Uint64("seq", seq),
			zap.Uint64("latest", s.issued),
		)
		return ErrSuperseded
	}
	s.loading = false
	if err != nil {
		if ctx.Err() == nil {
			s.err = err
		}
		snap = s.changedLocked()
		s.mu.Unlock()
		s.publish(snap)
		return err
	}
	s.all = append(make([]T, 0, len(items)), items...)
	s.err = nil
	s.loaded = true
	s.committed = seq
	s.recomputeLocked()
	snap = s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)
	return nil
}

// SetFilter replaces the query and returns to page 1. No request is made.
func (s *Store[T]) SetFilter(query string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.query = query
	s.page = 1
	s.recomputeLocked()
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// SetPage moves to page n. It reports false and changes nothing when n is
// outside [1, TotalPages].
func (s *Store[T]) SetPage(n int) bool {
	s.mu.Lock()
	if s.closed || n < 1 || n > s.view.TotalPages {
		s.mu.Unlock()
		return false
	}
	s.page = n
	s.recomputeLocked()
	snap := s.changedLocked()
	s.mu.Unlock()
	s.publish(snap)
	return true
}

// Snapshot returns the current state.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// All returns a copy of the authoritative collection.
func (s *Store[T]) All() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.all...)
}

// Subscribe calls fn with every new snapshot until cancel is called.
// Deliveries are serialised and never go back in version; a snapshot that
// lost the race to a newer one is skipped. fn must not call SetFilter,
// SetPage or Load synchronously.
func (s *Store[T]) Subscribe(fn func(Snapshot[T])) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close ends the store's lifetime: in-flight loads are cancelled and their
// results discarded, subscribers are dropped. Close is idempotent.
func (s *Store[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.loading = false
	s.subs = map[int]func(Snapshot[T]){}
	s.mu.Unlock()
	s.cancel()
}

// Closed reports whether Close was called.
func (s *Store[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store[T]) recomputeLocked() {
	s.view = Derive(s.all, s.query, s.page, s.size, s.match)
	s.page = s.view.Page
}

func (s *Store[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		View:    s.view,
		Loading: s.loading,
		Loaded:  s.loaded,
		Err:     s.err,
		Seq:     s.committed,
		Version: s.version,
	}
}

// changedLocked records a state change and returns the snapshot to publish.
func (s *Store[T]) changedLocked() Snapshot[T] {
	s.version++
	return s.snapshotLocked()
}

func (s *Store[T]) publish(snap Snapshot[T]) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if snap.Version <= s.delivered {
		return
	}
	s.delivered = snap.Version

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	subs := make([]func(Snapshot[T]), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}
