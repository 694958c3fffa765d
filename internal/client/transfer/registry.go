package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/MedKeeper/internal/logger"
)

// ErrDiscarded is returned by a download that completed after ReleaseAll
// ran. Its file is removed and no handle is issued.
var ErrDiscarded = errors.New("download discarded: handles were released")

// Registry tracks live handles so they can be released together.
type Registry struct {
	dir  string
	temp bool
	log  *zap.Logger
	now  func() time.Time

	mu      sync.Mutex
	handles map[string]*Handle
	// gen is bumped by ReleaseAll; downloads started under an older
	// generation are not admitted.
	gen uint64
}

// NewRegistry keeps handle files in dir. An empty dir means a fresh
// temporary directory that Close removes.
func NewRegistry(dir string, log *zap.Logger) (*Registry, error) {
	r := &Registry{
		log:     logger.OrNop(log),
		now:     time.Now,
		handles: make(map[string]*Handle),
	}
	if dir == "" {
		d, err := os.MkdirTemp("", "medkeeper-blobs-")
		if err != nil {
			return nil, fmt.Errorf("create blob dir: %w", err)
		}
		r.dir, r.temp = d, true
		return r, nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	r.dir = dir
	return r, nil
}

// Dir is where handle files are written.
func (r *Registry) Dir() string { return r.dir }

// generation returns the value add expects for a download starting now.
func (r *Registry) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// add admits h if no ReleaseAll happened since gen was read. Otherwise the
// file is removed and ErrDiscarded returned.
func (r *Registry) add(h *Handle, gen uint64) error {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		if err := os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.log.Error("failed to remove discarded download", zap.String("path", h.path), zap.Error(err))
		}
		return ErrDiscarded
	}
	h.reg = r
	r.handles[h.id] = h
	r.mu.Unlock()
	return nil
}

func (r *Registry) forget(id string) {
	r.mu.Lock()
	delete(r.handles, id)
	r.mu.Unlock()
}

// Live returns the number of unreleased handles.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *Registry) snapshot() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

// ReleaseAll releases every live handle. Downloads still in flight are
// discarded when they complete.
func (r *Registry) ReleaseAll() error {
	r.mu.Lock()
	r.gen++
	r.mu.Unlock()

	var errs []error
	for _, h := range r.snapshot() {
		if err := h.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reap releases handles created more than ttl ago and returns how many.
func (r *Registry) Reap(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)
	n := 0
	for _, h := range r.snapshot() {
		if !h.created.Before(cutoff) {
			continue
		}
		if err := h.Release(); err != nil {
			r.log.Error("failed to release expired handle", zap.String("handle", h.id), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// StartReaper releases expired handles every interval until ctx is done.
func (r *Registry) StartReaper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Reap(ttl); n > 0 {
					r.log.Info("released expired handles", zap.Int("released", n))
				}
			}
		}
	}()
}

// Close releases everything and removes the directory if the registry
// created it.
func (r *Registry) Close() error {
	err := r.ReleaseAll()
	if r.temp {
		if rmErr := os.RemoveAll(r.dir); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
	}
	return err
}
