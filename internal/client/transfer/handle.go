package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrReleased is returned by any use of a Handle after Release.
var ErrReleased = errors.New("handle released")

// Handle is a downloaded payload kept in a local file until released.
type Handle struct {
	id          string
	name        string
	path        string
	contentType string
	size        int64
	created     time.Time
	reg         *Registry

	mu       sync.Mutex
	released bool
}

func (h *Handle) ID() string          { return h.id }
func (h *Handle) Name() string        { return h.name }
func (h *Handle) ContentType() string { return h.contentType }
func (h *Handle) Size() int64         { return h.size }
func (h *Handle) Created() time.Time  { return h.created }

// Path returns the local file backing the handle.
func (h *Handle) Path() (string, error) {
	if h.Released() {
		return "", ErrReleased
	}
	return h.path, nil
}

// URL returns a file:// address usable for preview.
func (h *Handle) URL() (string, error) {
	p, err := h.Path()
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), nil
}

// Open returns a reader over the payload.
func (h *Handle) Open() (io.ReadCloser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, ErrReleased
	}
	return os.Open(h.path)
}

// Save copies the payload into dir under the handle's name and returns the
// written path.
func (h *Handle) Save(dir string) (string, error) {
	src, err := h.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	dst := filepath.Join(dir, filepath.Base(h.name))
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

// Export sends the payload to sink and returns the location it reports.
func (h *Handle) Export(ctx context.Context, sink Sink) (string, error) {
	src, err := h.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	return sink.Put(ctx, h.name, src, h.size, h.contentType)
}

// Release removes the local file. It is safe to call more than once.
func (h *Handle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()

	if h.reg != nil {
		h.reg.forget(h.id)
	}
	if err := os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", h.path, err)
	}
	return nil
}

// Released reports whether Release was called.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}
