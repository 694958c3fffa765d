// Package transfer moves binary payloads through the gateway: multipart
// uploads and downloads into releasable local handles.
package transfer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/MedKeeper/internal/client/gateway"
	"github.com/atinyakov/MedKeeper/internal/logger"
)

// Handler performs uploads and downloads.
type Handler struct {
	gw  *gateway.Gateway
	reg *Registry
	log *zap.Logger
}

// NewHandler creates a Handler writing downloads into reg.
func NewHandler(gw *gateway.Gateway, reg *Registry, log *zap.Logger) *Handler {
	return &Handler{gw: gw, reg: reg, log: logger.OrNop(log)}
}

// Registry returns the handle registry.
func (h *Handler) Registry() *Registry { return h.reg }

// Upload posts file with fields as multipart to path and decodes the reply
// into out.
func (h *Handler) Upload(ctx context.Context, path string, fields map[string]string, file gateway.File, out any) error {
	return h.gw.Call(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   &gateway.Multipart{Fields: fields, Files: []gateway.File{file}},
		Expect: gateway.ExpectJSON,
	}, out)
}

// Download fetches path into a new Handle. name is used unless the server
// suggests a filename. A failed transfer leaves nothing behind, and so does
// one that outlived a Registry.ReleaseAll (ErrDiscarded).
func (h *Handler) Download(ctx context.Context, path, name string) (*Handle, error) {
	gen := h.reg.generation()
	st, err := h.gw.Open(ctx, gateway.Request{Method: http.MethodGet, Path: path, Expect: gateway.ExpectBinary})
	if err != nil {
		return nil, err
	}
	defer st.Body.Close()

	if suggested := filenameFrom(st.Header.Get("Content-Disposition")); suggested != "" && name == "" {
		name = suggested
	}
	if name == "" {
		name = filepath.Base(path)
	}

	f, err := os.CreateTemp(h.reg.Dir(), "blob-*")
	if err != nil {
		return nil, fmt.Errorf("create blob: %w", err)
	}
	size, err := io.Copy(f, st.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &gateway.Error{Kind: gateway.KindNetwork, Message: "The download was interrupted. Please try again.", Err: err}
	}

	handle := &Handle{
		id:          uuid.NewString(),
		name:        name,
		path:        f.Name(),
		contentType: st.Header.Get("Content-Type"),
		size:        size,
		created:     h.reg.now(),
	}
	if err := h.reg.add(handle, gen); err != nil {
		h.log.Info("late download discarded", zap.String("name", name))
		return nil, err
	}
	h.log.Debug("download stored",
		zap.String("handle", handle.id),
		zap.String("name", name),
		zap.Int64("size", size),
	)
	return handle, nil
}

func filenameFrom(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return filepath.Base(params["filename"])
}

// FileFromPath opens a local file for upload. The caller closes the
// returned file.
func FileFromPath(field, path string) (gateway.File, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return gateway.File{}, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return gateway.File{
		Field:       field,
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Content:     f,
	}, f, nil
}

// CacheBust appends a timestamp query parameter to ref so an image at an
// unchanged URL is fetched again.
func CacheBust(ref string, now time.Time) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}
