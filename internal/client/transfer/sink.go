package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink receives exported payloads.
type Sink interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

// FileSink writes payloads into a directory.
type FileSink struct {
	Dir string
}

func (s FileSink) Put(ctx context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", s.Dir, err)
	}
	dst := filepath.Join(s.Dir, filepath.Base(name))
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	return dst, f.Close()
}
