package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenKey is the single key under which the bearer token is persisted.
const TokenKey = "accessToken"

// ErrCorrupt wraps Load failures caused by the stored document itself
// (undecodable JSON, a token sealed with another key) rather than by I/O.
var ErrCorrupt = errors.New("persisted token unreadable")

// FilePersister keeps the token in a small JSON document on disk:
//
//	{"accessToken": "<token>"}
//
// When a Sealer is configured the value is sealed before it is written.
type FilePersister struct {
	path   string
	sealer *Sealer
}

// FileOption configures a FilePersister.
type FileOption func(*FilePersister)

// WithSealer encrypts the token at rest.
func WithSealer(s *Sealer) FileOption {
	return func(p *FilePersister) { p.sealer = s }
}

// NewFilePersister returns a persister writing to path.
func NewFilePersister(path string, opts ...FileOption) *FilePersister {
	p := &FilePersister{path: path}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load implements Persister.
func (p *FilePersister) Load() (string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}

	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("%w: decode %s: %w", ErrCorrupt, p.path, err)
	}
	value := doc[TokenKey]
	if value == "" || p.sealer == nil {
		return value, nil
	}
	token, err := p.sealer.Open(value)
	if err != nil {
		return "", fmt.Errorf("%w: unseal token: %w", ErrCorrupt, err)
	}
	return token, nil
}

// Save implements Persister. The file is written with 0600 permissions via a
// temporary file and rename so a crash never leaves a half-written token.
func (p *FilePersister) Save(token string) error {
	value := token
	if p.sealer != nil {
		sealed, err := p.sealer.Seal(token)
		if err != nil {
			return fmt.Errorf("seal token: %w", err)
		}
		value = sealed
	}

	data, err := json.Marshal(map[string]string{TokenKey: value})
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}

// Remove implements Persister.
func (p *FilePersister) Remove() error {
	err := os.Remove(p.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryPersister keeps the token only for the life of the process.
type MemoryPersister struct {
	mu    sync.Mutex
	token string
}

// NewMemoryPersister returns an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// Load implements Persister.
func (m *MemoryPersister) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

// Save implements Persister.
func (m *MemoryPersister) Save(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// Remove implements Persister.
func (m *MemoryPersister) Remove() error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
