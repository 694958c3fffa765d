package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type failingPersister struct {
	loadErr, saveErr, removeErr error
	token                       string
}

func (f *failingPersister) Load() (string, error) { return f.token, f.loadErr }
func (f *failingPersister) Save(string) error     { return f.saveErr }
func (f *failingPersister) Remove() error         { return f.removeErr }

func TestNew_RestoresPersistedToken(t *testing.T) {
	p := NewMemoryPersister()
	_ = p.Save("T0")

	s, err := New(p, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tok, ok := s.Get(); !ok || tok != "T0" {
		t.Errorf("Get() = %q, %v; want T0, true", tok, ok)
	}
}

func TestNew_LoadError(t *testing.T) {
	_, err := New(&failingPersister{loadErr: errors.New("disk")}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_DiscardsUnreadableToken(t *testing.T) {
	dir := t.TempDir()
	sealer, err := NewSealer([]byte("device-secret"))
	if err != nil {
		t.Fatal(err)
	}
	sealed := filepath.Join(dir, "sealed.json")
	if err := NewFilePersister(sealed, WithSealer(sealer)).Save("T"); err != nil {
		t.Fatal(err)
	}
	other, _ := NewSealer([]byte("another-device"))

	tests := []struct {
		name string
		p    *FilePersister
		path string
	}{
		{"not json", NewFilePersister(filepath.Join(dir, "garbage.json")), filepath.Join(dir, "garbage.json")},
		{"wrong key", NewFilePersister(sealed, WithSealer(other)), sealed},
	}
	if err := os.WriteFile(tests[0].path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.p, nil)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if s.Present() {
				t.Error("expected no credential")
			}
			if _, err := os.Stat(tt.path); !os.IsNotExist(err) {
				t.Errorf("token file still present: %v", err)
			}
			if err := s.Set("fresh"); err != nil {
				t.Errorf("Set after discard: %v", err)
			}
		})
	}
}

func TestSetGetClear(t *testing.T) {
	p := NewMemoryPersister()
	s, _ := New(p, nil)

	if s.Present() {
		t.Fatal("fresh store should be empty")
	}
	if err := s.Set(""); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("Set(\"\") = %v; want ErrEmptyToken", err)
	}
	if err := s.Set("T1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if tok, _ := p.Load(); tok != "T1" {
		t.Errorf("persisted = %q; want T1", tok)
	}
	if !s.Present() {
		t.Error("expected credential present")
	}

	if err := s.Clear(ReasonLogout); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.Present() {
		t.Error("expected credential absent after Clear")
	}
	if tok, _ := p.Load(); tok != "" {
		t.Errorf("persisted = %q after Clear", tok)
	}
}

func TestSet_PersistFailureKeepsPreviousToken(t *testing.T) {
	fp := &failingPersister{token: "old"}
	s, _ := New(fp, nil)
	fp.saveErr = errors.New("read-only")

	if err := s.Set("new"); err == nil {
		t.Fatal("expected error")
	}
	if tok, _ := s.Get(); tok != "old" {
		t.Errorf("token = %q; want old", tok)
	}
}

func TestClear_RemoveFailureStillDropsToken(t *testing.T) {
	fp := &failingPersister{token: "T", removeErr: errors.New("busy")}
	s, _ := New(fp, nil)

	var got []Reason
	s.OnClear(func(r Reason) { got = append(got, r) })

	if err := s.Clear(ReasonRejected); err == nil {
		t.Fatal("expected remove error to be reported")
	}
	if s.Present() {
		t.Error("token must be dropped even when persister fails")
	}
	if len(got) != 1 || got[0] != ReasonRejected {
		t.Errorf("observers = %v", got)
	}
}

func TestOnClear_NotifiesOncePerDrop(t *testing.T) {
	s, _ := New(nil, nil)
	_ = s.Set("T")

	calls := 0
	cancel := s.OnClear(func(Reason) { calls++ })

	_ = s.Clear(ReasonRejected)
	_ = s.Clear(ReasonRejected)
	if calls != 1 {
		t.Errorf("calls = %d; want 1", calls)
	}

	cancel()
	_ = s.Set("T2")
	_ = s.Clear(ReasonLogout)
	if calls != 1 {
		t.Errorf("calls after cancel = %d; want 1", calls)
	}
}

func TestReason_String(t *testing.T) {
	if ReasonLogout.String() != "logout" || ReasonRejected.String() != "rejected" {
		t.Error("unexpected reason names")
	}
	if Reason(9).String() != "Reason(9)" {
		t.Errorf("got %s", Reason(9))
	}
}
