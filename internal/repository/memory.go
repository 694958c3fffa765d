package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/atinyakov/MedKeeper/internal/models"
)

type ownedPatient struct {
	owner int64
	models.Patient
}

// MemoryStore keeps every record in process memory. It is the sandbox
// default and the backing store of the end-to-end tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]User
	patients map[int64]ownedPatient
	tests    map[int64]Test

	// Per-table sequences, like the BIGSERIAL columns in Postgres.
	lastUser    int64
	lastPatient int64
	lastTest    int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]User),
		patients: make(map[int64]ownedPatient),
		tests:    make(map[int64]Test),
	}
}

// CreateUser stores u and returns its id. Usernames are unique.
func (m *MemoryStore) CreateUser(_ context.Context, u User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return 0, ErrDuplicate
		}
	}
	m.lastUser++
	u.ID = m.lastUser
	m.users[u.ID] = u
	return u.ID, nil
}

// UserByUsername looks an account up by login name.
func (m *MemoryStore) UserByUsername(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// UserByID looks an account up by id.
func (m *MemoryStore) UserByID(_ context.Context, id int64) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// UpdateUser replaces the stored profile of u.ID.
func (m *MemoryStore) UpdateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) phoneTaken(phone string, except int64) bool {
	for id, p := range m.patients {
		if id != except && p.Phone == phone {
			return true
		}
	}
	return false
}

// CreatePatient stores a patient for ownerID. Phone numbers are unique
// across all users.
func (m *MemoryStore) CreatePatient(_ context.Context, ownerID int64, in models.PatientInput) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phoneTaken(in.Phone, 0) {
		return 0, ErrDuplicate
	}
	m.lastPatient++
	id := m.lastPatient
	m.patients[id] = ownedPatient{owner: ownerID, Patient: patientFrom(id, in)}
	return id, nil
}

// ListPatients returns one page of ownerID's patients ordered by id, plus
// the total number of patients the owner has. A non-positive limit returns
// everything from offset.
func (m *MemoryStore) ListPatients(_ context.Context, ownerID int64, limit, offset int) ([]models.Patient, int, error) {
	m.mu.RLock()
	var all []models.Patient
	for _, p := range m.patients {
		if p.owner == ownerID {
			all = append(all, p.Patient)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(all, func(a, b models.Patient) int { return int(a.ID - b.ID) })
	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	page := make([]models.Patient, end-offset)
	copy(page, all[offset:end])
	return page, total, nil
}

// GetPatient returns one of ownerID's patients.
func (m *MemoryStore) GetPatient(_ context.Context, ownerID, id int64) (models.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok || p.owner != ownerID {
		return models.Patient{}, ErrNotFound
	}
	return p.Patient, nil
}

// UpdatePatient replaces the details of one of ownerID's patients.
func (m *MemoryStore) UpdatePatient(_ context.Context, ownerID, id int64, in models.PatientInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok || p.owner != ownerID {
		return ErrNotFound
	}
	if m.phoneTaken(in.Phone, id) {
		return ErrDuplicate
	}
	m.patients[id] = ownedPatient{owner: ownerID, Patient: patientFrom(id, in)}
	return nil
}

// DeletePatient removes a patient together with its tests.
func (m *MemoryStore) DeletePatient(_ context.Context, ownerID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok || p.owner != ownerID {
		return ErrNotFound
	}
	delete(m.patients, id)
	for tid, t := range m.tests {
		if t.PatientID == id {
			delete(m.tests, tid)
		}
	}
	return nil
}

// CreateTest stores t. The patient must exist and belong to t.OwnerID.
func (m *MemoryStore) CreateTest(_ context.Context, t Test) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[t.PatientID]
	if !ok || p.owner != t.OwnerID {
		return 0, ErrNotFound
	}
	m.lastTest++
	t.ID = m.lastTest
	m.tests[t.ID] = t
	return t.ID, nil
}

// ListTests returns the tests of one patient, oldest first.
func (m *MemoryStore) ListTests(_ context.Context, ownerID, patientID int64) ([]Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[patientID]
	if !ok || p.owner != ownerID {
		return nil, ErrNotFound
	}
	out := []Test{}
	for _, t := range m.tests {
		if t.PatientID == patientID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b Test) int { return int(a.ID - b.ID) })
	return out, nil
}

// GetTest returns one test.
func (m *MemoryStore) GetTest(_ context.Context, ownerID, id int64) (Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[id]
	if !ok || t.OwnerID != ownerID {
		return Test{}, ErrNotFound
	}
	return t, nil
}

func patientFrom(id int64, in models.PatientInput) models.Patient {
	return models.Patient{
		ID:          id,
		Name:        in.Name,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
		Phone:       in.Phone,
		Address:     in.Address,
	}
}
