// Package repository provides persistence for the API sandbox: users,
// patients and diagnostic tests, in memory or in PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/atinyakov/MedKeeper/internal/models"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when the requested record does not exist or
	// belongs to another user.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key (username, patient phone)
	// is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// User is a stored account.
type User struct {
	ID             int64
	Username       string
	PasswordHash   string
	DisplayName    string
	Email          string
	Bio            string
	ContactNumber  string
	ProfilePicture *string
	IsAdmin        bool
}

// Public strips the credentials off the record.
func (u User) Public() models.User {
	return models.User{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		Email:          u.Email,
		Bio:            u.Bio,
		ContactNumber:  u.ContactNumber,
		ProfilePicture: u.ProfilePicture,
		IsAdmin:        u.IsAdmin,
	}
}

// Test is a stored diagnostic test, including the uploaded image.
type Test struct {
	ID            int64
	PatientID     int64
	OwnerID       int64
	Result        string
	Confidence    float64
	Predictions   []models.Prediction
	Comments      string
	ImageName     string
	Image         []byte
	DateConducted time.Time
}

// Public converts the record to its wire form.
func (t Test) Public() models.TestResult {
	return models.TestResult{
		ID:            t.ID,
		PatientID:     t.PatientID,
		Result:        t.Result,
		Confidence:    t.Confidence,
		DateConducted: models.Timestamp{Time: t.DateConducted.UTC()},
		Predictions:   t.Predictions,
		Comments:      t.Comments,
	}
}

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, u User) (int64, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	UpdateUser(ctx context.Context, u User) error
}

// PatientRepository stores patients. Every call is scoped to the owning user.
type PatientRepository interface {
	CreatePatient(ctx context.Context, ownerID int64, in models.PatientInput) (int64, error)
	ListPatients(ctx context.Context, ownerID int64, limit, offset int) ([]models.Patient, int, error)
	GetPatient(ctx context.Context, ownerID, id int64) (models.Patient, error)
	UpdatePatient(ctx context.Context, ownerID, id int64, in models.PatientInput) error
	DeletePatient(ctx context.Context, ownerID, id int64) error
}

// TestRepository stores diagnostic tests.
type TestRepository interface {
	CreateTest(ctx context.Context, t Test) (int64, error)
	ListTests(ctx context.Context, ownerID, patientID int64) ([]Test, error)
	GetTest(ctx context.Context, ownerID, id int64) (Test, error)
}

// Store bundles the three repositories.
type Store interface {
	UserRepository
	PatientRepository
	TestRepository
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// PostgresStore combines the Postgres repositories into one Store.
type PostgresStore struct {
	*PostgresUserRepository
	*PostgresPatientRepository
	*PostgresTestRepository
}

// NewPostgresStore creates a Store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		PostgresUserRepository:    NewPostgresUserRepository(db),
		PostgresPatientRepository: NewPostgresPatientRepository(db),
		PostgresTestRepository:    NewPostgresTestRepository(db),
	}
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
