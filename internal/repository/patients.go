package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/MedKeeper/internal/models"
)

// PostgresPatientRepository implements PatientRepository using a PostgreSQL database.
type PostgresPatientRepository struct {
	DB *sql.DB
}

// NewPostgresPatientRepository creates a new PostgresPatientRepository.
func NewPostgresPatientRepository(db *sql.DB) *PostgresPatientRepository {
	return &PostgresPatientRepository{DB: db}
}

// CreatePatient inserts a patient owned by ownerID and returns its id.
// A phone number already on file yields ErrDuplicate.
//
//	ctx:     context for cancellation and deadlines
//	ownerID: identifier of the owning user
//	in:      validated patient details
func (r *PostgresPatientRepository) CreatePatient(ctx context.Context, ownerID int64, in models.PatientInput) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO patients (owner_id, name, date_of_birth, gender, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, ownerID, in.Name, in.DateOfBirth, string(in.Gender), in.Phone, in.Address).Scan(&id)
	if err != nil {
		return 0, translate(err)
	}
	return id, nil
}

// ListPatients returns one page of ownerID's patients ordered by id and the
// owner's total patient count. A non-positive limit means no limit.
func (r *PostgresPatientRepository) ListPatients(ctx context.Context, ownerID int64, limit, offset int) ([]models.Patient, int, error) {
	var total int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients WHERE owner_id = $1`, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListPatients count: %w", err)
	}

	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, date_of_birth, gender, phone, address FROM patients
		WHERE owner_id = $1 ORDER BY id LIMIT $2 OFFSET $3
	`, ownerID, lim, max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("ListPatients: %w", err)
	}
	defer rows.Close()

	patients := []models.Patient{}
	for rows.Next() {
		var p models.Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.DateOfBirth, &p.Gender, &p.Phone, &p.Address); err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows: %w", err)
	}
	return patients, total, nil
}

// GetPatient fetches one of ownerID's patients.
func (r *PostgresPatientRepository) GetPatient(ctx context.Context, ownerID, id int64) (models.Patient, error) {
	var p models.Patient
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, name, date_of_birth, gender, phone, address FROM patients
		WHERE owner_id = $1 AND id = $2
	`, ownerID, id).Scan(&p.ID, &p.Name, &p.DateOfBirth, &p.Gender, &p.Phone, &p.Address)
	if err != nil {
		return models.Patient{}, translate(err)
	}
	return p, nil
}

// UpdatePatient replaces the details of one of ownerID's patients.
func (r *PostgresPatientRepository) UpdatePatient(ctx context.Context, ownerID, id int64, in models.PatientInput) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE patients SET name = $1, date_of_birth = $2, gender = $3, phone = $4, address = $5
		WHERE owner_id = $6 AND id = $7
	`, in.Name, in.DateOfBirth, string(in.Gender), in.Phone, in.Address, ownerID, id)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

// DeletePatient removes a patient; its tests go with it (ON DELETE CASCADE).
func (r *PostgresPatientRepository) DeletePatient(ctx context.Context, ownerID, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM patients WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}
