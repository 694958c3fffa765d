package service

import (
	"context"
	"errors"

	"github.com/atinyakov/MedKeeper/internal/models"
	"github.com/atinyakov/MedKeeper/internal/repository"
)

// DefaultPageLimit is the page size used when the caller gives none.
const DefaultPageLimit = 10

// PatientService manages the patients of the signed-in user.
type PatientService struct {
	repo repository.PatientRepository
}

// NewPatientService constructs a new PatientService.
func NewPatientService(repo repository.PatientRepository) *PatientService {
	return &PatientService{repo: repo}
}

// normalize validates in and canonicalises the gender casing.
func normalize(in models.PatientInput) (models.PatientInput, error) {
	if g, ok := models.ParseGender(string(in.Gender)); ok {
		in.Gender = g
	}
	if err := models.Validator().Struct(in); err != nil {
		return in, inputError(err)
	}
	return in, nil
}

// Create registers a patient for ownerID.
func (s *PatientService) Create(ctx context.Context, ownerID int64, in models.PatientInput) (int64, error) {
	in, err := normalize(in)
	if err != nil {
		return 0, err
	}
	id, err := s.repo.CreatePatient(ctx, ownerID, in)
	if errors.Is(err, repository.ErrDuplicate) {
		return 0, ErrPhoneTaken
	}
	return id, err
}

// List returns one page of patients and the owner's total count.
// A non-positive limit falls back to DefaultPageLimit.
func (s *PatientService) List(ctx context.Context, ownerID int64, limit, offset int) (models.PatientList, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	patients, total, err := s.repo.ListPatients(ctx, ownerID, limit, offset)
	if err != nil {
		return models.PatientList{}, err
	}
	return models.PatientList{Patients: patients, TotalCount: total}, nil
}

// Get returns one patient.
func (s *PatientService) Get(ctx context.Context, ownerID, id int64) (models.Patient, error) {
	p, err := s.repo.GetPatient(ctx, ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return p, ErrPatientNotFound
	}
	return p, err
}

// Update replaces a patient's details.
func (s *PatientService) Update(ctx context.Context, ownerID, id int64, in models.PatientInput) error {
	in, err := normalize(in)
	if err != nil {
		return err
	}
	return patientErr(s.repo.UpdatePatient(ctx, ownerID, id, in))
}

// Delete removes a patient and its tests.
func (s *PatientService) Delete(ctx context.Context, ownerID, id int64) error {
	return patientErr(s.repo.DeletePatient(ctx, ownerID, id))
}

func patientErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrPatientNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrPhoneTaken
	}
	return err
}
