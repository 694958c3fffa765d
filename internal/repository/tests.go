package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/MedKeeper/internal/models"
	"github.com/lib/pq"
)

// PostgresTestRepository implements TestRepository using a PostgreSQL database.
// Predictions are stored as two parallel arrays (labels, scores).
type PostgresTestRepository struct {
	DB *sql.DB
}

// NewPostgresTestRepository creates a new PostgresTestRepository.
func NewPostgresTestRepository(db *sql.DB) *PostgresTestRepository {
	return &PostgresTestRepository{DB: db}
}

// CreateTest inserts t after checking that its patient belongs to t.OwnerID.
// Returns ErrNotFound if it does not.
func (r *PostgresTestRepository) CreateTest(ctx context.Context, t Test) (int64, error) {
	labels, scores := splitPredictions(t.Predictions)
	var id int64
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO tests (patient_id, owner_id, result, confidence, labels, scores, comments, image_name, image, date_conducted)
		SELECT p.id, $2, $3, $4, $5, $6, $7, $8, $9, $10 FROM patients p
		WHERE p.id = $1 AND p.owner_id = $2
		RETURNING id
	`, t.PatientID, t.OwnerID, t.Result, t.Confidence, pq.Array(labels), pq.Array(scores),
		t.Comments, t.ImageName, t.Image, t.DateConducted).Scan(&id)
	if err != nil {
		return 0, translate(err)
	}
	return id, nil
}

// ListTests returns the tests of one of ownerID's patients, oldest first.
// The image bytes are not loaded.
func (r *PostgresTestRepository) ListTests(ctx context.Context, ownerID, patientID int64) ([]Test, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM patients WHERE owner_id = $1 AND id = $2)`,
		ownerID, patientID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("ListTests patient: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, patient_id, owner_id, result, confidence, labels, scores, comments, image_name, date_conducted
		FROM tests WHERE owner_id = $1 AND patient_id = $2 ORDER BY id
	`, ownerID, patientID)
	if err != nil {
		return nil, fmt.Errorf("ListTests: %w", err)
	}
	defer rows.Close()

	out := []Test{}
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// GetTest fetches one test including its image.
func (r *PostgresTestRepository) GetTest(ctx context.Context, ownerID, id int64) (Test, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, patient_id, owner_id, result, confidence, labels, scores, comments, image_name, date_conducted, image
		FROM tests WHERE owner_id = $1 AND id = $2
	`, ownerID, id)
	var t Test
	var labels []string
	var scores []float64
	err := row.Scan(&t.ID, &t.PatientID, &t.OwnerID, &t.Result, &t.Confidence,
		pq.Array(&labels), pq.Array(&scores), &t.Comments, &t.ImageName, &t.DateConducted, &t.Image)
	if err != nil {
		return Test{}, translate(err)
	}
	t.Predictions = joinPredictions(labels, scores)
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTest(s scanner) (Test, error) {
	var t Test
	var labels []string
	var scores []float64
	err := s.Scan(&t.ID, &t.PatientID, &t.OwnerID, &t.Result, &t.Confidence,
		pq.Array(&labels), pq.Array(&scores), &t.Comments, &t.ImageName, &t.DateConducted)
	if err != nil {
		return Test{}, err
	}
	t.Predictions = joinPredictions(labels, scores)
	return t, nil
}

func splitPredictions(ps []models.Prediction) ([]string, []float64) {
	labels := make([]string, len(ps))
	scores := make([]float64, len(ps))
	for i, p := range ps {
		labels[i] = p.Label
		scores[i] = p.Confidence
	}
	return labels, scores
}

func joinPredictions(labels []string, scores []float64) []models.Prediction {
	n := min(len(labels), len(scores))
	if n == 0 {
		return nil
	}
	out := make([]models.Prediction, n)
	for i := range n {
		out[i] = models.Prediction{Label: labels[i], Confidence: scores[i]}
	}
	return out
}
