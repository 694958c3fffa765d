package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/atinyakov/MedKeeper/internal/models"
	"github.com/atinyakov/MedKeeper/internal/repository"
	"go.uber.org/zap"
)

// XRayLabels are the classes scored by the sandbox classifier.
var XRayLabels = []string{"COVID19", "NORMAL", "PNEUMONIA", "TUBERCULOSIS"}

var allowedImageExt = []string{".png", ".jpg", ".jpeg"}

// Classifier scores an image. The result is ordered by descending
// confidence and the confidences sum to one.
type Classifier interface {
	Classify(image []byte) []models.Prediction
}

// DigestClassifier derives stable scores from the SHA-256 of the image, so
// the same upload always yields the same result.
type DigestClassifier struct {
	Labels []string
}

// Classify implements Classifier.
func (c DigestClassifier) Classify(image []byte) []models.Prediction {
	labels := c.Labels
	if len(labels) == 0 {
		labels = XRayLabels
	}
	sum := sha256.Sum256(image)
	weights := make([]float64, len(labels))
	var total float64
	for i := range labels {
		weights[i] = float64(sum[i%len(sum)]) + 1
		total += weights[i]
	}
	out := make([]models.Prediction, len(labels))
	for i, l := range labels {
		out[i] = models.Prediction{Label: l, Confidence: weights[i] / total}
	}
	slices.SortStableFunc(out, func(a, b models.Prediction) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	return out
}

// AllowedImage reports whether name has a png, jpg or jpeg extension.
func AllowedImage(name string) bool {
	return slices.Contains(allowedImageExt, strings.ToLower(filepath.Ext(name)))
}

// TestService submits images for classification and serves the results.
type TestService struct {
	tests    repository.TestRepository
	patients repository.PatientRepository
	classify Classifier
	log      *zap.Logger
	now      func() time.Time
}

// NewTestService constructs a new TestService. A nil classifier means
// DigestClassifier over XRayLabels.
func NewTestService(tests repository.TestRepository, patients repository.PatientRepository, c Classifier, log *zap.Logger) *TestService {
	if c == nil {
		c = DigestClassifier{Labels: XRayLabels}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TestService{tests: tests, patients: patients, classify: c, log: log, now: time.Now}
}

// Submit classifies image for one of ownerID's patients and stores the test.
func (s *TestService) Submit(ctx context.Context, ownerID, patientID int64, filename string, image []byte) (models.TestSubmitted, error) {
	if _, err := s.patients.GetPatient(ctx, ownerID, patientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TestSubmitted{}, ErrPatientNotFound
		}
		return models.TestSubmitted{}, err
	}
	if !AllowedImage(filename) {
		return models.TestSubmitted{}, ErrInvalidFileType
	}
	if len(image) == 0 {
		return models.TestSubmitted{}, &InputError{Field: "image", Msg: "empty file"}
	}

	preds := s.classify.Classify(image)
	top := preds[0]
	id, err := s.tests.CreateTest(ctx, repository.Test{
		PatientID:     patientID,
		OwnerID:       ownerID,
		Result:        top.Label,
		Confidence:    top.Confidence,
		Predictions:   preds,
		ImageName:     filepath.Base(filename),
		Image:         image,
		DateConducted: s.now().UTC(),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return models.TestSubmitted{}, ErrPatientNotFound
	}
	if err != nil {
		return models.TestSubmitted{}, err
	}
	s.log.Info("test classified",
		zap.Int64("test_id", id), zap.Int64("patient_id", patientID),
		zap.String("result", top.Label), zap.Float64("confidence", top.Confidence))

	return models.TestSubmitted{
		Message:        "Test created successfully",
		PatientID:      patientID,
		TestID:         id,
		Result:         top.Label,
		Confidence:     top.Confidence,
		AllPredictions: preds,
	}, nil
}

// List returns every test of a patient.
func (s *TestService) List(ctx context.Context, ownerID, patientID int64) ([]models.TestResult, error) {
	tests, err := s.tests.ListTests(ctx, ownerID, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	out := make([]models.TestResult, len(tests))
	for i, t := range tests {
		out[i] = t.Public()
	}
	return out, nil
}

// Get returns one test.
func (s *TestService) Get(ctx context.Context, ownerID, id int64) (models.TestResult, error) {
	t, err := s.tests.GetTest(ctx, ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.TestResult{}, ErrTestNotFound
	}
	if err != nil {
		return models.TestResult{}, err
	}
	return t.Public(), nil
}

// Report renders the PDF report of a test.
func (s *TestService) Report(ctx context.Context, ownerID, id int64) ([]byte, error) {
	t, err := s.tests.GetTest(ctx, ownerID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, err
	}
	p, err := s.patients.GetPatient(ctx, ownerID, t.PatientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, err
	}
	return RenderPDF(ReportLines(p, t)), nil
}
