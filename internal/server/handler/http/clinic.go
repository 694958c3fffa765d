package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/atinyakov/MedKeeper/internal/middleware"
	"github.com/atinyakov/MedKeeper/internal/models"
	"github.com/atinyakov/MedKeeper/internal/service"
	"go.uber.org/zap"
)

// MaxUploadBytes caps multipart request bodies.
const MaxUploadBytes = 20 << 20

// PatientService is the patient management used by PatientHandler.
type PatientService interface {
	Create(ctx context.Context, ownerID int64, in models.PatientInput) (int64, error)
	List(ctx context.Context, ownerID int64, limit, offset int) (models.PatientList, error)
	Get(ctx context.Context, ownerID, id int64) (models.Patient, error)
	Update(ctx context.Context, ownerID, id int64, in models.PatientInput) error
	Delete(ctx context.Context, ownerID, id int64) error
}

// PatientHandler serves /api/patients.
type PatientHandler struct {
	PatientService PatientService
	Log            *zap.Logger
}

// Create handles POST /api/patients and answers 201 with the new id.
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.PatientInput
	if !decodeJSON(w, r, &in) {
		return
	}
	id, err := h.PatientService.Create(r.Context(), middleware.GetUserIDFromContext(r.Context()), in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.PatientAck{Message: "Patient created successfully", PatientID: id})
}

// List handles GET /api/patients?limit=&offset=.
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", service.DefaultPageLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	list, err := h.PatientService.List(r.Context(), middleware.GetUserIDFromContext(r.Context()), limit, offset)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/patients/{patientId}.
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "patientId")
	if !ok {
		return
	}
	p, err := h.PatientService.Get(r.Context(), middleware.GetUserIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update handles PUT /api/patients/{patientId}.
func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "patientId")
	if !ok {
		return
	}
	var in models.PatientInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := h.PatientService.Update(r.Context(), middleware.GetUserIDFromContext(r.Context()), id, in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PatientAck{Message: "Patient updated successfully", PatientID: id})
}

// Delete handles DELETE /api/patients/{patientId}.
func (h *PatientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "patientId")
	if !ok {
		return
	}
	if err := h.PatientService.Delete(r.Context(), middleware.GetUserIDFromContext(r.Context()), id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Message{Message: "Patient deleted successfully"})
}

// TestService is the diagnostic test handling used by TestHandler.
type TestService interface {
	Submit(ctx context.Context, ownerID, patientID int64, filename string, image []byte) (models.TestSubmitted, error)
	List(ctx context.Context, ownerID, patientID int64) ([]models.TestResult, error)
	Get(ctx context.Context, ownerID, id int64) (models.TestResult, error)
	Report(ctx context.Context, ownerID, id int64) ([]byte, error)
}

// TestHandler serves /api/tests and /api/report.
type TestHandler struct {
	TestService TestService
	Log         *zap.Logger
}

// Submit handles the multipart POST /api/tests with fields "patientId" and
// "image", answering 201 with the classification.
func (h *TestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	patientID, err := strconv.ParseInt(r.FormValue("patientId"), 10, 64)
	if err != nil {
		writeInvalid(w, "body", "patientId", "value is not a valid integer")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeInvalid(w, "body", "image", "field required")
		return
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	out, err := h.TestService.Submit(r.Context(), middleware.GetUserIDFromContext(r.Context()), patientID, header.Filename, image)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// ListForPatient handles GET /api/tests/patient/{patientId}.
func (h *TestHandler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "patientId")
	if !ok {
		return
	}
	tests, err := h.TestService.List(r.Context(), middleware.GetUserIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, tests)
}

// Get handles GET /api/tests/{testId}.
func (h *TestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "testId")
	if !ok {
		return
	}
	t, err := h.TestService.Get(r.Context(), middleware.GetUserIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Report handles GET /api/report/download/{testId} and streams the PDF.
func (h *TestHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "testId")
	if !ok {
		return
	}
	pdf, err := h.TestService.Report(r.Context(), middleware.GetUserIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=report_%d.pdf", id))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
