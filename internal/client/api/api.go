// Package api binds the REST endpoints of the clinical records service to
// typed calls over the gateway.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/atinyakov/MedKeeper/internal/client/gateway"
	"github.com/atinyakov/MedKeeper/internal/client/transfer"
	"github.com/atinyakov/MedKeeper/internal/models"
)

// ListPageSize is the page size used when walking the patient list.
const ListPageSize = 100

// Client is the typed API.
type Client struct {
	gw   *gateway.Gateway
	xfer *transfer.Handler
}

// New creates a Client.
func New(gw *gateway.Gateway, xfer *transfer.Handler) *Client {
	return &Client{gw: gw, xfer: xfer}
}

// Gateway returns the underlying gateway.
func (c *Client) Gateway() *gateway.Gateway { return c.gw }

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	return c.gw.Call(ctx, gateway.Request{Method: method, Path: path, Body: body, Expect: gateway.ExpectJSON}, out)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (models.LoginResponse, error) {
	var out models.LoginResponse
	err := c.call(ctx, http.MethodPost, "/api/login", req, &out)
	return out, err
}

// Signup creates an account.
func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (models.Message, error) {
	var out models.Message
	err := c.call(ctx, http.MethodPost, "/api/signup", req, &out)
	return out, err
}

// PatientsPage fetches one server page of patients.
func (c *Client) PatientsPage(ctx context.Context, limit, offset int) (models.PatientList, error) {
	var out models.PatientList
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	err := c.gw.Call(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/patients",
		Query:  q,
		Expect: gateway.ExpectJSON,
	}, &out)
	return out, err
}

// ListPatients walks the server pages and returns every patient.
func (c *Client) ListPatients(ctx context.Context) ([]models.Patient, error) {
	var all []models.Patient
	for offset := 0; ; {
		page, err := c.PatientsPage(ctx, ListPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Patients...)
		offset += len(page.Patients)
		if len(page.Patients) == 0 || offset >= page.TotalCount {
			break
		}
	}
	if all == nil {
		all = []models.Patient{}
	}
	return all, nil
}

// GetPatient fetches one patient.
func (c *Client) GetPatient(ctx context.Context, id int64) (models.Patient, error) {
	var out models.Patient
	err := c.call(ctx, http.MethodGet, patientPath(id), nil, &out)
	return out, err
}

// CreatePatient registers a patient.
func (c *Client) CreatePatient(ctx context.Context, in models.PatientInput) (models.PatientAck, error) {
	var out models.PatientAck
	err := c.call(ctx, http.MethodPost, "/api/patients", in, &out)
	return out, err
}

// UpdatePatient replaces a patient's details.
func (c *Client) UpdatePatient(ctx context.Context, id int64, in models.PatientInput) (models.PatientAck, error) {
	var out models.PatientAck
	err := c.call(ctx, http.MethodPut, patientPath(id), in, &out)
	return out, err
}

// DeletePatient removes a patient. Deleting an unknown id is a client error.
func (c *Client) DeletePatient(ctx context.Context, id int64) error {
	var out models.Message
	return c.call(ctx, http.MethodDelete, patientPath(id), nil, &out)
}

// ListTests returns every test of a patient.
func (c *Client) ListTests(ctx context.Context, patientID int64) ([]models.TestResult, error) {
	out := []models.TestResult{}
	err := c.call(ctx, http.MethodGet, fmt.Sprintf("/api/tests/patient/%d", patientID), nil, &out)
	return out, err
}

// GetTest fetches one test.
func (c *Client) GetTest(ctx context.Context, id int64) (models.TestResult, error) {
	var out models.TestResult
	err := c.call(ctx, http.MethodGet, fmt.Sprintf("/api/tests/%d", id), nil, &out)
	return out, err
}

// SubmitTest uploads an image for classification.
func (c *Client) SubmitTest(ctx context.Context, patientID int64, image gateway.File) (models.TestSubmitted, error) {
	var out models.TestSubmitted
	image.Field = "image"
	err := c.xfer.Upload(ctx, "/api/tests",
		map[string]string{"patientId": strconv.FormatInt(patientID, 10)}, image, &out)
	return out, err
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out models.User
	err := c.call(ctx, http.MethodGet, "/api/users/me", nil, &out)
	return out, err
}

// UpdateMe changes profile fields.
func (c *Client) UpdateMe(ctx context.Context, in models.ProfileUpdate) (models.ProfileUpdated, error) {
	var out models.ProfileUpdated
	err := c.call(ctx, http.MethodPut, "/api/users/me", in, &out)
	return out, err
}

// UploadProfilePicture replaces the profile picture and returns its path.
func (c *Client) UploadProfilePicture(ctx context.Context, picture gateway.File) (models.PictureUploaded, error) {
	var out models.PictureUploaded
	picture.Field = "file"
	err := c.xfer.Upload(ctx, "/api/users/me/profile-picture", nil, picture, &out)
	return out, err
}

// ReportName is the default file name of a test report.
func ReportName(testID int64) string {
	return fmt.Sprintf("Report_%d.pdf", testID)
}

// DownloadReport fetches the PDF report of a test into a local handle.
func (c *Client) DownloadReport(ctx context.Context, testID int64) (*transfer.Handle, error) {
	return c.xfer.Download(ctx, fmt.Sprintf("/api/report/download/%d", testID), ReportName(testID))
}

func patientPath(id int64) string {
	return "/api/patients/" + strconv.FormatInt(id, 10)
}
