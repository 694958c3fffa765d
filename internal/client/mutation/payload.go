package mutation

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/atinyakov/MedKeeper/internal/client/gateway"
	"github.com/atinyakov/MedKeeper/internal/models"
)

// Register registers a new patient from a form.
type Register struct {
	Form models.PatientForm
}

// Edit replaces the details of an existing patient.
type Edit struct {
	PatientID int64
	Form      models.PatientForm
}

// Delete removes a patient.
type Delete struct {
	PatientID int64
}

// SubmitTest uploads a diagnostic image for a patient.
type SubmitTest struct {
	PatientID int64
	Image     gateway.File
}

// UpdateProfile changes the signed-in user's profile.
type UpdateProfile struct {
	Profile models.ProfileUpdate
}

// UploadPicture replaces the profile picture.
type UploadPicture struct {
	Picture gateway.File
}

const (
	MsgRequired   = "Please fill out all required fields."
	MsgPhone      = "Invalid phone number format."
	MsgDate       = "Date of birth must be in YYYY-MM-DD format."
	MsgGender     = "Gender must be Male, Female or Other."
	MsgEmail      = "Invalid email address."
	MsgNoImage    = "Please upload a file to proceed with the test."
	MsgNoPicture  = "Please choose a picture to upload."
	MsgNoPatient  = "A patient must be selected."
	MsgDuplicate  = "Phone number already registered."
	MsgBadPayload = "Unsupported request."
	msgRejected   = "The request was rejected. Please check your input."
)

// checkPatient pre-validates a patient form and returns the request body.
func checkPatient(v *validator.Validate, f models.PatientForm) (models.PatientInput, string) {
	in := f.Input()
	if in.Name == "" || in.DateOfBirth == "" || strings.TrimSpace(f.Gender) == "" ||
		strings.TrimSpace(f.LocalPhone) == "" {
		return in, MsgRequired
	}
	if err := v.Struct(in); err != nil {
		return in, patientMessage(err)
	}
	return in, ""
}

func patientMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return MsgRequired
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return MsgRequired
		}
	}
	switch verrs[0].Field() {
	case "Phone":
		return MsgPhone
	case "DateOfBirth":
		return MsgDate
	case "Gender":
		return MsgGender
	}
	return MsgRequired
}

func checkProfile(v *validator.Validate, p models.ProfileUpdate) string {
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	err := v.Struct(p)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "Email" {
				return MsgEmail
			}
		}
	}
	return MsgRequired
}
