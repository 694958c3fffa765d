// Package models defines the wire schemas exchanged with the clinical records API.
package models

import (
	"strings"
)

// Gender is the administrative gender recorded for a patient.
type Gender string

const (
	// GenderMale is the "Male" enum value.
	GenderMale Gender = "Male"
	// GenderFemale is the "Female" enum value.
	GenderFemale Gender = "Female"
	// GenderOther is the "Other" enum value.
	GenderOther Gender = "Other"
)

// ParseGender accepts any casing of a known gender and returns its canonical form.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male":
		return GenderMale, true
	case "female":
		return GenderFemale, true
	case "other":
		return GenderOther, true
	}
	return "", false
}

// Patient is a patient record as returned by the API.
type Patient struct {
	// ID is the server-assigned identifier.
	ID int64 `json:"id" validate:"required"`
	// Name is the patient's full name.
	Name string `json:"name" validate:"required"`
	// DateOfBirth is formatted as YYYY-MM-DD.
	DateOfBirth string `json:"date_of_birth"`
	// Gender is one of Male, Female or Other.
	Gender Gender `json:"gender"`
	// Phone is an E.164-like number including the country code.
	Phone string `json:"phone"`
	// Address is optional.
	Address string `json:"address,omitempty"`
}

// PatientInput is the body of the register and edit patient calls.
type PatientInput struct {
	Name        string `json:"name" validate:"required"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Gender      Gender `json:"gender" validate:"required,oneof=Male Female Other"`
	Phone       string `json:"phone" validate:"required,phone"`
	Address     string `json:"address,omitempty"`
}

// PatientForm is what a user fills in: the phone number is split into a
// selected country code and a local number.
type PatientForm struct {
	Name        string
	DateOfBirth string
	Gender      string
	CountryCode string
	LocalPhone  string
	Address     string
}

// FullPhone concatenates the country code and the local number.
func (f PatientForm) FullPhone() string {
	return strings.TrimSpace(f.CountryCode + f.LocalPhone)
}

// Input converts the form into the request body. Gender casing is normalised;
// an unknown gender is passed through so validation can reject it.
func (f PatientForm) Input() PatientInput {
	g, ok := ParseGender(f.Gender)
	if !ok {
		g = Gender(strings.TrimSpace(f.Gender))
	}
	return PatientInput{
		Name:        strings.TrimSpace(f.Name),
		DateOfBirth: strings.TrimSpace(f.DateOfBirth),
		Gender:      g,
		Phone:       f.FullPhone(),
		Address:     strings.TrimSpace(f.Address),
	}
}

// PatientList is the envelope of GET /api/patients.
type PatientList struct {
	Patients   []Patient `json:"patients" validate:"dive"`
	TotalCount int       `json:"total_count"`
}

// PatientAck is returned by POST and PUT /api/patients.
type PatientAck struct {
	Message   string `json:"message"`
	PatientID int64  `json:"patient_id" validate:"required"`
}

// User is the profile of the signed-in user.
type User struct {
	ID             int64   `json:"id" validate:"required"`
	Username       string  `json:"username"`
	DisplayName    string  `json:"display_name"`
	Email          string  `json:"email,omitempty"`
	Bio            string  `json:"bio,omitempty"`
	ContactNumber  string  `json:"contact_number,omitempty"`
	ProfilePicture *string `json:"profile_picture"`
	IsAdmin        bool    `json:"is_admin,omitempty"`
}

// ProfileUpdate is the body of PUT /api/users/me.
type ProfileUpdate struct {
	DisplayName   string `json:"display_name" validate:"required"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Bio           string `json:"bio,omitempty"`
	ContactNumber string `json:"contact_number,omitempty"`
}

// ProfileUpdated is returned by PUT /api/users/me.
type ProfileUpdated struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// PictureUploaded is returned by POST /api/users/me/profile-picture.
type PictureUploaded struct {
	Message        string `json:"message"`
	ProfilePicture string `json:"profile_picture" validate:"required"`
}

// LoginRequest holds the credentials posted to /api/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the bearer token issued on login.
type LoginResponse struct {
	AccessToken string `json:"access_token" validate:"required"`
	IsAdmin     bool   `json:"is_admin"`
}

// SignupRequest is the body of /api/signup.
type SignupRequest struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required"`
}

// Message is the generic {"message": "..."} acknowledgement.
type Message struct {
	Message string `json:"message"`
}

// NewUserRequest is the body of the administrator-only POST /api/users.
type NewUserRequest struct {
	SignupRequest
	IsAdmin bool `json:"is_admin"`
}

// UserCreated is returned by POST /api/users.
type UserCreated struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id" validate:"required"`
}
