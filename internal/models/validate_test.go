package models

import (
	"testing"
)

func TestPhonePattern(t *testing.T) {
	valid := []string{"+8613800138000", "8613800138000", "+12", "+123456789012345"}
	invalid := []string{"", "+", "+0123", "0123", "+1234567890123456", "+86 138", "abc", "+1-800"}
	for _, p := range valid {
		if !PhonePattern.MatchString(p) {
			t.Errorf("%q should be valid", p)
		}
	}
	for _, p := range invalid {
		if PhonePattern.MatchString(p) {
			t.Errorf("%q should be invalid", p)
		}
	}
}

func TestValidator_PatientInput(t *testing.T) {
	v := Validator()
	ok := PatientInput{Name: "Ann", DateOfBirth: "1990-01-31", Gender: GenderFemale, Phone: "+111"}
	if err := v.Struct(ok); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	cases := map[string]PatientInput{
		"missing name":  {DateOfBirth: "1990-01-31", Gender: GenderFemale, Phone: "+111"},
		"bad date":      {Name: "Ann", DateOfBirth: "31/01/1990", Gender: GenderFemale, Phone: "+111"},
		"bad gender":    {Name: "Ann", DateOfBirth: "1990-01-31", Gender: "robot", Phone: "+111"},
		"bad phone":     {Name: "Ann", DateOfBirth: "1990-01-31", Gender: GenderMale, Phone: "+0111"},
		"missing phone": {Name: "Ann", DateOfBirth: "1990-01-31", Gender: GenderMale},
	}
	for name, in := range cases {
		if err := v.Struct(in); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidator_Signup(t *testing.T) {
	v := Validator()
	if err := v.Struct(SignupRequest{Username: "u", Password: "short", DisplayName: "U"}); err == nil {
		t.Error("short password accepted")
	}
	if err := v.Struct(SignupRequest{Username: "u", Password: "longenough", DisplayName: "U"}); err != nil {
		t.Errorf("valid signup rejected: %v", err)
	}
}

func TestValidator_IsShared(t *testing.T) {
	if Validator() != Validator() {
		t.Error("expected a single shared validator")
	}
}
