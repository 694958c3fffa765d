// Package prompt reads forms line by line for the interactive shell.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/MedKeeper/internal/models"
)

// Prompter asks questions on out and reads answers from in.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// New creates a Prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

// Line prints label and returns the trimmed answer. It returns "" once the
// input is exhausted.
func (p *Prompter) Line(label string) string {
	v, _ := p.Next(label)
	return v
}

// Next is Line that also reports false once the input is exhausted.
func (p *Prompter) Next(label string) (string, bool) {
	fmt.Fprint(p.out, label)
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// orKeep asks label and falls back to current on an empty answer.
func (p *Prompter) orKeep(label, current string) string {
	if current != "" {
		label = fmt.Sprintf("%s [%s]", label, current)
	}
	if v := p.Line(label + ": "); v != "" {
		return v
	}
	return current
}

// Credentials asks for a username and a password.
func (p *Prompter) Credentials() (username, password string) {
	username = p.Line("Username: ")
	password = p.Line("Password: ")
	return username, password
}

// Signup asks for the fields of a new account.
func (p *Prompter) Signup() models.SignupRequest {
	return models.SignupRequest{
		Username:    p.Line("Username: "),
		Password:    p.Line("Password (min 8 characters): "),
		DisplayName: p.Line("Display name: "),
	}
}

// Patient fills a patient form. With current set, an empty answer keeps the
// existing value; countryCode is the preselected phone prefix.
func (p *Prompter) Patient(countryCode string, current *models.Patient) models.PatientForm {
	var cur models.Patient
	if current != nil {
		cur = *current
	}
	local := cur.Phone
	if strings.HasPrefix(local, countryCode) {
		local = strings.TrimPrefix(local, countryCode)
	} else if local != "" {
		countryCode = ""
	}
	return models.PatientForm{
		Name:        p.orKeep("Name", cur.Name),
		DateOfBirth: p.orKeep("Date of birth (YYYY-MM-DD)", cur.DateOfBirth),
		Gender:      p.orKeep("Gender (Male/Female/Other)", string(cur.Gender)),
		CountryCode: p.orKeep("Country code", countryCode),
		LocalPhone:  p.orKeep("Phone number", local),
		Address:     p.orKeep("Address (optional)", cur.Address),
	}
}

// Profile asks for profile changes, keeping current values on empty answers.
func (p *Prompter) Profile(current models.User) models.ProfileUpdate {
	return models.ProfileUpdate{
		DisplayName:   p.orKeep("Display name", current.DisplayName),
		Email:         p.orKeep("Email", current.Email),
		Bio:           p.orKeep("Bio", current.Bio),
		ContactNumber: p.orKeep("Contact number", current.ContactNumber),
	}
}

// Confirm asks a yes/no question. Anything but y or yes is no.
func (p *Prompter) Confirm(question string) bool {
	switch strings.ToLower(p.Line(question + " [y/N]: ")) {
	case "y", "yes":
		return true
	}
	return false
}
