package patient

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("patient not found")
	ErrInvalid    = errors.New("invalid patient")
	ErrIDMismatch = errors.New("ID mismatch")
)

// DateOfBirthLayout is the wire format of Patient.DateOfBirth.
const DateOfBirthLayout = "2006-01-02"

// Patient maps to the patients table.
type Patient struct {
	ID             string `json:"id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phoneNumber"`
	DateOfBirth    string `json:"dateOfBirth"`
	MedicalHistory string `json:"medicalHistory"`
}

// FullName is "First Last".
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Patient) Validate() error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("%w: firstName and lastName are required", ErrInvalid)
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return fmt.Errorf("%w: email %q is not a valid address", ErrInvalid, p.Email)
		}
	}
	if p.DateOfBirth != "" {
		if _, err := time.Parse(DateOfBirthLayout, p.DateOfBirth); err != nil {
			return fmt.Errorf("%w: dateOfBirth %q is not YYYY-MM-DD", ErrInvalid, p.DateOfBirth)
		}
	}
	return nil
}

// birthDate returns the date of birth for storage, nil when unset.
func (p *Patient) birthDate() *time.Time {
	if p.DateOfBirth == "" {
		return nil
	}
	d, err := time.Parse(DateOfBirthLayout, p.DateOfBirth)
	if err != nil {
		return nil
	}
	return &d
}

// Matches reports whether the "first last" name contains term, ignoring case.
func (p *Patient) Matches(term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName), strings.ToLower(term))
}
