package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("appointment not found")
	ErrInvalid    = errors.New("invalid appointment")
	ErrIDMismatch = errors.New("ID mismatch")
)

// DateLayout is the wire and storage format of an appointment date.
const DateLayout = "2006-01-02"

// Time-of-day layouts accepted on the wire, tried in order.
var timeLayouts = []string{"15:04", "15:04:05"}

// Appointment is the write shape of a booking. Date and Time are wall clock
// values in the clinic's timezone. No end time is stored.
type Appointment struct {
	ID        string `json:"id"`
	PatientID string `json:"patientId"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Duration  int    `json:"duration"`
	Type      string `json:"type"`
	Notes     string `json:"notes"`
}

// AppointmentView is an appointment joined with its patient's name. The name
// fields are empty when the patient row is missing.
type AppointmentView struct {
	Appointment
	PatientFirstName string `json:"patientFirstName"`
	PatientLastName  string `json:"patientLastName"`
}

// PatientName is "First Last", trimmed when either part is missing.
func (v *AppointmentView) PatientName() string {
	return strings.TrimSpace(v.PatientFirstName + " " + v.PatientLastName)
}

// Validate checks the fields every stored appointment needs.
func (a *Appointment) Validate() error {
	switch {
	case strings.TrimSpace(a.PatientID) == "":
		return fmt.Errorf("%w: patientId is required", ErrInvalid)
	case a.Date == "":
		return fmt.Errorf("%w: date is required", ErrInvalid)
	case a.Time == "":
		return fmt.Errorf("%w: time is required", ErrInvalid)
	case a.Duration < 0:
		return fmt.Errorf("%w: duration must not be negative", ErrInvalid)
	}
	if _, err := ParseDate(a.Date); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := ParseStart(a.Date, a.Time, time.UTC); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(date string) (time.Time, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD", date)
	}
	return d, nil
}

// ParseStart composes date + "T" + timeOfDay into an instant in loc.
func ParseStart(date, timeOfDay string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(DateLayout+"T"+layout, date+"T"+timeOfDay, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date/time %q %q is not YYYY-MM-DD HH:MM", date, timeOfDay)
}

// Start is when the appointment begins.
func (a *Appointment) Start(loc *time.Location) (time.Time, error) {
	return ParseStart(a.Date, a.Time, loc)
}

// End is derived from Start and Duration on every call. Displays must use it
// rather than keep their own copy.
func (a *Appointment) End(loc *time.Location) (time.Time, error) {
	start, err := a.Start(loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(a.Duration) * time.Minute), nil
}
