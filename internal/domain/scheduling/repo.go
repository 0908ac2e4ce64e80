package scheduling

import (
	"context"
	"time"
)

// AppointmentRepository is the appointment store. Reads return views joined
// with the patient; writes take the raw appointment. Update and Delete return
// ErrNotFound when no row matched.
type AppointmentRepository interface {
	List(ctx context.Context) ([]*AppointmentView, error)
	GetByID(ctx context.Context, id string) (*AppointmentView, error)
	ListByPatient(ctx context.Context, patientID string) ([]*AppointmentView, error)
	// ListBetween returns appointments dated from..to inclusive, ordered by date and time.
	ListBetween(ctx context.Context, from, to time.Time) ([]*AppointmentView, error)
	Create(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id string) error
}
