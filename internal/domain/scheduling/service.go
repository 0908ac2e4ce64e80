package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentflow/clinic/internal/platform/db"
	"github.com/dentflow/clinic/internal/platform/events"
)

// Service holds the appointment query and command paths. It performs no
// overlap detection: two bookings for the same slot both succeed, and
// concurrent updates to one appointment resolve to whichever commits last.
type Service struct {
	appointments AppointmentRepository
	publisher    events.Publisher
	now          func() time.Time
}

// NewService returns a Service. A nil publisher disables events.
func NewService(appt AppointmentRepository, pub events.Publisher) *Service {
	return &Service{appointments: appt, publisher: pub, now: time.Now}
}

// -- Queries --

func (s *Service) ListAppointments(ctx context.Context) ([]*AppointmentView, error) {
	items, err := s.appointments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return nonNil(items), nil
}

func (s *Service) GetAppointment(ctx context.Context, id string) (*AppointmentView, error) {
	v, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) ListAppointmentsForPatient(ctx context.Context, patientID string) ([]*AppointmentView, error) {
	items, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments for patient %s: %w", patientID, err)
	}
	return nonNil(items), nil
}

// ListBetween returns appointments dated within [from, to], both inclusive.
func (s *Service) ListBetween(ctx context.Context, from, to time.Time) ([]*AppointmentView, error) {
	items, err := s.appointments.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments between %s and %s: %w",
			from.Format(DateLayout), to.Format(DateLayout), err)
	}
	return nonNil(items), nil
}

// -- Commands --

// CreateAppointment stores a and returns it as read back from the store, so
// the result carries the patient name fields.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) (*AppointmentView, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	v, err := s.appointments.GetByID(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("read back appointment %s: %w", a.ID, err)
	}

	s.publish(ctx, events.KindCreated, v)
	return v, nil
}

// UpdateAppointment replaces the appointment stored under id. A body whose id
// differs from the path id is rejected before the store is touched.
func (s *Service) UpdateAppointment(ctx context.Context, id string, a *Appointment) error {
	if a.ID != id {
		return ErrIDMismatch
	}
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		return err
	}

	s.publish(ctx, events.KindUpdated, &AppointmentView{Appointment: *a})
	return nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id string) error {
	if err := s.appointments.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, events.KindDeleted, &AppointmentView{Appointment: Appointment{ID: id}})
	return nil
}

// publish notifies downstream consumers. Failures are logged and never undo
// or fail the command that already committed.
func (s *Service) publish(ctx context.Context, kind events.Kind, v *AppointmentView) {
	if s.publisher == nil {
		return
	}
	evt := NewEvent(kind, v, s.now())
	evt.ClinicID = db.ClinicFromContext(ctx)

	if err := s.publisher.Publish(ctx, evt); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("kind", string(kind)).
			Str("appointment_id", v.ID).
			Msg("publish appointment event")
	}
}

// NewEvent builds the event describing v.
func NewEvent(kind events.Kind, v *AppointmentView, at time.Time) events.AppointmentEvent {
	return events.AppointmentEvent{
		Kind:          kind,
		AppointmentID: v.ID,
		PatientID:     v.PatientID,
		PatientName:   v.PatientName(),
		Date:          v.Date,
		Time:          v.Time,
		Duration:      v.Duration,
		Type:          v.Type,
		OccurredAt:    at.UTC(),
	}
}

func nonNil(items []*AppointmentView) []*AppointmentView {
	if items == nil {
		return []*AppointmentView{}
	}
	return items
}
