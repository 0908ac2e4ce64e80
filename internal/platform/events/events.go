// Package events publishes appointment lifecycle notifications for
// downstream consumers such as reminder mailers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Kind string

const (
	KindCreated  Kind = "appointment.created"
	KindUpdated  Kind = "appointment.updated"
	KindDeleted  Kind = "appointment.deleted"
	KindReminder Kind = "appointment.reminder"
)

// AppointmentEvent describes something that happened to one appointment.
type AppointmentEvent struct {
	Kind          Kind      `json:"kind"`
	ClinicID      string    `json:"clinicId,omitempty"`
	AppointmentID string    `json:"appointmentId"`
	PatientID     string    `json:"patientId,omitempty"`
	PatientName   string    `json:"patientName,omitempty"`
	Date          string    `json:"date,omitempty"`
	Time          string    `json:"time,omitempty"`
	Duration      int       `json:"duration,omitempty"`
	Type          string    `json:"type,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher delivers appointment events.
type Publisher interface {
	Publish(ctx context.Context, evt AppointmentEvent) error
	Close() error
}

// LogPublisher writes events to the log instead of a broker. It is used when
// no Kafka brokers are configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, evt AppointmentEvent) error {
	p.logger.Info().
		Str("kind", string(evt.Kind)).
		Str("clinic_id", evt.ClinicID).
		Str("appointment_id", evt.AppointmentID).
		Str("patient_id", evt.PatientID).
		Str("date", evt.Date).
		Str("time", evt.Time).
		Msg("appointment event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Memory keeps published events in memory.
type Memory struct {
	mu     sync.Mutex
	events []AppointmentEvent
	Err    error
}

func (m *Memory) Publish(_ context.Context, evt AppointmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, evt)
	return nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *Memory) Events() []AppointmentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AppointmentEvent, len(m.events))
	copy(out, m.events)
	return out
}
