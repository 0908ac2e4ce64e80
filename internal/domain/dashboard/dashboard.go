// Package dashboard serves the clinic overview counters shown after login.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dentflow/clinic/internal/domain/scheduling"
)

// UpcomingDays is how far ahead "upcoming" reaches, counted from today.
const UpcomingDays = 7

// AppointmentLister lists appointments dated within an inclusive range.
type AppointmentLister interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]*scheduling.AppointmentView, error)
}

// PatientCounter reports how many patients are stored.
type PatientCounter interface {
	CountPatients(ctx context.Context) (int, error)
}

// Summary is the dashboard payload.
type Summary struct {
	TodayAppointments    int `json:"todayAppointments"`
	TotalPatients        int `json:"totalPatients"`
	UpcomingAppointments int `json:"upcomingAppointments"`
}

type Service struct {
	appointments AppointmentLister
	patients     PatientCounter
	loc          *time.Location
	now          func() time.Time
}

// NewService returns a Service that decides what "today" is in loc.
func NewService(appts AppointmentLister, patients PatientCounter, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{appointments: appts, patients: patients, loc: loc, now: time.Now}
}

// Summary counts today's appointments, all patients, and appointments dated
// after today but no later than UpcomingDays ahead.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	items, err := s.appointments.ListBetween(ctx, today, today.AddDate(0, 0, UpcomingDays))
	if err != nil {
		return nil, fmt.Errorf("dashboard appointments: %w", err)
	}
	total, err := s.patients.CountPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard patients: %w", err)
	}

	sum := &Summary{TotalPatients: total}
	todayKey := today.Format(scheduling.DateLayout)
	for _, a := range items {
		switch {
		case a.Date == todayKey:
			sum.TodayAppointments++
		case a.Date > todayKey:
			sum.UpcomingAppointments++
		}
	}
	return sum, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard", h.GetSummary)
}

func (h *Handler) GetSummary(c echo.Context) error {
	sum, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}
