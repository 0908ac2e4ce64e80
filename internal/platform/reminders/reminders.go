// Package reminders publishes a reminder event for every appointment dated
// tomorrow, on a cron schedule.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dentflow/clinic/internal/domain/scheduling"
	"github.com/dentflow/clinic/internal/platform/events"
)

// Lister lists appointments dated within an inclusive range.
type Lister interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]*scheduling.AppointmentView, error)
}

// ClinicRunner runs fn with ctx scoped to one clinic's schema.
type ClinicRunner func(ctx context.Context, clinicID string, fn func(ctx context.Context) error) error

type Config struct {
	Spec     string
	Clinics  []string
	Location *time.Location
}

type Scheduler struct {
	cron      *cron.Cron
	spec      string
	clinics   []string
	loc       *time.Location
	lister    Lister
	publisher events.Publisher
	inClinic  ClinicRunner
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
}

// New validates cfg.Spec (standard five-field cron), registers the reminder
// job and returns a stopped Scheduler.
func New(cfg Config, lister Lister, pub events.Publisher, inClinic ClinicRunner, logger zerolog.Logger) (*Scheduler, error) {
	if len(cfg.Clinics) == 0 {
		return nil, errors.New("reminders: at least one clinic is required")
	}
	if lister == nil || pub == nil || inClinic == nil {
		return nil, errors.New("reminders: lister, publisher and clinic runner are required")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		spec:      cfg.Spec,
		clinics:   cfg.Clinics,
		loc:       loc,
		lister:    lister,
		publisher: pub,
		inClinic:  inClinic,
		logger:    logger.With().Str("component", "reminders").Logger(),
		now:       time.Now,
	}
	// The job is registered exactly once here; Start and Stop only toggle
	// the cron loop.
	if _, err := s.cron.AddFunc(cfg.Spec, s.tick); err != nil {
		return nil, fmt.Errorf("reminders: invalid schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start runs the cron loop in its own goroutine. Starting a running
// Scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info().Str("schedule", s.spec).Strs("clinics", s.clinics).Msg("reminder job scheduled")
}

// Stop halts the cron loop and waits for a running job, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) tick() {
	ctx := s.logger.WithContext(context.Background())
	n, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("sent", n).Msg("reminder run failed")
		return
	}
	s.logger.Info().Int("sent", n).Msg("reminder run complete")
}

// RunOnce publishes a reminder for each appointment dated tomorrow in every
// configured clinic. It keeps going past a failing clinic and returns the
// number of reminders sent with the joined errors.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now().In(s.loc)
	tomorrow := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, s.loc)

	var sent int
	var errs []error
	for _, clinic := range s.clinics {
		err := s.inClinic(ctx, clinic, func(ctx context.Context) error {
			items, err := s.lister.ListBetween(ctx, tomorrow, tomorrow)
			if err != nil {
				return err
			}
			for _, a := range items {
				evt := scheduling.NewEvent(events.KindReminder, a, now)
				evt.ClinicID = clinic
				if err := s.publisher.Publish(ctx, evt); err != nil {
					return fmt.Errorf("appointment %s: %w", a.ID, err)
				}
				sent++
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("clinic %s: %w", clinic, err))
		}
	}
	return sent, errors.Join(errs...)
}
