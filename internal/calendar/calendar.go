// Package calendar is the client side of appointment booking. A Calendar
// holds a transient copy of the server's appointment list, turns it into
// time-boxed events, and drives the create/edit form through submission.
// Its copy is never patched: every successful write discards it and loads
// the list again.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dentflow/clinic/internal/domain/scheduling"
	"github.com/dentflow/clinic/internal/platform/auth"
)

var (
	ErrNotPermitted = errors.New("calendar: session may not schedule appointments")
	ErrNoForm       = errors.New("calendar: no open form")
	ErrFormBusy     = errors.New("calendar: form is submitting")
)

// DefaultDuration prefills new appointment forms, in minutes.
const DefaultDuration = 30

// Source is where the calendar reads and writes appointments.
type Source interface {
	ListAppointments(ctx context.Context) ([]*scheduling.AppointmentView, error)
	CreateAppointment(ctx context.Context, a *scheduling.Appointment) (*scheduling.AppointmentView, error)
	UpdateAppointment(ctx context.Context, a *scheduling.Appointment) error
	DeleteAppointment(ctx context.Context, id string) error
}

type FormMode int

const (
	ModeCreate FormMode = iota + 1
	ModeEdit
)

func (m FormMode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeEdit:
		return "edit"
	}
	return "unknown"
}

type FormState int

const (
	FormClosed FormState = iota
	FormOpen
	FormSubmitting
)

func (s FormState) String() string {
	switch s {
	case FormOpen:
		return "open"
	case FormSubmitting:
		return "submitting"
	}
	return "closed"
}

// Form is the appointment form. Err holds the last submit failure and is
// cleared on the next submit.
type Form struct {
	Mode        FormMode
	State       FormState
	Appointment scheduling.Appointment
	Err         error
}

// Event is one box on the calendar grid.
type Event struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
}

// Detail is the read-only view of one appointment.
type Detail struct {
	AppointmentID string
	PatientID     string
	PatientName   string
	Start         time.Time
	End           time.Time
	Duration      int
	Type          string
	Notes         string
	// Err is the last delete failure.
	Err error
}

type Calendar struct {
	src  Source
	sess *auth.Session
	loc  *time.Location

	mu      sync.Mutex
	items   []*scheduling.AppointmentView
	loadErr error
	form    Form
	detail  *Detail
}

// New returns an empty Calendar acting as sess. Call Load before reading.
func New(src Source, sess *auth.Session, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{src: src, sess: sess, loc: loc}
}

// Load replaces the in-memory list with the server's. On failure the list is
// emptied and the error kept for Retry.
func (c *Calendar) Load(ctx context.Context) error {
	items, err := c.src.ListAppointments(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.items = nil
		c.loadErr = fmt.Errorf("load appointments: %w", err)
		return c.loadErr
	}
	c.items = items
	c.loadErr = nil
	return nil
}

// LoadErr is the last read failure, nil after a successful load.
func (c *Calendar) LoadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Retry loads again if the last load failed. It does nothing otherwise.
func (c *Calendar) Retry(ctx context.Context) error {
	if c.LoadErr() == nil {
		return nil
	}
	return c.Load(ctx)
}

func (c *Calendar) invalidate() {
	c.items = nil
}

// Appointments returns the loaded list.
func (c *Calendar) Appointments() []scheduling.AppointmentView {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]scheduling.AppointmentView, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, *v)
	}
	return out
}

// Events derives the grid boxes from the loaded list. Rows whose date or
// time cannot be parsed are left off the grid.
func (c *Calendar) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := make([]Event, 0, len(c.items))
	for _, v := range c.items {
		start, end, err := c.span(&v.Appointment)
		if err != nil {
			continue
		}
		events = append(events, Event{
			ID:    v.ID,
			Title: "Patient Appointment: " + v.Type,
			Start: start,
			End:   end,
		})
	}
	return events
}

// span is the one place start and end are derived for both the grid and
// the detail view.
func (c *Calendar) span(a *scheduling.Appointment) (start, end time.Time, err error) {
	start, err = a.Start(c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = a.End(c.loc)
	return start, end, err
}

func (c *Calendar) find(id string) (*scheduling.AppointmentView, error) {
	for _, v := range c.items {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, fmt.Errorf("appointment %s: %w", id, scheduling.ErrNotFound)
}

// SelectSlot opens a create form prefilled with the slot's date and time.
func (c *Calendar) SelectSlot(start time.Time) (Form, error) {
	if !c.sess.CanSchedule() {
		return Form{}, ErrNotPermitted
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.form.State == FormSubmitting {
		return c.form, ErrFormBusy
	}
	start = start.In(c.loc)
	c.form = Form{
		Mode:  ModeCreate,
		State: FormOpen,
		Appointment: scheduling.Appointment{
			Date:     start.Format(scheduling.DateLayout),
			Time:     start.Format("15:04"),
			Duration: DefaultDuration,
		},
	}
	return c.form, nil
}

// SelectEvent opens the detail view for one loaded appointment.
func (c *Calendar) SelectEvent(id string) (Detail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.find(id)
	if err != nil {
		return Detail{}, err
	}
	start, end, err := c.span(&v.Appointment)
	if err != nil {
		return Detail{}, err
	}
	c.detail = &Detail{
		AppointmentID: v.ID,
		PatientID:     v.PatientID,
		PatientName:   v.PatientName(),
		Start:         start,
		End:           end,
		Duration:      v.Duration,
		Type:          v.Type,
		Notes:         v.Notes,
	}
	return *c.detail, nil
}

// EditEvent opens an edit form prefilled from a loaded appointment.
func (c *Calendar) EditEvent(id string) (Form, error) {
	if !c.sess.CanSchedule() {
		return Form{}, ErrNotPermitted
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.form.State == FormSubmitting {
		return c.form, ErrFormBusy
	}
	v, err := c.find(id)
	if err != nil {
		return Form{}, err
	}
	c.form = Form{Mode: ModeEdit, State: FormOpen, Appointment: v.Appointment}
	return c.form, nil
}

// Form returns the current form.
func (c *Calendar) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// Detail returns the open detail view, if any.
func (c *Calendar) Detail() (Detail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detail == nil {
		return Detail{}, false
	}
	return *c.detail, true
}

// Edit changes the open form's fields.
func (c *Calendar) Edit(fn func(a *scheduling.Appointment)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.form.State {
	case FormClosed:
		return ErrNoForm
	case FormSubmitting:
		return ErrFormBusy
	}
	fn(&c.form.Appointment)
	return nil
}

// CloseForm abandons the open form.
func (c *Calendar) CloseForm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.form.State == FormOpen {
		c.form = Form{}
	}
}

// CloseDetail dismisses the detail view.
func (c *Calendar) CloseDetail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detail = nil
}

// Submit sends the open form. On failure the form goes back to open with
// Err set and its fields untouched. On success the form closes, the list is
// discarded and loaded again; a failed reload is reported by LoadErr, not
// by Submit.
func (c *Calendar) Submit(ctx context.Context) error {
	c.mu.Lock()
	switch c.form.State {
	case FormClosed:
		c.mu.Unlock()
		return ErrNoForm
	case FormSubmitting:
		c.mu.Unlock()
		return ErrFormBusy
	}
	c.form.State = FormSubmitting
	c.form.Err = nil
	mode := c.form.Mode
	a := c.form.Appointment
	c.mu.Unlock()

	var err error
	if mode == ModeEdit {
		err = c.src.UpdateAppointment(ctx, &a)
	} else {
		_, err = c.src.CreateAppointment(ctx, &a)
	}

	c.mu.Lock()
	if err != nil {
		c.form.State = FormOpen
		c.form.Err = err
		c.mu.Unlock()
		return err
	}
	c.form = Form{}
	c.invalidate()
	c.mu.Unlock()

	_ = c.Load(ctx)
	return nil
}

// Delete removes an appointment and loads the list again. A failure is kept
// on the open detail view for that appointment.
func (c *Calendar) Delete(ctx context.Context, id string) error {
	if err := c.src.DeleteAppointment(ctx, id); err != nil {
		c.mu.Lock()
		if c.detail != nil && c.detail.AppointmentID == id {
			c.detail.Err = err
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.detail != nil && c.detail.AppointmentID == id {
		c.detail = nil
	}
	c.invalidate()
	c.mu.Unlock()

	_ = c.Load(ctx)
	return nil
}
