package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dentflow/clinic/internal/platform/events"
)

// -- Mock Repository --

type mockPatient struct{ first, last string }

type mockAppointmentRepo struct {
	mu       sync.Mutex
	appts    map[string]*Appointment
	order    []string
	patients map[string]mockPatient
	writes   int
	commits  []string // notes in commit order
	err      error
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{
		appts:    make(map[string]*Appointment),
		patients: make(map[string]mockPatient),
	}
}

func (m *mockAppointmentRepo) view(a *Appointment) *AppointmentView {
	p := m.patients[a.PatientID]
	return &AppointmentView{Appointment: *a, PatientFirstName: p.first, PatientLastName: p.last}
}

func (m *mockAppointmentRepo) List(_ context.Context) ([]*AppointmentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*AppointmentView
	for _, id := range m.order {
		out = append(out, m.view(m.appts[id]))
	}
	return out, nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id string) (*AppointmentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.view(a), nil
}

func (m *mockAppointmentRepo) ListByPatient(_ context.Context, patientID string) ([]*AppointmentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*AppointmentView
	for _, id := range m.order {
		if a := m.appts[id]; a.PatientID == patientID {
			out = append(out, m.view(a))
		}
	}
	return out, nil
}

func (m *mockAppointmentRepo) ListBetween(_ context.Context, from, to time.Time) ([]*AppointmentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lo, hi := from.Format(DateLayout), to.Format(DateLayout)
	var out []*AppointmentView
	for _, id := range m.order {
		if a := m.appts[id]; a.Date >= lo && a.Date <= hi {
			out = append(out, m.view(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date+out[i].Time < out[j].Date+out[j].Time
	})
	return out, nil
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.err != nil {
		return m.err
	}
	if _, exists := m.appts[a.ID]; exists {
		return fmt.Errorf("duplicate key %s", a.ID)
	}
	cp := *a
	m.appts[a.ID] = &cp
	m.order = append(m.order, a.ID)
	return nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.err != nil {
		return m.err
	}
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.appts[a.ID] = &cp
	m.commits = append(m.commits, a.Notes)
	return nil
}

func (m *mockAppointmentRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if _, ok := m.appts[id]; !ok {
		return ErrNotFound
	}
	delete(m.appts, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func newTestService() (*Service, *mockAppointmentRepo, *events.Memory) {
	repo := newMockAppointmentRepo()
	repo.patients["jane"] = mockPatient{first: "Jane", last: "Doe"}
	pub := &events.Memory{}
	svc := NewService(repo, pub)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo, pub
}

func checkup() *Appointment {
	return &Appointment{PatientID: "jane", Date: "2024-06-10", Time: "09:00", Duration: 30, Type: "Checkup"}
}

// -- Queries --

func TestService_ListAppointments_Empty(t *testing.T) {
	svc, _, _ := newTestService()
	items, err := svc.ListAppointments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", items)
	}
}

func TestService_ListAppointments_Error(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.err = errors.New("connection refused")
	if _, err := svc.ListAppointments(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestService_GetAppointment_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.GetAppointment(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ListAppointmentsForPatient_Empty(t *testing.T) {
	svc, _, _ := newTestService()
	_, _ = svc.CreateAppointment(context.Background(), checkup())

	items, err := svc.ListAppointmentsForPatient(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", items)
	}

	items, _ = svc.ListAppointmentsForPatient(context.Background(), "jane")
	if len(items) != 1 {
		t.Errorf("expected 1 appointment for jane, got %d", len(items))
	}
}

func TestService_ListBetween(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for _, d := range []string{"2024-06-09", "2024-06-10", "2024-06-12", "2024-06-20"} {
		a := checkup()
		a.Date = d
		if _, err := svc.CreateAppointment(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	from := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	items, err := svc.ListBetween(ctx, from, from.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0].Date != "2024-06-10" || items[1].Date != "2024-06-12" {
		t.Errorf("unexpected range result: %+v", items)
	}
}

// -- Commands --

func TestService_CreateAppointment_JaneDoe(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	v, err := svc.CreateAppointment(ctx, checkup())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ID == "" {
		t.Fatal("expected generated id")
	}
	if v.PatientFirstName != "Jane" || v.PatientLastName != "Doe" {
		t.Errorf("expected read-back view with patient name, got %+v", v)
	}

	items, _ := svc.ListAppointments(ctx)
	if len(items) != 1 || items[0].PatientFirstName != "Jane" {
		t.Fatalf("expected one Jane appointment, got %+v", items)
	}
	end, err := items[0].End(time.UTC)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if got := end.Format("2006-01-02T15:04"); got != "2024-06-10T09:30" {
		t.Errorf("expected end 2024-06-10T09:30, got %s", got)
	}

	evts := pub.Events()
	if len(evts) != 1 || evts[0].Kind != events.KindCreated || evts[0].PatientName != "Jane Doe" {
		t.Errorf("expected created event, got %+v", evts)
	}
}

func TestService_CreateAppointment_RoundTripsFields(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	in := &Appointment{ID: "fixed-id", PatientID: "jane", Date: "2024-06-11", Time: "14:15", Duration: 45, Type: "Filling", Notes: "upper left"}

	if _, err := svc.CreateAppointment(ctx, in); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.GetAppointment(ctx, "fixed-id")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Appointment != *in {
		t.Errorf("expected %+v, got %+v", *in, got.Appointment)
	}
}

func TestService_CreateAppointment_MissingPatientLink(t *testing.T) {
	svc, _, _ := newTestService()
	a := checkup()
	a.PatientID = "ghost"

	v, err := svc.CreateAppointment(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.PatientFirstName != "" || v.PatientLastName != "" {
		t.Errorf("expected empty patient names, got %+v", v)
	}
}

func TestService_CreateAppointment_Invalid(t *testing.T) {
	svc, repo, _ := newTestService()
	a := checkup()
	a.Date = ""

	if _, err := svc.CreateAppointment(context.Background(), a); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if repo.writes != 0 {
		t.Error("invalid appointment must not reach the store")
	}
}

func TestService_CreateAppointment_NoOverlapDetection(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateAppointment(ctx, checkup())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("expected both bookings to succeed, got %v", err)
		}
	}

	items, _ := svc.ListAppointments(ctx)
	if len(items) != 2 {
		t.Errorf("expected duplicate bookings to both persist, got %d", len(items))
	}
}

func TestService_UpdateAppointment_IDMismatch(t *testing.T) {
	svc, repo, _ := newTestService()
	v, _ := svc.CreateAppointment(context.Background(), checkup())
	writes := repo.writes

	for _, bodyID := range []string{"other", ""} {
		a := v.Appointment
		a.ID = bodyID
		if err := svc.UpdateAppointment(context.Background(), v.ID, &a); !errors.Is(err, ErrIDMismatch) {
			t.Errorf("body id %q: expected ErrIDMismatch, got %v", bodyID, err)
		}
	}
	if repo.writes != writes {
		t.Error("mismatch must fail before touching storage")
	}
}

func TestService_UpdateAppointment_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	a := checkup()
	a.ID = "gone"
	if err := svc.UpdateAppointment(context.Background(), "gone", a); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_UpdateAppointment_FatalError(t *testing.T) {
	svc, repo, _ := newTestService()
	v, _ := svc.CreateAppointment(context.Background(), checkup())
	repo.err = errors.New("disk full")

	a := v.Appointment
	err := svc.UpdateAppointment(context.Background(), v.ID, &a)
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalid) {
		t.Errorf("expected unclassified error, got %v", err)
	}
}

func TestService_UpdateAppointment_DurationMovesEnd(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()
	v, _ := svc.CreateAppointment(ctx, checkup())

	a := v.Appointment
	a.Duration = 60
	if err := svc.UpdateAppointment(ctx, v.ID, &a); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := svc.GetAppointment(ctx, v.ID)
	end, _ := got.End(time.UTC)
	if end.Format("15:04") != "10:00" {
		t.Errorf("expected end 10:00 after duration change, got %s", end.Format("15:04"))
	}
	if evts := pub.Events(); evts[len(evts)-1].Kind != events.KindUpdated {
		t.Errorf("expected updated event, got %+v", evts)
	}
}

func TestService_UpdateAppointment_LastWriteWins(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	v, _ := svc.CreateAppointment(ctx, checkup())

	var wg sync.WaitGroup
	for _, notes := range []string{"from client A", "from client B"} {
		wg.Add(1)
		go func(notes string) {
			defer wg.Done()
			a := v.Appointment
			a.Notes = notes
			if err := svc.UpdateAppointment(ctx, v.ID, &a); err != nil {
				t.Errorf("update %q: %v", notes, err)
			}
		}(notes)
	}
	wg.Wait()

	if len(repo.commits) != 2 {
		t.Fatalf("expected two committed writes, got %d", len(repo.commits))
	}
	got, _ := svc.GetAppointment(ctx, v.ID)
	if last := repo.commits[1]; got.Notes != last {
		t.Errorf("expected last committed notes %q, got %q", last, got.Notes)
	}
}

func TestService_DeleteAppointment(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()
	v, _ := svc.CreateAppointment(ctx, checkup())

	if err := svc.DeleteAppointment(ctx, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetAppointment(ctx, v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.DeleteAppointment(ctx, v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	evts := pub.Events()
	if last := evts[len(evts)-1]; last.Kind != events.KindDeleted || last.AppointmentID != v.ID {
		t.Errorf("expected deleted event, got %+v", last)
	}
}

func TestService_PublishFailureDoesNotFailCommand(t *testing.T) {
	svc, _, pub := newTestService()
	pub.Err = errors.New("broker unavailable")

	if _, err := svc.CreateAppointment(context.Background(), checkup()); err != nil {
		t.Fatalf("expected create to succeed despite publish failure, got %v", err)
	}
}

func TestService_NilPublisher(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := NewService(repo, nil)
	if _, err := svc.CreateAppointment(context.Background(), checkup()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
