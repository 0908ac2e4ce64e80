package scheduling

import (
	"errors"
	"testing"
	"time"
)

func TestParseStart(t *testing.T) {
	tests := []struct {
		date, tod string
		want      time.Time
		wantErr   bool
	}{
		{"2024-06-10", "09:00", time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), false},
		{"2024-06-10", "09:00:30", time.Date(2024, 6, 10, 9, 0, 30, 0, time.UTC), false},
		{"2024-06-10", "9am", time.Time{}, true},
		{"10/06/2024", "09:00", time.Time{}, true},
		{"2024-06-10", "", time.Time{}, true},
	}

	for _, tt := range tests {
		got, err := ParseStart(tt.date, tt.tod, time.UTC)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStart(%q, %q) error = %v, wantErr %v", tt.date, tt.tod, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("ParseStart(%q, %q) = %s, want %s", tt.date, tt.tod, got, tt.want)
		}
	}
}

func TestParseStart_Location(t *testing.T) {
	loc := time.FixedZone("clinic", 2*60*60)
	got, err := ParseStart("2024-06-10", "09:00", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UTC().Hour() != 7 {
		t.Errorf("expected 07:00 UTC, got %s", got.UTC())
	}
}

func TestAppointment_End(t *testing.T) {
	a := Appointment{Date: "2024-06-10", Time: "09:00", Duration: 30}

	end, err := a.End(time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("expected %s, got %s", want, end)
	}

	// Changing only the duration moves the end; nothing else is cached.
	a.Duration = 45
	end, _ = a.End(time.UTC)
	if want := time.Date(2024, 6, 10, 9, 45, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("expected %s after duration change, got %s", want, end)
	}
}

func TestAppointment_EndCrossesMidnight(t *testing.T) {
	a := Appointment{Date: "2024-06-10", Time: "23:30", Duration: 60}
	end, err := a.End(time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 6, 11, 0, 30, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("expected %s, got %s", want, end)
	}
}

func TestAppointment_Validate(t *testing.T) {
	valid := Appointment{PatientID: "p1", Date: "2024-06-10", Time: "09:00", Duration: 30, Type: "Checkup"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid appointment, got %v", err)
	}

	tests := map[string]func(a *Appointment){
		"missing patient":   func(a *Appointment) { a.PatientID = "" },
		"blank patient":     func(a *Appointment) { a.PatientID = "  " },
		"missing date":      func(a *Appointment) { a.Date = "" },
		"missing time":      func(a *Appointment) { a.Time = "" },
		"bad date":          func(a *Appointment) { a.Date = "2024-13-01" },
		"bad time":          func(a *Appointment) { a.Time = "25:00" },
		"negative duration": func(a *Appointment) { a.Duration = -15 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			a := valid
			mutate(&a)
			if err := a.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestAppointment_ValidateAllowsUnusualDurations(t *testing.T) {
	for _, d := range []int{0, 5, 90, 240} {
		a := Appointment{PatientID: "p1", Date: "2024-06-10", Time: "09:00", Duration: d}
		if err := a.Validate(); err != nil {
			t.Errorf("duration %d: unexpected error %v", d, err)
		}
	}
}

func TestAppointmentView_PatientName(t *testing.T) {
	v := AppointmentView{PatientFirstName: "Jane", PatientLastName: "Doe"}
	if got := v.PatientName(); got != "Jane Doe" {
		t.Errorf("expected Jane Doe, got %q", got)
	}
	v = AppointmentView{}
	if got := v.PatientName(); got != "" {
		t.Errorf("expected empty name, got %q", got)
	}
}
