package db

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
)

type boolRow struct {
	v   bool
	err error
}

func (r boolRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*bool) = r.v
	return nil
}

type fakeHealthDB struct {
	pingErr error
	row     boolRow
	schema  string
}

func (f *fakeHealthDB) Ping(context.Context) error { return f.pingErr }

func (f *fakeHealthDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.schema, _ = args[0].(string)
	return f.row
}

func TestCheckClinic(t *testing.T) {
	tests := []struct {
		name   string
		db     *fakeHealthDB
		code   int
		status string
		errMsg string
	}{
		{"ready", &fakeHealthDB{row: boolRow{v: true}}, http.StatusOK, "healthy", ""},
		{"schema missing", &fakeHealthDB{row: boolRow{v: false}}, http.StatusServiceUnavailable, "unhealthy", "clinic schema not provisioned"},
		{"ping fails", &fakeHealthDB{pingErr: errors.New("connection refused")}, http.StatusServiceUnavailable, "unhealthy", "connection refused"},
		{"lookup fails", &fakeHealthDB{row: boolRow{err: errors.New("permission denied")}}, http.StatusServiceUnavailable, "unhealthy", "permission denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, code := checkClinic(context.Background(), tt.db, "downtown")
			if code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, code)
			}
			if st.Status != tt.status || st.Error != tt.errMsg {
				t.Errorf("unexpected status %+v", st)
			}
			if st.Clinic != "downtown" || st.Schema != "clinic_downtown" {
				t.Errorf("expected clinic_downtown for downtown, got %+v", st)
			}
		})
	}
}

func TestCheckClinic_QueriesClinicSchema(t *testing.T) {
	d := &fakeHealthDB{row: boolRow{v: true}}
	checkClinic(context.Background(), d, "north")
	if d.schema != "clinic_north" {
		t.Errorf("expected lookup of clinic_north, got %q", d.schema)
	}
}
