package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentflow/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const viewSelect = `SELECT a.id, a.patient_id, a.date, a.time, a.duration, a.type, a.notes,
	COALESCE(p.first_name, ''), COALESCE(p.last_name, '')
	FROM appointments a
	LEFT JOIN patients p ON p.id = a.patient_id`

func scanView(row pgx.Row) (*AppointmentView, error) {
	var v AppointmentView
	var date time.Time
	err := row.Scan(&v.ID, &v.PatientID, &date, &v.Time, &v.Duration, &v.Type, &v.Notes,
		&v.PatientFirstName, &v.PatientLastName)
	if err != nil {
		return nil, err
	}
	v.Date = date.Format(DateLayout)
	return &v, nil
}

func (r *appointmentRepoPG) queryViews(ctx context.Context, sql string, args ...interface{}) ([]*AppointmentView, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*AppointmentView{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) List(ctx context.Context) ([]*AppointmentView, error) {
	return r.queryViews(ctx, viewSelect)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id string) (*AppointmentView, error) {
	v, err := scanView(r.conn(ctx).QueryRow(ctx, viewSelect+` WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*AppointmentView, error) {
	return r.queryViews(ctx, viewSelect+` WHERE a.patient_id = $1`, patientID)
}

func (r *appointmentRepoPG) ListBetween(ctx context.Context, from, to time.Time) ([]*AppointmentView, error) {
	return r.queryViews(ctx, viewSelect+` WHERE a.date BETWEEN $1 AND $2 ORDER BY a.date, a.time`,
		from.Format(DateLayout), to.Format(DateLayout))
}

// foreignKeyViolation is the SQLSTATE for a patient_id with no patient row.
const foreignKeyViolation = "23503"

func writeErr(err error, a *Appointment) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: patient %s does not exist", ErrInvalid, a.PatientID)
	}
	return err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	date, err := ParseDate(a.Date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, date, time, duration, type, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.PatientID, date, a.Time, a.Duration, a.Type, a.Notes)
	return writeErr(err, a)
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	date, err := ParseDate(a.Date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET patient_id = $2, date = $3, time = $4, duration = $5,
			type = $6, notes = $7, updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.PatientID, date, a.Time, a.Duration, a.Type, a.Notes)
	if err != nil {
		return writeErr(err, a)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
