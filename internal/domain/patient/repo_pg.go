package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentflow/clinic/internal/platform/db"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, first_name, last_name, email, phone_number, date_of_birth, medical_history`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var dob *time.Time
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PhoneNumber, &dob, &p.MedicalHistory); err != nil {
		return nil, err
	}
	if dob != nil {
		p.DateOfBirth = dob.Format(DateOfBirthLayout)
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (`+patientCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.FirstName, p.LastName, p.Email, p.PhoneNumber, p.birthDate(), p.MedicalHistory)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET first_name = $2, last_name = $3, email = $4, phone_number = $5,
			date_of_birth = $6, medical_history = $7, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Email, p.PhoneNumber, p.birthDate(), p.MedicalHistory)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the patient. Appointments referencing it go with it
// (ON DELETE CASCADE).
func (r *patientRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, term string) ([]*Patient, error) {
	sql := `SELECT ` + patientCols + ` FROM patients`
	var args []interface{}
	if term = strings.TrimSpace(term); term != "" {
		sql += ` WHERE (first_name || ' ' || last_name) ILIKE $1`
		args = append(args, "%"+escapeLike(term)+"%")
	}
	sql += ` ORDER BY last_name, first_name`

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patients := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *patientRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n)
	return n, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
