//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/dentflow/clinic/internal/domain/patient"
)

func TestPatientCRUD(t *testing.T) {
	ctx := context.Background()
	clinicID := uniqueClinicID("pat")
	createClinic(t, ctx, clinicID)

	repo := patient.NewRepoPG(globalDB.Pool)

	t.Run("Create_WithOptionalFields", func(t *testing.T) {
		p := &patient.Patient{
			ID:             "p-full",
			FirstName:      "Jane",
			LastName:       "Doe",
			Email:          "jane@example.com",
			PhoneNumber:    "555-0100",
			DateOfBirth:    "1990-04-01",
			MedicalHistory: "penicillin allergy",
		}
		inClinic(t, ctx, clinicID, func(ctx context.Context) error {
			if err := repo.Create(ctx, p); err != nil {
				return err
			}
			got, err := repo.GetByID(ctx, p.ID)
			if err != nil {
				return err
			}
			if *got != *p {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, p)
			}
			return nil
		})
	})

	t.Run("Create_NoBirthDate", func(t *testing.T) {
		p := createTestPatient(t, ctx, clinicID, "No", "Birthday")
		inClinic(t, ctx, clinicID, func(ctx context.Context) error {
			got, err := repo.GetByID(ctx, p.ID)
			if err != nil {
				return err
			}
			if got.DateOfBirth != "" {
				t.Errorf("expected empty date of birth, got %q", got.DateOfBirth)
			}
			return nil
		})
	})

	t.Run("Update", func(t *testing.T) {
		p := createTestPatient(t, ctx, clinicID, "Mary", "Major")
		p.PhoneNumber = "555-0199"
		inClinic(t, ctx, clinicID, func(ctx context.Context) error {
			if err := repo.Update(ctx, p); err != nil {
				return err
			}
			got, err := repo.GetByID(ctx, p.ID)
			if err != nil {
				return err
			}
			if got.PhoneNumber != "555-0199" {
				t.Errorf("expected updated phone, got %q", got.PhoneNumber)
			}
			return nil
		})
	})

	t.Run("NotFound", func(t *testing.T) {
		inClinic(t, ctx, clinicID, func(ctx context.Context) error {
			if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, patient.ErrNotFound) {
				t.Errorf("GetByID: expected ErrNotFound, got %v", err)
			}
			if err := repo.Update(ctx, &patient.Patient{ID: "missing", FirstName: "A", LastName: "B"}); !errors.Is(err, patient.ErrNotFound) {
				t.Errorf("Update: expected ErrNotFound, got %v", err)
			}
			if err := repo.Delete(ctx, "missing"); !errors.Is(err, patient.ErrNotFound) {
				t.Errorf("Delete: expected ErrNotFound, got %v", err)
			}
			return nil
		})
	})
}

func TestPatientSearch(t *testing.T) {
	ctx := context.Background()
	clinicID := uniqueClinicID("search")
	createClinic(t, ctx, clinicID)

	createTestPatient(t, ctx, clinicID, "Jane", "Doe")
	createTestPatient(t, ctx, clinicID, "John", "Doe")
	createTestPatient(t, ctx, clinicID, "Ann", "Percent_Smith")

	repo := patient.NewRepoPG(globalDB.Pool)
	inClinic(t, ctx, clinicID, func(ctx context.Context) error {
		for term, want := range map[string]int{
			"":         3,
			"doe":      2,
			"JANE DOE": 1,
			"e d":      1,
			"_":        1,
			"%":        0,
			"nobody":   0,
		} {
			got, err := repo.List(ctx, term)
			if err != nil {
				return err
			}
			if len(got) != want {
				t.Errorf("List(%q): expected %d, got %d", term, want, len(got))
			}
		}

		all, err := repo.List(ctx, "")
		if err != nil {
			return err
		}
		if all[0].LastName != "Doe" || all[0].FirstName != "Jane" {
			t.Errorf("expected ordering by last then first name, got %s %s first", all[0].FirstName, all[0].LastName)
		}

		n, err := repo.Count(ctx)
		if err != nil {
			return err
		}
		if n != 3 {
			t.Errorf("expected count 3, got %d", n)
		}
		return nil
	})
}
