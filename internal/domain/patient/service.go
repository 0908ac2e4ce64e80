package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

func (s *Service) ListPatients(ctx context.Context, term string) ([]*Patient, error) {
	items, err := s.patients.List(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	if items == nil {
		items = []*Patient{}
	}
	return items, nil
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// CountPatients returns the number of stored patients.
func (s *Service) CountPatients(ctx context.Context) (int, error) {
	n, err := s.patients.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return n, nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (s *Service) UpdatePatient(ctx context.Context, id string, p *Patient) error {
	if p.ID != id {
		return ErrIDMismatch
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return s.patients.Update(ctx, p)
}

// DeletePatient removes the patient together with its appointments.
func (s *Service) DeletePatient(ctx context.Context, id string) error {
	return s.patients.Delete(ctx, id)
}
