package patient

import "context"

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id string) error
	// List returns every patient whose "first last" name contains term,
	// ignoring case. An empty term matches all.
	List(ctx context.Context, term string) ([]*Patient, error)
	Count(ctx context.Context) (int, error)
}
