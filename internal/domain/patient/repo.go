package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetByCode returns nil, nil when no patient carries the code.
	GetByCode(ctx context.Context, code string) (*Patient, error)
	// SearchByName matches case-insensitively on a substring of full_name,
	// most recently created first.
	SearchByName(ctx context.Context, pattern string, limit, offset int) ([]*Patient, int, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
}
