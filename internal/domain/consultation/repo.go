package consultation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	// GetByID returns nil, nil when the consultation does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	// GetActiveByPatient returns the newest non-terminal consultation for
	// the patient, or nil, nil when there is none.
	GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Consultation, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error)
	// UpdateCAS writes the full row iff the stored version_id still equals
	// c.VersionID, bumping the version on success. Returns false (and leaves
	// c untouched) when another writer got there first.
	UpdateCAS(ctx context.Context, c *Consultation) (bool, error)
}
