package imaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dentalos/dentalos/internal/domain/consultation"
)

// ConsultationStore is the slice of the consultation service the pipeline
// depends on.
type ConsultationStore interface {
	Active(ctx context.Context, patientID uuid.UUID) (*consultation.Consultation, error)
	StartForUpload(ctx context.Context, patientID uuid.UUID) (*consultation.Consultation, error)
	Get(ctx context.Context, id uuid.UUID) (*consultation.Consultation, error)
	MergeImaging(ctx context.Context, id uuid.UUID, merge consultation.ImagingMerge) (*consultation.Consultation, error)
}

// Resolver finds the merge target for a matched patient: the newest
// non-terminal consultation, or a fresh system-created placeholder when the
// patient has no open encounter. Terminal consultations are never returned.
type Resolver struct {
	consultations ConsultationStore
}

func NewResolver(consultations ConsultationStore) *Resolver {
	return &Resolver{consultations: consultations}
}

func (r *Resolver) Resolve(ctx context.Context, patientID uuid.UUID) (*consultation.Consultation, error) {
	active, err := r.consultations.Active(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("look up active consultation: %w", err)
	}
	if active != nil {
		return active, nil
	}
	return r.consultations.StartForUpload(ctx, patientID)
}
