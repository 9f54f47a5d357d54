package consultation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// casRetries bounds the optimistic-concurrency retry loop. The imaging
// pipeline additionally serializes merges per consultation, so conflicts
// here come only from clinician actions racing the pipeline.
const casRetries = 5

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Start opens a new encounter for a patient. A patient may have at most one
// non-terminal consultation, so Start refuses while one is active.
func (s *Service) Start(ctx context.Context, c *Consultation) error {
	if c.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	active, err := s.repo.GetActiveByPatient(ctx, c.PatientID)
	if err != nil {
		return fmt.Errorf("check active consultation: %w", err)
	}
	if active != nil {
		return fmt.Errorf("%w: %s", ErrActiveExists, active.ID)
	}
	c.Status = StatusInProgress
	return s.repo.Create(ctx, c)
}

// StartForUpload creates the system-initiated placeholder consultation used
// when an X-ray upload arrives for a patient with no open encounter.
func (s *Service) StartForUpload(ctx context.Context, patientID uuid.UUID) (*Consultation, error) {
	name := SystemDoctorName
	c := &Consultation{
		PatientID:  patientID,
		DoctorName: &name,
		Status:     StatusInProgress,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create placeholder consultation: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.repo.GetByID(ctx, id)
}

// Active returns the patient's current non-terminal consultation, or nil.
func (s *Service) Active(ctx context.Context, patientID uuid.UUID) (*Consultation, error) {
	return s.repo.GetActiveByPatient(ctx, patientID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Consultation, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// SendToXRay records the clinician deferring the encounter to imaging.
func (s *Service) SendToXRay(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.transition(ctx, id, StatusWaitingXray)
}

// MarkXRayDone records imaging results received outside the automatic
// pipeline (clinician manually confirms).
func (s *Service) MarkXRayDone(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.transition(ctx, id, StatusXrayDone)
}

// Complete is invoked by the checkout/billing collaborator only; the imaging
// pipeline never completes a consultation itself.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.transition(ctx, id, StatusCompleted)
}

// Cancel is an explicit clinician action, legal from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.transition(ctx, id, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Consultation, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		c, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, ErrStaleConsultation
		}
		if c.Status.Terminal() {
			return nil, fmt.Errorf("%w: status is %s", ErrStaleConsultation, c.Status)
		}
		if !CanTransition(c.Status, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
		}

		c.Status = to
		if to == StatusCompleted && c.CompletedAt == nil {
			now := time.Now().UTC()
			c.CompletedAt = &now
		}

		ok, err := s.repo.UpdateCAS(ctx, c)
		if err != nil {
			return nil, err
		}
		if ok {
			return c, nil
		}
		// Lost the race; re-read and re-check the transition.
	}
	return nil, fmt.Errorf("transition to %s: too many concurrent updates", to)
}

// ImagingMerge is the partial update applied by an assignment. Nil fields
// are left untouched on the consultation; Images are appended, never
// replacing prior entries.
type ImagingMerge struct {
	Images      []AssignedImage
	Note        *string
	Radiologist *string
	StudyGUID   *string
	StudyDate   *time.Time
}

// MergeImaging appends the assignment's images into the consultation's
// X-ray result, applies the supplied result fields, and moves the status to
// xray-done. The read-merge-write is guarded by the repository's
// compare-and-swap so concurrent merges can never drop each other's images.
func (s *Service) MergeImaging(ctx context.Context, id uuid.UUID, merge ImagingMerge) (*Consultation, error) {
	// A failed CAS means another merge landed, so retrying cannot livelock;
	// the loop is bounded by context cancellation alone.
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, ErrStaleConsultation
		}
		if c.Status.Terminal() {
			return nil, fmt.Errorf("%w: status is %s", ErrStaleConsultation, c.Status)
		}

		c.XRayImages = append(c.XRayImages, merge.Images...)
		if merge.Note != nil {
			c.XRayNote = merge.Note
		}
		if merge.Radiologist != nil {
			c.XRayRadiologist = merge.Radiologist
		}
		if merge.StudyGUID != nil {
			c.XRayStudyGUID = merge.StudyGUID
		}
		if merge.StudyDate != nil {
			c.XRayStudyDate = merge.StudyDate
		}
		c.Status = StatusXrayDone

		ok, err := s.repo.UpdateCAS(ctx, c)
		if err != nil {
			return nil, err
		}
		if ok {
			return c, nil
		}
	}
}
