package imaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentalos/dentalos/internal/domain/consultation"
	"github.com/dentalos/dentalos/internal/domain/patient"
	"github.com/dentalos/dentalos/internal/platform/notification"
)

// Notifier is the fire-and-forget operator notification channel.
type Notifier interface {
	Notify(evt notification.Event)
}

// PatientStore extends the matcher's read surface with the by-id lookup the
// manual assignment path needs.
type PatientStore interface {
	PatientDirectory
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Service wires the pipeline together: studies come in from source adapters
// or the push endpoint, get matched and resolved, and either land on a
// consultation via the assigner or wait in the queue for an operator.
type Service struct {
	queue    *Queue
	matcher  *Matcher
	resolver *Resolver
	assigner *Assigner
	patients PatientStore
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(queue *Queue, matcher *Matcher, resolver *Resolver, assigner *Assigner, patients PatientStore, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		queue:    queue,
		matcher:  matcher,
		resolver: resolver,
		assigner: assigner,
		patients: patients,
		notifier: notifier,
		logger:   logger,
	}
}

// IngestResult reports what happened to an ingested study.
type IngestResult struct {
	Assigned     bool                       `json:"assigned"`
	StudyID      uuid.UUID                  `json:"study_id,omitempty"`
	Consultation *consultation.Consultation `json:"consultation,omitempty"`
}

// IngestStudy runs the automatic path for a normalized study: match the
// identity hints, resolve the target consultation, assign. A study that
// cannot be matched, or whose assignment fails, is parked in the queue
// for manual handling; ingestion itself never errors.
func (s *Service) IngestStudy(ctx context.Context, study IncomingStudy) (*IngestResult, error) {
	matched, err := s.matcher.Match(ctx, study.Info.Patient)
	if err != nil {
		s.logger.Error().Err(err).Str("study_guid", study.StudyGUID).Msg("matcher lookup failed, queueing study")
	}
	if matched == nil {
		return s.park(study, "no patient match"), nil
	}

	target, err := s.resolver.Resolve(ctx, matched.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("patient_code", matched.PatientCode).Msg("resolve failed, queueing study")
		return s.park(study, "consultation resolution failed"), nil
	}

	cons, err := s.assignStudy(ctx, target.ID, study, "device:"+study.StudyGUID)
	if err != nil {
		s.logger.Error().Err(err).Str("study_guid", study.StudyGUID).Msg("auto-assignment failed, queueing study")
		s.notifier.Notify(notification.Event{
			Kind:    notification.KindAssignmentFailed,
			Subject: study.StudyGUID,
			Fields:  map[string]string{"error": err.Error()},
		})
		return s.park(study, "assignment failed"), nil
	}

	s.logger.Info().
		Str("study_guid", study.StudyGUID).
		Str("patient_code", matched.PatientCode).
		Str("consultation_id", cons.ID.String()).
		Msg("study auto-assigned")
	return &IngestResult{Assigned: true, Consultation: cons}, nil
}

func (s *Service) park(study IncomingStudy, reason string) *IngestResult {
	id, added := s.queue.EnqueueStudy(study)
	if added {
		s.notifier.Notify(notification.Event{
			Kind:    notification.KindUnmatchedStudy,
			Subject: study.StudyGUID,
			Fields: map[string]string{
				"reason":       reason,
				"patient_hint": study.Info.Patient.FullName,
			},
		})
	}
	return &IngestResult{Assigned: false, StudyID: id}
}

// IngestImage parks a loose image; single files carry no identity hints,
// so they always wait for manual assignment.
func (s *Service) IngestImage(ctx context.Context, img IncomingImage) {
	if s.queue.EnqueueImage(img) {
		s.notifier.Notify(notification.Event{
			Kind:    notification.KindUnmatchedImage,
			Subject: img.Filename,
		})
	}
}

// UnassignedImages lists queued loose images in arrival order.
func (s *Service) UnassignedImages() []IncomingImage { return s.queue.Images() }

// UnassignedStudies lists queued studies in arrival order.
func (s *Service) UnassignedStudies() []IncomingStudy { return s.queue.Studies() }

// AssignTarget identifies where a manual assignment should land. Exactly
// one of PatientID/PatientCode is required; ConsultationID optionally pins
// a specific consultation instead of resolving the patient's active one.
type AssignTarget struct {
	PatientID      *uuid.UUID `json:"patient_id,omitempty"`
	PatientCode    string     `json:"patient_code,omitempty"`
	ConsultationID *uuid.UUID `json:"consultation_id,omitempty"`
}

func (s *Service) resolveTarget(ctx context.Context, target AssignTarget) (uuid.UUID, error) {
	if target.ConsultationID != nil {
		return *target.ConsultationID, nil
	}

	var p *patient.Patient
	var err error
	switch {
	case target.PatientID != nil:
		p, err = s.patients.GetPatient(ctx, *target.PatientID)
	case target.PatientCode != "":
		p, err = s.patients.FindByCode(ctx, target.PatientCode)
	default:
		return uuid.Nil, fmt.Errorf("%w: patient_id or patient_code required", ErrNoPatient)
	}
	if err != nil {
		return uuid.Nil, err
	}
	if p == nil {
		return uuid.Nil, ErrNoPatient
	}

	cons, err := s.resolver.Resolve(ctx, p.ID)
	if err != nil {
		return uuid.Nil, err
	}
	return cons.ID, nil
}

// AssignStudy is the manual path: the operator claims a queued study and
// points it at a patient (or a specific consultation). The claim is
// exactly-once; on any downstream failure the study is returned to the
// queue so the operator can retry without data loss.
func (s *Service) AssignStudy(ctx context.Context, studyID uuid.UUID, target AssignTarget, actor string) (*consultation.Consultation, error) {
	study, err := s.queue.RemoveStudy(studyID)
	if err != nil {
		return nil, err
	}

	consultationID, err := s.resolveTarget(ctx, target)
	if err != nil {
		s.queue.EnqueueStudy(study)
		return nil, err
	}

	cons, err := s.assignStudy(ctx, consultationID, study, actor)
	if err != nil {
		s.queue.EnqueueStudy(study)
		return nil, err
	}
	return cons, nil
}

func (s *Service) assignStudy(ctx context.Context, consultationID uuid.UUID, study IncomingStudy, actor string) (*consultation.Consultation, error) {
	meta := ResultMeta{StudyDate: study.Info.StudyDate}
	if study.StudyGUID != "" {
		guid := study.StudyGUID
		meta.StudyGUID = &guid
	}

	cons, err := s.assigner.Assign(ctx, consultationID, studyFiles(study), meta, actor)
	if err != nil {
		return nil, err
	}

	// The per-image source files are gone; drop the folder too if the
	// assignment emptied it.
	if study.StudyFolderPath != "" {
		if err := removeSource(study.StudyFolderPath); err != nil && !os.IsNotExist(err) {
			s.logger.Debug().Err(err).Str("path", study.StudyFolderPath).Msg("study folder not removed")
		}
	}
	return cons, nil
}

// studyFiles converts a study's image refs into openable payloads. Studies
// pushed without a retrieval handle produce a metadata-only assignment.
func studyFiles(study IncomingStudy) []ImageFile {
	if study.StudyFolderPath == "" {
		return nil
	}
	files := make([]ImageFile, 0, len(study.Info.Images))
	for _, ref := range study.Info.Images {
		if ref.Filename == "" {
			continue
		}
		path := filepath.Join(study.StudyFolderPath, ref.Filename)
		files = append(files, ImageFile{
			Filename:   ref.Filename,
			Type:       ref.Type,
			GUID:       ref.GUID,
			CapturedAt: study.Info.StudyDate,
			SourcePath: path,
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		})
	}
	return files
}

// AssignImage claims a queued loose image for a patient or consultation.
func (s *Service) AssignImage(ctx context.Context, filename string, target AssignTarget, actor string) (*consultation.Consultation, error) {
	img, err := s.queue.RemoveImage(filename)
	if err != nil {
		return nil, err
	}

	consultationID, err := s.resolveTarget(ctx, target)
	if err != nil {
		s.queue.EnqueueImage(img)
		return nil, err
	}

	file := ImageFile{
		Filename:   img.Filename,
		SourcePath: img.FilePath,
		Open: func() (io.ReadCloser, error) {
			return os.Open(img.FilePath)
		},
	}
	cons, err := s.assigner.Assign(ctx, consultationID, []ImageFile{file}, ResultMeta{}, actor)
	if err != nil {
		s.queue.EnqueueImage(img)
		return nil, err
	}
	return cons, nil
}

// Upload is the direct manual path: a clinician attaches files to a known
// consultation, bypassing the queue entirely.
func (s *Service) Upload(ctx context.Context, consultationID uuid.UUID, files []ImageFile, meta ResultMeta, actor string) (*consultation.Consultation, error) {
	return s.assigner.Assign(ctx, consultationID, files, meta, actor)
}

// DiscardStudy drops a queued study and deletes its source files,
// best-effort.
func (s *Service) DiscardStudy(ctx context.Context, studyID uuid.UUID) error {
	study, err := s.queue.RemoveStudy(studyID)
	if err != nil {
		return err
	}
	for _, f := range studyFiles(study) {
		if err := removeSource(f.SourcePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", f.SourcePath).Msg("failed to delete discarded file")
		}
	}
	if study.StudyFolderPath != "" {
		if err := removeSource(study.StudyFolderPath); err != nil && !os.IsNotExist(err) {
			s.logger.Debug().Err(err).Str("path", study.StudyFolderPath).Msg("study folder not removed")
		}
	}
	s.logger.Info().Str("study_guid", study.StudyGUID).Msg("study discarded")
	return nil
}

// DiscardImage drops a queued loose image and deletes its source file.
func (s *Service) DiscardImage(ctx context.Context, filename string) error {
	img, err := s.queue.RemoveImage(filename)
	if err != nil {
		return err
	}
	if img.FilePath != "" {
		if err := removeSource(img.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", img.FilePath).Msg("failed to delete discarded file")
		}
	}
	return nil
}

// IsNotFound reports whether err is the queue's already-removed signal.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
