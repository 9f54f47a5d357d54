package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	p.FullName = strings.TrimSpace(p.FullName)
	if p.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	p.PatientCode = strings.TrimSpace(p.PatientCode)
	if p.PatientCode == "" {
		p.PatientCode = newPatientCode()
	}
	return s.repo.Create(ctx, p)
}

// newPatientCode issues a clinic code of the form SD-YY-XXXXXX. Uniqueness
// is enforced by the patient_code unique constraint; the random tail makes
// collisions effectively impossible without a counter table.
func newPatientCode() string {
	suffix := strings.ToUpper(uuid.New().String()[:6])
	return fmt.Sprintf("SD-%s-%s", time.Now().UTC().Format("06"), suffix)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByCode returns nil, nil when no patient carries the clinic code.
func (s *Service) FindByCode(ctx context.Context, code string) (*Patient, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	return s.repo.GetByCode(ctx, code)
}

// SearchByName returns patients whose name contains the pattern,
// case-insensitively, most recently created first.
func (s *Service) SearchByName(ctx context.Context, pattern string, limit, offset int) ([]*Patient, int, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, 0, nil
	}
	return s.repo.SearchByName(ctx, pattern, limit, offset)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.FullName) == "" {
		return fmt.Errorf("full_name is required")
	}
	return s.repo.Update(ctx, p)
}
