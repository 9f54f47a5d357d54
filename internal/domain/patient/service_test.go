package patient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	for _, existing := range m.patients {
		if existing.PatientCode == p.PatientCode {
			return fmt.Errorf("duplicate patient_code")
		}
	}
	p.ID = uuid.New()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockRepo) GetByCode(_ context.Context, code string) (*Patient, error) {
	for _, p := range m.patients {
		if p.PatientCode == code {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) SearchByName(_ context.Context, pattern string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if strings.Contains(strings.ToLower(p.FullName), strings.ToLower(pattern)) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, len(result), nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		result = append(result, p)
	}
	return result, len(result), nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	m.patients[p.ID] = p
	return nil
}

// -- Tests --

func TestCreatePatient_IssuesCode(t *testing.T) {
	svc := NewService(newMockRepo())

	p := &Patient{FullName: "Jane Doe"}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	if !strings.HasPrefix(p.PatientCode, "SD-") {
		t.Errorf("expected issued code with SD- prefix, got %q", p.PatientCode)
	}
}

func TestCreatePatient_RequiresName(t *testing.T) {
	svc := NewService(newMockRepo())
	if err := svc.CreatePatient(context.Background(), &Patient{FullName: "   "}); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestFindByCode(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	p := &Patient{FullName: "Jane Doe", PatientCode: "SD-25-00042"}
	if err := svc.CreatePatient(ctx, p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}

	got, err := svc.FindByCode(ctx, "SD-25-00042")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if got == nil || got.ID != p.ID {
		t.Errorf("expected to find created patient, got %+v", got)
	}

	got, err = svc.FindByCode(ctx, "SD-25-99999")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown code, got %+v", got)
	}

	// Blank code is absence, not a lookup.
	if got, _ := svc.FindByCode(ctx, "  "); got != nil {
		t.Errorf("expected nil for blank code")
	}
}

func TestSearchByName_MostRecentFirst(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	older := &Patient{FullName: "John Doe", PatientCode: "SD-25-00001", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &Patient{FullName: "Johnny Doering", PatientCode: "SD-25-00002", CreatedAt: time.Now()}
	for _, p := range []*Patient{older, newer} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, total, err := svc.SearchByName(ctx, "john", 20, 0)
	if err != nil {
		t.Fatalf("SearchByName: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", total)
	}
	if got[0].ID != newer.ID {
		t.Errorf("expected most recent patient first")
	}

	if got, _, _ := svc.SearchByName(ctx, "", 20, 0); got != nil {
		t.Errorf("expected no results for empty pattern")
	}
}
