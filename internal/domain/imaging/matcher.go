package imaging

import (
	"context"
	"strings"
	"time"

	"github.com/dentalos/dentalos/internal/domain/patient"
)

// PatientDirectory is the slice of the patient record store the matcher
// depends on. SearchByName matches case-insensitively on a substring of
// the name, most recently created first.
type PatientDirectory interface {
	FindByCode(ctx context.Context, code string) (*patient.Patient, error)
	SearchByName(ctx context.Context, pattern string, limit, offset int) ([]*patient.Patient, int, error)
}

// Matcher resolves device-reported identity hints to at most one patient.
// It is a pure decision component: no match is a normal nil return, never
// an error, and malformed hints degrade to absent fields.
type Matcher struct {
	patients PatientDirectory
}

func NewMatcher(patients PatientDirectory) *Matcher {
	return &Matcher{patients: patients}
}

// dobLayouts are the date formats devices have been seen to emit,
// including the DICOM DA form.
var dobLayouts = []string{
	"2006-01-02",
	"20060102",
	"02.01.2006",
	"02/01/2006",
}

func parseDOB(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Match evaluates the stages in strict order, first hit wins:
//
//  1. exact clinic code, authoritative and never overridden by weaker signals;
//  2. exact case-insensitive (name, date of birth) pair;
//  3. case-insensitive substring on name alone, newest patient first.
//
// Stage 3 is deliberately permissive (substring, not prefix) to tolerate
// truncated device fields; false positives are caught by the operator on
// the manual-assignment screen, so the heuristic must not be tightened
// here.
func (m *Matcher) Match(ctx context.Context, hints PatientHints) (*patient.Patient, error) {
	if code := strings.TrimSpace(hints.PatientCode); code != "" {
		p, err := m.patients.FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}

	name := strings.TrimSpace(hints.FullName)
	if name == "" {
		return nil, nil
	}

	if dob, ok := parseDOB(hints.DateOfBirth); ok {
		candidates, _, err := m.patients.SearchByName(ctx, name, 50, 0)
		if err != nil {
			return nil, err
		}
		for _, p := range candidates {
			if p.DateOfBirth == nil {
				continue
			}
			if strings.EqualFold(p.FullName, name) && sameDay(*p.DateOfBirth, dob) {
				return p, nil
			}
		}
	}

	candidates, _, err := m.patients.SearchByName(ctx, name, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return candidates[0], nil
	}
	return nil, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
