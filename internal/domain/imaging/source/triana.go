package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dentalos/dentalos/internal/domain/imaging"
)

// trianaManifest is the studyinfo.json a Triana capture station drops into
// each study folder. Field names are the vendor's, not ours.
type trianaManifest struct {
	StudyGUID string `json:"studyGuid"`
	StudyDate string `json:"studyDate"`
	Patient   struct {
		FullName    string `json:"fullName"`
		PatientID   string `json:"patientId"`
		DateOfBirth string `json:"dateOfBirth"`
		Sex         string `json:"sex"`
	} `json:"patient"`
	Images []struct {
		Type string `json:"type"`
		GUID string `json:"guid"`
		File string `json:"file"`
	} `json:"images"`
}

const trianaManifestName = "studyinfo.json"

// TrianaAdapter scans a Triana export share: one subfolder per study, each
// holding studyinfo.json plus the image files it references. Folders
// without a manifest are still being written and are skipped.
type TrianaAdapter struct {
	root string
}

func NewTrianaAdapter(root string) *TrianaAdapter {
	return &TrianaAdapter{root: root}
}

func (a *TrianaAdapter) Vendor() string { return "triana" }

func (a *TrianaAdapter) Scan(ctx context.Context) ([]imaging.IncomingStudy, []imaging.IncomingImage, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, nil, fmt.Errorf("read triana share %s: %w", a.root, err)
	}

	var studies []imaging.IncomingStudy
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !entry.IsDir() {
			continue
		}
		folder := filepath.Join(a.root, entry.Name())
		study, ok, err := a.parseStudy(folder)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			studies = append(studies, study)
		}
	}
	return studies, nil, nil
}

func (a *TrianaAdapter) parseStudy(folder string) (imaging.IncomingStudy, bool, error) {
	raw, err := os.ReadFile(filepath.Join(folder, trianaManifestName))
	if os.IsNotExist(err) {
		return imaging.IncomingStudy{}, false, nil
	}
	if err != nil {
		return imaging.IncomingStudy{}, false, fmt.Errorf("read manifest in %s: %w", folder, err)
	}

	var m trianaManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return imaging.IncomingStudy{}, false, fmt.Errorf("parse manifest in %s: %w", folder, err)
	}

	images := make([]imaging.StudyImageRef, 0, len(m.Images))
	for _, img := range m.Images {
		images = append(images, imaging.StudyImageRef{
			Type:     img.Type,
			GUID:     img.GUID,
			Filename: img.File,
		})
	}

	return imaging.IncomingStudy{
		StudyGUID:       m.StudyGUID,
		StudyFolderPath: folder,
		DetectedAt:      time.Now().UTC(),
		Info: imaging.StudyInfo{
			Patient: imaging.PatientHints{
				FullName:    m.Patient.FullName,
				PatientCode: m.Patient.PatientID,
				DateOfBirth: m.Patient.DateOfBirth,
				Sex:         m.Patient.Sex,
			},
			StudyDate: parseStudyDate(m.StudyDate),
			Images:    images,
		},
	}, true, nil
}

// parseStudyDate tolerates the formats vendors actually emit; an
// unparseable date degrades to absent rather than failing the study.
func parseStudyDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "20060102"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
