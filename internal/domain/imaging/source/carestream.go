package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dentalos/dentalos/internal/domain/imaging"
)

const carestreamDescName = "study.desc"

// CarestreamAdapter scans a Carestream export share. Each study folder
// carries a study.desc key=value descriptor; every other file in the
// folder is an image. Patient names arrive in DICOM caret form
// ("Doe^John") and are flattened to given-name-first.
type CarestreamAdapter struct {
	root string
}

func NewCarestreamAdapter(root string) *CarestreamAdapter {
	return &CarestreamAdapter{root: root}
}

func (a *CarestreamAdapter) Vendor() string { return "carestream" }

func (a *CarestreamAdapter) Scan(ctx context.Context) ([]imaging.IncomingStudy, []imaging.IncomingImage, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, nil, fmt.Errorf("read carestream share %s: %w", a.root, err)
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

func (a *CarestreamAdapter) parseStudy(folder string) (imaging.IncomingStudy, bool, error) {
	desc, err := readDescriptor(filepath.Join(folder, carestreamDescName))
	if os.IsNotExist(err) {
		return imaging.IncomingStudy{}, false, nil
	}
	if err != nil {
		return imaging.IncomingStudy{}, false, err
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return imaging.IncomingStudy{}, false, fmt.Errorf("read study folder %s: %w", folder, err)
	}
	var images []imaging.StudyImageRef
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == carestreamDescName {
			continue
		}
		images = append(images, imaging.StudyImageRef{
			Type:     carestreamImageType(entry.Name()),
			Filename: entry.Name(),
		})
	}

	return imaging.IncomingStudy{
		StudyGUID:       desc["STUDY_UID"],
		StudyFolderPath: folder,
		DetectedAt:      time.Now().UTC(),
		Info: imaging.StudyInfo{
			Patient: imaging.PatientHints{
				FullName:    flattenCaretName(desc["PATIENT_NAME"]),
				PatientCode: desc["PATIENT_ID"],
				DateOfBirth: desc["BIRTH_DATE"],
				Sex:         desc["SEX"],
			},
			StudyDate: parseStudyDate(desc["STUDY_DATE"]),
			Images:    images,
		},
	}, true, nil
}

func readDescriptor(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	desc := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		desc[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read descriptor %s: %w", path, err)
	}
	return desc, nil
}

// flattenCaretName turns DICOM "Family^Given^Middle" into "Given Family".
func flattenCaretName(name string) string {
	if !strings.Contains(name, "^") {
		return name
	}
	parts := strings.Split(name, "^")
	family := strings.TrimSpace(parts[0])
	given := ""
	if len(parts) > 1 {
		given = strings.TrimSpace(parts[1])
	}
	switch {
	case given == "":
		return family
	case family == "":
		return given
	default:
		return given + " " + family
	}
}

// carestreamImageType infers the modality from the vendor's filename
// prefixes. Unknown prefixes fall back to intraoral, the common case.
func carestreamImageType(filename string) string {
	upper := strings.ToUpper(filename)
	switch {
	case strings.HasPrefix(upper, "PAN"):
		return "panoramic"
	case strings.HasPrefix(upper, "CEPH"):
		return "cephalometric"
	case strings.HasPrefix(upper, "CBCT"):
		return "cbct"
	default:
		return "intraoral"
	}
}
