package imaging

import (
	"time"

	"github.com/google/uuid"
)

// IncomingImage is one loose image file produced by a device, owned by the
// unassigned queue until assigned or discarded.
type IncomingImage struct {
	Filename   string    `json:"filename"`
	FilePath   string    `json:"file_path"`
	DetectedAt time.Time `json:"detected_at"`
}

// PatientHints is the identity information a device reports with a study.
// Every field is optional and free text; the matcher treats malformed
// values as absent.
type PatientHints struct {
	FullName    string `json:"full_name,omitempty"`
	PatientCode string `json:"patient_code,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Sex         string `json:"sex,omitempty"`
}

// StudyImageRef describes one image inside a study as reported by the
// vendor manifest.
type StudyImageRef struct {
	Type     string `json:"type,omitempty"`
	GUID     string `json:"guid,omitempty"`
	Filename string `json:"filename"`
}

// StudyInfo is the vendor-reported description of a study, normalized by
// the source adapters so the matcher and assigner never see vendor shapes.
type StudyInfo struct {
	Patient   PatientHints    `json:"patient"`
	StudyDate *time.Time      `json:"study_date,omitempty"`
	Images    []StudyImageRef `json:"images"`
}

// IncomingStudy is a batch of related images plus identity hints. ID is
// issued by the queue on enqueue; StudyGUID is the vendor's identifier and
// is treated as opaque and non-unique across devices.
type IncomingStudy struct {
	ID              uuid.UUID `json:"id"`
	StudyGUID       string    `json:"study_guid,omitempty"`
	StudyFolderPath string    `json:"study_folder_path,omitempty"`
	DetectedAt      time.Time `json:"detected_at"`
	Info            StudyInfo `json:"info"`
}
