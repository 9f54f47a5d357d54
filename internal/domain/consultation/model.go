package consultation

import (
	"time"

	"github.com/google/uuid"
)

// Status is the consultation lifecycle state.
type Status string

const (
	StatusInProgress  Status = "in-progress"
	StatusWaitingXray Status = "waiting-xray"
	StatusXrayDone    Status = "xray-done"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether the status is final. Terminal consultations are
// never a valid target for imaging assignment.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusWaitingXray, StatusXrayDone, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// SystemDoctorName marks consultations auto-created by the X-ray pipeline
// rather than started by a clinician, so UI surfaces can tell them apart.
const SystemDoctorName = "X-Ray Upload"

// AssignedImage is one image merged into a consultation's X-ray result.
// Entries are append-only: a later assignment never rewrites an earlier one.
type AssignedImage struct {
	Type       string     `json:"type,omitempty"`
	URL        string     `json:"url"`
	GUID       string     `json:"guid,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Filename   string     `json:"filename"`
	UploadedBy string     `json:"uploaded_by,omitempty"`
	Size       int64      `json:"size,omitempty"`
}

// Consultation maps to the consultation table. The xray_* columns form the
// imaging result blob; XRayImages is stored as JSONB.
type Consultation struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	PatientID       uuid.UUID       `db:"patient_id" json:"patient_id"`
	DoctorID        *string         `db:"doctor_id" json:"doctor_id,omitempty"`
	DoctorName      *string         `db:"doctor_name" json:"doctor_name,omitempty"`
	Status          Status          `db:"status" json:"status"`
	Complaint       *string         `db:"complaint" json:"complaint,omitempty"`
	XRayNote        *string         `db:"xray_note" json:"xray_note,omitempty"`
	XRayRadiologist *string         `db:"xray_radiologist" json:"xray_radiologist,omitempty"`
	XRayStudyGUID   *string         `db:"xray_study_guid" json:"xray_study_guid,omitempty"`
	XRayStudyDate   *time.Time      `db:"xray_study_date" json:"xray_study_date,omitempty"`
	XRayImages      []AssignedImage `db:"xray_images" json:"xray_images"`
	VersionID       int             `db:"version_id" json:"version_id"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// SystemCreated reports whether the consultation was auto-created by the
// imaging pipeline.
func (c *Consultation) SystemCreated() bool {
	return c.DoctorName != nil && *c.DoctorName == SystemDoctorName
}
