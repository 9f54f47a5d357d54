package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
//
// PatientCode is the clinic-issued human-readable identifier (e.g.
// "SD-25-00042") and is unique within the clinic. FullName plus
// DateOfBirth is not guaranteed unique: siblings and data-entry variance
// produce collisions, which is why code-based matching always wins.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientCode string     `db:"patient_code" json:"patient_code"`
	FullName    string     `db:"full_name" json:"full_name"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Sex         *string    `db:"sex" json:"sex,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
