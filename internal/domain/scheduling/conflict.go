package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/frontdesk/internal/platform/validation"
)

// Proposal is an appointment slot to check. ExcludeID is the appointment
// being edited, uuid.Nil on create.
type Proposal struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	At        time.Time
	ExcludeID uuid.UUID
}

// ConflictValidator detects double bookings. Two appointments collide only
// when their instants are identical; durations and overlaps are not modelled.
type ConflictValidator struct {
	slots SlotChecker
}

func NewConflictValidator(slots SlotChecker) *ConflictValidator {
	return &ConflictValidator{slots: slots}
}

// Validate runs the doctor and patient checks independently and attributes
// each collision to appointment_date. The error is reserved for store
// failures.
func (v *ConflictValidator) Validate(ctx context.Context, p Proposal) (validation.Errors, error) {
	var errs validation.Errors

	doctorBusy, err := v.slots.DoctorBookedAt(ctx, p.DoctorID, p.At, p.ExcludeID)
	if err != nil {
		return nil, err
	}
	if doctorBusy {
		errs.Add("appointment_date", msgDoctorConflict)
	}

	patientBusy, err := v.slots.PatientBookedAt(ctx, p.PatientID, p.At, p.ExcludeID)
	if err != nil {
		return nil, err
	}
	if patientBusy {
		errs.Add("appointment_date", msgPatientConflict)
	}
	return errs, nil
}
