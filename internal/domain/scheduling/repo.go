package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SlotChecker answers whether a doctor or patient already holds a
// non-cancelled appointment at an exact instant, ignoring excludeID.
type SlotChecker interface {
	DoctorBookedAt(ctx context.Context, doctorID uuid.UUID, at time.Time, excludeID uuid.UUID) (bool, error)
	PatientBookedAt(ctx context.Context, patientID uuid.UUID, at time.Time, excludeID uuid.UUID) (bool, error)
}

// AppointmentRepository persists appointments.
//
// GetByID and List resolve the patient and doctor summaries. Create, Update
// and UpdateStatus return ErrDoctorBooked or ErrPatientBooked when the store
// rejects a second live appointment in the same slot. Update returns an error
// wrapping db.ErrStaleWrite when a.VersionID is not the stored version;
// UpdateStatus and MarkEmailSent return db.ErrNotFound for unknown ids.
type AppointmentRepository interface {
	SlotChecker
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, a *Appointment) error
	// MarkEmailSent sets email_sent and leaves version_id unchanged.
	MarkEmailSent(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error)
}

// Directory resolves the patients and doctors an appointment refers to.
// Inactive records still exist.
type Directory interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}
