package scheduling

import "errors"

var (
	// ErrDoctorBooked and ErrPatientBooked report a slot already held by a
	// non-cancelled appointment, as rejected by the store.
	ErrDoctorBooked  = errors.New("doctor already has an appointment at this time")
	ErrPatientBooked = errors.New("patient already has an appointment at this time")

	ErrStatusRequired = errors.New("status is required")
)

const (
	msgDoctorConflict  = "the doctor already has an appointment at this date and time"
	msgPatientConflict = "the patient already has an appointment at this date and time"
	msgUnknownPatient  = "patient does not exist"
	msgUnknownDoctor   = "doctor does not exist"

	msgInvalidAppointmentDate = "appointment_date must be RFC 3339 (2025-07-01T09:30:00-05:00) or a local date-time (2025-07-01T09:30)"
)
