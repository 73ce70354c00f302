package scheduling

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status vocabulary used by the front desk. Status is an open string: any
// non-empty value up to MaxStatusLength is accepted, and only
// StatusCancelled frees the slot for conflict checks.
const (
	StatusScheduled = "Scheduled"
	StatusConfirmed = "Confirmed"
	StatusCancelled = "Cancelled"
	StatusCompleted = "Completed"
	StatusNoShow    = "NoShow"
)

// KnownStatuses lists the vocabulary offered to clients.
var KnownStatuses = []string{StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow}

const (
	MaxStatusLength = 20
	MaxNotesLength  = 500
)

// PatientRef is the patient as resolved for display and notification.
type PatientRef struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	DocumentNumber string    `json:"document_number"`
	Email          *string   `json:"email,omitempty"`
}

func (p *PatientRef) FullName() string {
	return p.FirstName + " " + p.LastName
}

func (p PatientRef) MarshalJSON() ([]byte, error) {
	type alias PatientRef
	return json.Marshal(struct {
		alias
		FullName string `json:"full_name"`
	}{alias(p), p.FullName()})
}

// DoctorRef is the doctor as resolved for display and notification.
type DoctorRef struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Specialty string    `json:"specialty"`
}

func (d *DoctorRef) FullName() string {
	return d.FirstName + " " + d.LastName
}

func (d DoctorRef) MarshalJSON() ([]byte, error) {
	type alias DoctorRef
	return json.Marshal(struct {
		alias
		FullName string `json:"full_name"`
	}{alias(d), d.FullName()})
}

// Appointment books a patient with a doctor at an exact instant.
type Appointment struct {
	ID              uuid.UUID   `json:"id"`
	PatientID       uuid.UUID   `json:"patient_id"`
	DoctorID        uuid.UUID   `json:"doctor_id"`
	AppointmentDate time.Time   `json:"appointment_date"`
	Status          string      `json:"status"`
	Notes           *string     `json:"notes,omitempty"`
	EmailSent       bool        `json:"email_sent"`
	VersionID       int         `json:"version_id"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Patient         *PatientRef `json:"patient,omitempty"`
	Doctor          *DoctorRef  `json:"doctor,omitempty"`
}

func (a *Appointment) IsCancelled() bool {
	return a.Status == StatusCancelled
}

// AppointmentDraft carries the editable fields of an appointment.
type AppointmentDraft struct {
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	Notes           *string   `json:"notes" validate:"omitempty,max=500"`
	VersionID       int       `json:"version_id,omitempty"`
}

// normalize trims notes and stores the date in UTC at the precision the
// store keeps, so equal instants compare equal before and after a round trip.
func (d *AppointmentDraft) normalize() {
	if d.Notes != nil {
		n := strings.TrimSpace(*d.Notes)
		if n == "" {
			d.Notes = nil
		} else {
			d.Notes = &n
		}
	}
	if !d.AppointmentDate.IsZero() {
		d.AppointmentDate = d.AppointmentDate.UTC().Truncate(time.Microsecond)
	}
}

// Wall-clock forms accepted for appointment_date besides RFC 3339. They carry
// no offset and are read in the hospital's location.
var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

var errAppointmentTime = errors.New(msgInvalidAppointmentDate)

// parseAppointmentTime reads an RFC 3339 timestamp or a wall-clock time in
// loc. An empty value yields the zero time, left for validation to reject.
func parseAppointmentTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range localDateTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errAppointmentTime
}

// ListFilter narrows an appointment listing. Nil fields do not filter.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
}
